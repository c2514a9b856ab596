package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/ydb-platform/ydb-go-sdk/v3"
	yc "github.com/ydb-platform/ydb-go-yc"
	"gopkg.in/yaml.v3"

	"bandauth/core"
	"bandauth/core/providers"
	"bandauth/storage"
)

type AppConfig struct {
	Core *core.Config `yaml:",inline"`

	Port string   `yaml:"port"`
	DB   DBConfig `yaml:"db"`

	// Secrets may be placed in the config file for local setups; the
	// environment always wins.
	Secrets map[string]string `yaml:"secrets,omitempty"`
}

type DBConfig struct {
	Type       string `yaml:"type"`
	SQLitePath string `yaml:"sqlite_path"`

	YDBEndpoint  string `yaml:"ydb_endpoint"`
	YDBSAKeyFile string `yaml:"ydb_sa_key_file"`
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Local .env files are a convenience; absence is fine.
	_ = godotenv.Load()

	configPath := getEnv("CONFIG_PATH", "config.yaml")
	appConfig := loadConfigFromYAML(logger, configPath)

	secrets := core.LayeredSecrets{
		core.EnvSecrets{},
		core.MapSecrets(appConfig.Secrets),
	}

	repo, cleanup := initRepository(logger, appConfig.DB)
	defer cleanup()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	oauth := providers.NewClient(providers.DefaultRegistry(), secrets, httpClient, logger)

	resolver := core.NewResolver(repo, logger)
	provisioner := core.NewProvisioner(repo, secrets, resolver, logger)

	tokens, err := core.NewTokenService(secrets, repo, appConfig.Core, logger)
	if err != nil {
		logger.Error("token service init failed", "error", err)
		os.Exit(1)
	}

	authService := core.NewAuthService(oauth, resolver, provisioner, tokens, logger)
	server := core.NewServer(authService, repo)

	http.HandleFunc("/authorize-url", server.HandleAuthorizeURL)
	http.HandleFunc("/login", server.HandleLogin)
	http.HandleFunc("/refresh", server.HandleRefresh)
	http.HandleFunc("/userinfo", server.HandleUserInfo)
	http.HandleFunc("/health", server.HandleHealth)

	logger.Info("starting bandauth server", "port", appConfig.Port, "environment", appConfig.Core.Environment)

	if err := http.ListenAndServe(":"+appConfig.Port, nil); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func loadConfigFromYAML(logger *slog.Logger, path string) *AppConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read config file", "path", path, "error", err)
		os.Exit(1)
	}

	config := AppConfig{Core: &core.Config{}}
	if err := yaml.Unmarshal(data, &config); err != nil {
		logger.Error("failed to parse config file", "path", path, "error", err)
		os.Exit(1)
	}
	if config.Port == "" {
		config.Port = "8080"
	}
	return &config
}

func initRepository(logger *slog.Logger, dbConfig DBConfig) (core.UserRepository, func()) {
	switch strings.ToLower(dbConfig.Type) {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(dbConfig.SQLitePath)
		if err != nil {
			logger.Error("failed to initialize sqlite repository", "error", err)
			os.Exit(1)
		}
		logger.Info("using sqlite database", "path", dbConfig.SQLitePath)
		return repo, func() { repo.Close() }

	case "ydb":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var opts []ydb.Option
		if dbConfig.YDBSAKeyFile != "" {
			opts = append(opts,
				yc.WithInternalCA(),
				yc.WithServiceAccountKeyFileCredentials(dbConfig.YDBSAKeyFile),
			)
		}
		repo, err := storage.NewYDBRepository(ctx, dbConfig.YDBEndpoint, opts...)
		if err != nil {
			logger.Error("failed to initialize ydb repository", "error", err)
			os.Exit(1)
		}
		logger.Info("using ydb database", "endpoint", dbConfig.YDBEndpoint)
		return repo, func() { repo.Close(context.Background()) }

	case "mock":
		logger.Info("using mock repository (in-memory)")
		return storage.NewMockRepository(), func() {}

	default:
		logger.Error("unsupported db type", "type", dbConfig.Type, "supported", "sqlite, ydb, mock")
		os.Exit(1)
		return nil, nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
