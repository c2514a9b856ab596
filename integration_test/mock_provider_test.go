package integration_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

type providerProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// MockProviderServer plays the provider side of the authorization-code flow:
// /token swaps known codes for access tokens, /userinfo answers bearer
// requests with the matching profile. Apple-style codes are answered with an
// id_token instead of a usable access token.
type MockProviderServer struct {
	server *httptest.Server

	mu       sync.Mutex
	codes    map[string]providerProfile
	appleIDs map[string]map[string]any // code -> id_token claims
	tokens   map[string]providerProfile
}

func NewMockProviderServer() *MockProviderServer {
	m := &MockProviderServer{
		codes:    make(map[string]providerProfile),
		appleIDs: make(map[string]map[string]any),
		tokens:   make(map[string]providerProfile),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", m.handleToken)
	mux.HandleFunc("/userinfo", m.handleUserInfo)

	m.server = httptest.NewServer(mux)
	return m
}

func (m *MockProviderServer) URL() string { return m.server.URL }

func (m *MockProviderServer) Close() { m.server.Close() }

// AddCode registers an authorization code that resolves to the profile.
func (m *MockProviderServer) AddCode(code string, profile providerProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[code] = profile
}

// AddAppleCode registers a code whose exchange returns an id_token carrying
// the claims.
func (m *MockProviderServer) AddAppleCode(code string, claims map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appleIDs[code] = claims
}

func (m *MockProviderServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, _ := io.ReadAll(r.Body)
	params, _ := url.ParseQuery(string(body))

	if params.Get("grant_type") != "authorization_code" || params.Get("client_secret") == "" {
		writeOAuthError(w, "invalid_request")
		return
	}

	code := params.Get("code")

	m.mu.Lock()
	defer m.mu.Unlock()

	if claims, ok := m.appleIDs[code]; ok {
		idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims)).
			SignedString([]byte("apple-issuer-key"))
		if err != nil {
			http.Error(w, "signing failed", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "apple-opaque-token",
			"token_type":   "bearer",
			"id_token":     idToken,
		})
		return
	}

	profile, ok := m.codes[code]
	if !ok {
		writeOAuthError(w, "invalid_grant")
		return
	}

	accessToken := "provider-access-" + code
	m.tokens[accessToken] = profile

	json.NewEncoder(w).Encode(map[string]any{
		"access_token": accessToken,
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func (m *MockProviderServer) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 8 || auth[:7] != "Bearer " {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	m.mu.Lock()
	profile, ok := m.tokens[auth[7:]]
	m.mu.Unlock()
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	json.NewEncoder(w).Encode(profile)
}

func writeOAuthError(w http.ResponseWriter, code string) {
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": code})
}
