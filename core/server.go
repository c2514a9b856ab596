package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Server exposes the identity subsystem over HTTP. Handlers translate the
// error taxonomy into statuses: actionable errors (provider conflict, bad
// signup code) are surfaced verbatim, provider-side failures collapse into a
// generic login failure.
type Server struct {
	auth *AuthService
	repo UserRepository
}

func NewServer(auth *AuthService, repo UserRepository) *Server {
	return &Server{auth: auth, repo: repo}
}

func (s *Server) HandleAuthorizeURL(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodGet) {
		return
	}

	provider := Provider(r.URL.Query().Get("provider"))
	redirectURI := r.URL.Query().Get("redirect_uri")
	state := r.URL.Query().Get("state")
	if provider == "" || redirectURI == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "provider and redirect_uri are required")
		return
	}

	url, err := s.auth.AuthorizeURL(provider, redirectURI, state)
	if err != nil {
		if errors.Is(err, ErrUnsupportedProvider) {
			respondError(w, http.StatusBadRequest, "invalid_provider", "Unsupported provider")
			return
		}
		respondError(w, http.StatusInternalServerError, "config_error", "Provider is not configured")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Provider    string `json:"provider"`
		Code        string `json:"code"`
		RedirectURI string `json:"redirect_uri"`
		SignupCode  string `json:"signup_code"`
		DeviceType  string `json:"device_type"`
		DeviceID    string `json:"device_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.auth.Login(r.Context(), LoginRequest{
		Provider:    Provider(req.Provider),
		Code:        req.Code,
		RedirectURI: req.RedirectURI,
		SignupCode:  req.SignupCode,
		Device:      DeviceInfo{Type: req.DeviceType, ID: req.DeviceID},
	})
	if err != nil {
		s.respondLoginError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnsupportedProvider):
		respondError(w, http.StatusBadRequest, "invalid_provider", "Unsupported provider")
	case errors.Is(err, ErrProviderConflict):
		// The message names the already-linked provider; that is the part
		// the user can act on.
		respondError(w, http.StatusConflict, "provider_conflict", err.Error())
	case errors.Is(err, ErrInvalidCreationCode):
		respondError(w, http.StatusForbidden, "invalid_signup_code", "Account creation code is missing or incorrect")
	case errors.Is(err, ErrNoAccount):
		respondError(w, http.StatusNotFound, "no_account", "No account exists for this identity")
	case errors.Is(err, ErrValidation):
		respondError(w, http.StatusUnprocessableEntity, "validation_failed", "Could not create the account")
	case errors.Is(err, ErrConfig):
		respondError(w, http.StatusInternalServerError, "config_error", "Provider is not configured")
	default:
		// Provider or network failure: a login failure for the user, not a
		// fault of this service.
		respondError(w, http.StatusUnauthorized, "login_failed", "Authentication failed")
	}
}

func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	grant, ok := s.auth.Refresh(r.Context(), req.RefreshToken)
	if !ok {
		respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or expired refresh token")
		return
	}

	respondJSON(w, http.StatusOK, grant)
}

func (s *Server) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	if !validateMethod(w, r, http.MethodGet) {
		return
	}

	claims, err := s.authenticateRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or missing authorization token")
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid or missing authorization token")
		return
	}

	user, err := s.repo.FindByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "no_account", "Account no longer exists")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"id":             user.ID.String(),
		"username":       user.Username,
		"email":          user.Email,
		"oauth_provider": user.OAuthProvider,
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) authenticateRequest(r *http.Request) (*Claims, error) {
	token, err := extractBearerToken(r)
	if err != nil {
		return nil, err
	}
	claims, ok := s.auth.Authenticate(token)
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Helper functions

func validateMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return false
	}
	return true
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("invalid authorization header format")
	}
	return parts[1], nil
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
