// File: internal/handlers/auth_handlers.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/iyunix/go-livechat/internal/domain"
	"github.com/iyunix/go-livechat/internal/middleware"
	"github.com/iyunix/go-livechat/internal/services/operator_services"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// OperatorAuthenticator is the slice of AuthService the login handler needs.
type OperatorAuthenticator interface {
	Login(ctx context.Context, email, password string) (*domain.Operator, string, error)
}

// AuthHandler signs operators in and out.
type AuthHandler struct {
	auth         OperatorAuthenticator
	tokenTTL     time.Duration
	secureCookie bool
	logger       Logger
}

func NewAuthHandler(auth OperatorAuthenticator, tokenTTL time.Duration, secureCookie bool, logger Logger) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks the operator's credentials and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, "Bad Request", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !emailRegex.MatchString(req.Email) || req.Password == "" {
		writeError(w, "Email and password are required.", http.StatusBadRequest)
		return
	}

	op, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, operator_services.ErrInvalidCredentials) {
			writeError(w, "Invalid email or password.", http.StatusUnauthorized)
			return
		}
		h.logger.Error("operator login failed", "error", err)
		writeError(w, "Login is temporarily unavailable.", http.StatusServiceUnavailable)
		return
	}

	middleware.SetOperatorCookie(w, token, h.tokenTTL, h.secureCookie)
	writeJSON(w, http.StatusOK, map[string]interface{}{"operator": op})
}

// Logout drops the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearOperatorCookie(w, h.secureCookie)
	w.WriteHeader(http.StatusNoContent)
}

// Me reports the signed-in operator id.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := middleware.OperatorIDFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint{"operator_id": operatorID})
}
