package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/avdeyev/schoolhub-server/internal/logger"
	"github.com/avdeyev/schoolhub-server/internal/model"
)

// TokenService validates access tokens during authentication.
type TokenService interface {
	GetUserID(ctx context.Context, token string) (uuid.UUID, error)
}

// Authenticate resolves the access token from the access cookie or the
// Authorization header and places the user ID into the request context.
type Authenticate struct {
	tokenService TokenService
	ctxManager   model.ContextManager
	logger       *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware.
func NewAuthenticate(tokenService TokenService, ctxManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{
		tokenService: tokenService,
		ctxManager:   ctxManager,
		logger:       logger,
	}
}

const bearerPrefix = "Bearer "

// Handle rejects the request with 401 unless a valid access token is
// presented.
func (a *Authenticate) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.extractToken(r)
		if token == "" {
			a.unauthorized(w, "No access token provided")
			return
		}

		userID, err := a.tokenService.GetUserID(r.Context(), token)
		if err != nil {
			a.logger.Debug("Authenticate middleware: invalid access token", "error", err.Error())
			a.unauthorized(w, "Invalid or expired access token")
			return
		}

		ctx := a.ctxManager.SetUserIDToContext(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticate) extractToken(r *http.Request) string {
	if cookie, err := r.Cookie("access"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
	}
	return ""
}

func (a *Authenticate) unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
