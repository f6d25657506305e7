package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/avdeyev/schoolhub-server/internal/logger"
	"github.com/avdeyev/schoolhub-server/internal/model"
	"github.com/avdeyev/schoolhub-server/internal/service"
)

// AuthService defines the login, OTP and registration operations.
type AuthService interface {
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	VerifyOTP(ctx context.Context, code string) (service.Session, error)
	Register(ctx context.Context, params service.RegisterParams) (model.User, error)
}

// TokenService defines token refresh and revoke operations.
type TokenService interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken string, newRefreshToken string, err error)
	RevokeByToken(ctx context.Context, refreshToken string) error
}

// Auth handles the HTTP endpoints of the authentication flow.
type Auth struct {
	authService  AuthService
	tokenService TokenService
	cookies      *CookieWriter
	logger       *logger.Logger
}

// NewAuth creates a new Auth handler.
func NewAuth(authService AuthService, tokenService TokenService, cookies *CookieWriter, logger *logger.Logger) *Auth {
	return &Auth{
		authService:  authService,
		tokenService: tokenService,
		cookies:      cookies,
		logger:       logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	OTP string `json:"otp"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type registerRequest struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
}

// Login validates a password credential and dispatches an OTP challenge.
// No cookies are set here; tokens arrive only after OTP verification.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("Auth handler: login failed",
			"email", req.Email,
			"error", err.Error())
		status, msg := mapError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"success": "OTP sent to your email",
		"email":   result.Email,
	})
}

// VerifyOTP exchanges a one-time passcode for the cookie-borne token pair.
func (h *Auth) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "OTP not provided")
		return
	}

	session, err := h.authService.VerifyOTP(r.Context(), strings.TrimSpace(req.OTP))
	if err != nil {
		h.logger.Error("Auth handler: otp verification failed", "error", err.Error())
		status, msg := mapError(err)
		writeError(w, status, msg)
		return
	}

	h.cookies.SetSession(w, session.AccessToken, session.RefreshToken)

	h.logger.Info("Auth handler: otp login completed", "email", session.User.Email)

	writeJSON(w, http.StatusOK, map[string]string{
		"success": "Logged in successfully",
	})
}

// Refresh rotates the token pair. The raw tokens travel only in cookies;
// the JSON body carries a status message.
func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	refreshToken := req.Refresh
	if refreshToken == "" {
		if cookie, err := r.Cookie(CookieRefresh); err == nil {
			refreshToken = cookie.Value
		}
	}
	if refreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "Refresh token not provided",
		})
		return
	}

	access, refresh, err := h.tokenService.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.logger.Error("Auth handler: token refresh failed", "error", err.Error())
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"message": "Invalid or expired refresh token",
		})
		return
	}

	h.cookies.SetSession(w, access, refresh)

	h.logger.Info("Auth handler: token refresh successful")

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Access tokens refreshed successfully",
	})
}

// Logout clears the auth cookies. It never fails from the client's
// perspective; refresh-token revocation is best effort.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieRefresh); err == nil && cookie.Value != "" {
		if err := h.tokenService.RevokeByToken(r.Context(), cookie.Value); err != nil {
			h.logger.Debug("Auth handler: refresh token revoke on logout failed", "error", err.Error())
		}
	}

	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Register creates a new account.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email, username and password are required")
		return
	}

	role := model.Role(req.Role)
	switch role {
	case "":
		role = model.RoleStudent
	case model.RoleAdministrator, model.RoleTeacher, model.RoleParent, model.RoleStudent:
	default:
		writeError(w, http.StatusBadRequest, "Unknown role")
		return
	}

	user, err := h.authService.Register(r.Context(), service.RegisterParams{
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Role:       role,
	})
	if err != nil {
		h.logger.Error("Auth handler: registration failed",
			"email", req.Email,
			"error", err.Error())
		status, msg := mapError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, profileResponse(user))
}
