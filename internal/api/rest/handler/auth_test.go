package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/schoolhub-server/internal/config"
	"github.com/avdeyev/schoolhub-server/internal/model"
	"github.com/avdeyev/schoolhub-server/internal/service"
	"github.com/avdeyev/schoolhub-server/internal/testutil"
)

type authServiceMock struct {
	mock.Mock
}

func (m *authServiceMock) Login(ctx context.Context, email, password string) (service.LoginResult, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(service.LoginResult), args.Error(1)
}

func (m *authServiceMock) VerifyOTP(ctx context.Context, code string) (service.Session, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(service.Session), args.Error(1)
}

func (m *authServiceMock) Register(ctx context.Context, params service.RegisterParams) (model.User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.User), args.Error(1)
}

type tokenServiceMock struct {
	mock.Mock
}

func (m *tokenServiceMock) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *tokenServiceMock) RevokeByToken(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func testCookieWriter() *CookieWriter {
	return NewCookieWriter(config.Cookie{
		Path:     "/",
		Secure:   true,
		HTTPOnly: true,
		SameSite: "lax",
	}, 15*time.Minute, 720*time.Hour)
}

func newTestAuthHandler(authSvc *authServiceMock, tokenSvc *tokenServiceMock) *Auth {
	return NewAuth(authSvc, tokenSvc, testCookieWriter(), testutil.MakeNoopLogger())
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuth_Login_OK(t *testing.T) {
	authSvc := &authServiceMock{}
	authSvc.On("Login", mock.Anything, "parent@school.example", "pass").
		Return(service.LoginResult{Email: "parent@school.example"}, nil)

	h := newTestAuthHandler(authSvc, &tokenServiceMock{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"  Parent@School.example ","password":"pass"}`))
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "OTP sent to your email", body["success"])
	assert.Equal(t, "parent@school.example", body["email"])

	// Login never sets cookies; tokens come only from verify-otp.
	assert.Empty(t, rec.Result().Cookies())
}

func TestAuth_Login_MissingFields(t *testing.T) {
	h := newTestAuthHandler(&authServiceMock{}, &tokenServiceMock{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.c"}`))
	h.Login(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth_Login_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "unknown email",
			err:        model.ErrNotFound,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "User with this email not found",
		},
		{
			name:       "wrong password",
			err:        model.ErrInvalidCredentials,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid email or password",
		},
		{
			name:       "locked out",
			err:        &model.LockedOutError{RetryAfter: 9*time.Minute + 30*time.Second},
			wantStatus: http.StatusForbidden,
			wantMsg:    "Account locked out. Try again later. 10 minutes",
		},
		{
			name:       "unexpected",
			err:        errors.New("db down"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authSvc := &authServiceMock{}
			authSvc.On("Login", mock.Anything, "a@b.c", "pass").Return(service.LoginResult{}, tt.err)

			h := newTestAuthHandler(authSvc, &tokenServiceMock{})

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
				strings.NewReader(`{"email":"a@b.c","password":"pass"}`))
			h.Login(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeBody(t, rec)["error"])
		})
	}
}

func TestAuth_VerifyOTP_OK(t *testing.T) {
	authSvc := &authServiceMock{}
	authSvc.On("VerifyOTP", mock.Anything, "123456").Return(service.Session{
		User:         model.User{ID: uuid.New(), Email: "a@b.c"},
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
	}, nil)

	h := newTestAuthHandler(authSvc, &tokenServiceMock{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify-otp",
		strings.NewReader(`{"otp":"123456"}`))
	h.VerifyOTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged in successfully", decodeBody(t, rec)["success"])

	cookies := rec.Result().Cookies()
	access := cookieByName(cookies, CookieAccess)
	require.NotNil(t, access)
	assert.Equal(t, "access-token", access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)

	refresh := cookieByName(cookies, CookieRefresh)
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh-token", refresh.Value)
	assert.True(t, refresh.HttpOnly)
	assert.Equal(t, int((720 * time.Hour).Seconds()), refresh.MaxAge)

	// logged_in is a client-readable marker, never HttpOnly.
	loggedIn := cookieByName(cookies, CookieLoggedIn)
	require.NotNil(t, loggedIn)
	assert.Equal(t, "true", loggedIn.Value)
	assert.False(t, loggedIn.HttpOnly)
}

func TestAuth_VerifyOTP_Missing(t *testing.T) {
	h := newTestAuthHandler(&authServiceMock{}, &tokenServiceMock{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify-otp", strings.NewReader(`{}`))
	h.VerifyOTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "OTP not provided", decodeBody(t, rec)["error"])
}

func TestAuth_VerifyOTP_Invalid(t *testing.T) {
	authSvc := &authServiceMock{}
	authSvc.On("VerifyOTP", mock.Anything, "000000").Return(service.Session{}, model.ErrInvalidOTP)

	h := newTestAuthHandler(authSvc, &tokenServiceMock{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/verify-otp",
		strings.NewReader(`{"otp":"000000"}`))
	h.VerifyOTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid OTP", decodeBody(t, rec)["error"])
	assert.Empty(t, rec.Result().Cookies())
}

func TestAuth_Refresh_FromBody(t *testing.T) {
	tokenSvc := &tokenServiceMock{}
	tokenSvc.On("Refresh", mock.Anything, "old-refresh").Return("new-access", "new-refresh", nil)

	h := newTestAuthHandler(&authServiceMock{}, tokenSvc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh",
		strings.NewReader(`{"refresh":"old-refresh"}`))
	h.Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Access tokens refreshed successfully", body["message"])

	// Raw tokens travel in cookies only, never in the body.
	assert.NotContains(t, rec.Body.String(), "new-access")
	assert.NotContains(t, rec.Body.String(), "new-refresh")

	cookies := rec.Result().Cookies()
	require.NotNil(t, cookieByName(cookies, CookieAccess))
	assert.Equal(t, "new-access", cookieByName(cookies, CookieAccess).Value)
	assert.Equal(t, "new-refresh", cookieByName(cookies, CookieRefresh).Value)
}

func TestAuth_Refresh_FromCookie(t *testing.T) {
	tokenSvc := &tokenServiceMock{}
	tokenSvc.On("Refresh", mock.Anything, "cookie-refresh").Return("new-access", "new-refresh", nil)

	h := newTestAuthHandler(&authServiceMock{}, tokenSvc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(nil))
	req.AddCookie(&http.Cookie{Name: CookieRefresh, Value: "cookie-refresh"})
	h.Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	tokenSvc.AssertCalled(t, "Refresh", mock.Anything, "cookie-refresh")
}

func TestAuth_Refresh_Missing(t *testing.T) {
	h := newTestAuthHandler(&authServiceMock{}, &tokenServiceMock{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader(nil))
	h.Refresh(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Refresh token not provided", decodeBody(t, rec)["message"])
}

func TestAuth_Refresh_Invalid(t *testing.T) {
	tokenSvc := &tokenServiceMock{}
	tokenSvc.On("Refresh", mock.Anything, "bad").Return("", "", model.ErrTokenRevoked)

	h := newTestAuthHandler(&authServiceMock{}, tokenSvc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh",
		strings.NewReader(`{"refresh":"bad"}`))
	h.Refresh(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired refresh token", decodeBody(t, rec)["message"])
	// Failed refresh leaves existing cookies alone.
	assert.Empty(t, rec.Result().Cookies())
}

func TestAuth_Logout(t *testing.T) {
	tokenSvc := &tokenServiceMock{}
	tokenSvc.On("RevokeByToken", mock.Anything, "refresh-token").Return(nil)

	h := newTestAuthHandler(&authServiceMock{}, tokenSvc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewReader(nil))
	req.AddCookie(&http.Cookie{Name: CookieRefresh, Value: "refresh-token"})
	h.Logout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	tokenSvc.AssertCalled(t, "RevokeByToken", mock.Anything, "refresh-token")

	for _, name := range []string{CookieAccess, CookieRefresh, CookieLoggedIn} {
		cookie := cookieByName(rec.Result().Cookies(), name)
		require.NotNil(t, cookie, name)
		assert.Equal(t, -1, cookie.MaxAge, name)
		assert.Empty(t, cookie.Value, name)
	}
}

func TestAuth_Logout_WithoutSession(t *testing.T) {
	tokenSvc := &tokenServiceMock{}

	h := newTestAuthHandler(&authServiceMock{}, tokenSvc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewReader(nil))
	h.Logout(rec, req)

	// Idempotent: no session still clears cookies and returns 204.
	require.Equal(t, http.StatusNoContent, rec.Code)
	tokenSvc.AssertNotCalled(t, "RevokeByToken", mock.Anything, mock.Anything)
	assert.Len(t, rec.Result().Cookies(), 3)
}

func TestAuth_Logout_RevokeFailureStill204(t *testing.T) {
	tokenSvc := &tokenServiceMock{}
	tokenSvc.On("RevokeByToken", mock.Anything, "refresh-token").Return(errors.New("db down"))

	h := newTestAuthHandler(&authServiceMock{}, tokenSvc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", bytes.NewReader(nil))
	req.AddCookie(&http.Cookie{Name: CookieRefresh, Value: "refresh-token"})
	h.Logout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuth_Register_OK(t *testing.T) {
	authSvc := &authServiceMock{}
	created := model.User{
		ID:        uuid.New(),
		Email:     "new@school.example",
		Username:  "petr",
		FirstName: "Petr",
		LastName:  "Petrov",
		Role:      model.RoleStudent,
	}
	authSvc.On("Register", mock.Anything, service.RegisterParams{
		Email:     "new@school.example",
		Username:  "petr",
		Password:  "pass123",
		FirstName: "Petr",
		LastName:  "Petrov",
		Role:      model.RoleStudent,
	}).Return(created, nil)

	h := newTestAuthHandler(authSvc, &tokenServiceMock{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"email":"new@school.example","username":"petr","password":"pass123","first_name":"Petr","last_name":"Petrov"}`))
	h.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "new@school.example", body["email"])
	assert.Equal(t, "Petr Petrov", body["full_name"])
	assert.Equal(t, "student", body["role"])
}

func TestAuth_Register_UnknownRole(t *testing.T) {
	h := newTestAuthHandler(&authServiceMock{}, &tokenServiceMock{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"email":"a@b.c","username":"u","password":"p","role":"principal"}`))
	h.Register(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unknown role", decodeBody(t, rec)["error"])
}

func TestAuth_Register_EmailTaken(t *testing.T) {
	authSvc := &authServiceMock{}
	authSvc.On("Register", mock.Anything, mock.Anything).Return(model.User{}, model.ErrEmailTaken)

	h := newTestAuthHandler(authSvc, &tokenServiceMock{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"email":"taken@b.c","username":"u","password":"p"}`))
	h.Register(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email is already taken", decodeBody(t, rec)["error"])
}
