package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	restctx "github.com/avdeyev/schoolhub-server/internal/api/rest/context"
	"github.com/avdeyev/schoolhub-server/internal/testutil"
)

type tokenServiceMock struct {
	mock.Mock
}

func (m *tokenServiceMock) GetUserID(ctx context.Context, token string) (uuid.UUID, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func TestAuthenticate_CookieToken(t *testing.T) {
	tokenSvc := &tokenServiceMock{}
	userID := uuid.New()
	tokenSvc.On("GetUserID", mock.Anything, "valid-token").Return(userID, nil)

	ctxManager := restctx.NewManager()
	a := NewAuthenticate(tokenSvc, ctxManager, testutil.MakeNoopLogger())

	var gotUserID uuid.UUID
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = ctxManager.GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.AddCookie(&http.Cookie{Name: "access", Value: "valid-token"})
	a.Handle(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, gotUserID)
}

func TestAuthenticate_BearerToken(t *testing.T) {
	tokenSvc := &tokenServiceMock{}
	userID := uuid.New()
	tokenSvc.On("GetUserID", mock.Anything, "bearer-token").Return(userID, nil)

	a := NewAuthenticate(tokenSvc, restctx.NewManager(), testutil.MakeNoopLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer bearer-token")
	a.Handle(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	tokenSvc.AssertCalled(t, "GetUserID", mock.Anything, "bearer-token")
}

func TestAuthenticate_NoToken(t *testing.T) {
	a := NewAuthenticate(&tokenServiceMock{}, restctx.NewManager(), testutil.MakeNoopLogger())

	called := false
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	a.Handle(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	tokenSvc := &tokenServiceMock{}
	tokenSvc.On("GetUserID", mock.Anything, "expired").Return(uuid.Nil, errors.New("token is expired"))

	a := NewAuthenticate(tokenSvc, restctx.NewManager(), testutil.MakeNoopLogger())

	called := false
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.AddCookie(&http.Cookie{Name: "access", Value: "expired"})
	a.Handle(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAuthenticate_CookiePreferredOverHeader(t *testing.T) {
	tokenSvc := &tokenServiceMock{}
	userID := uuid.New()
	tokenSvc.On("GetUserID", mock.Anything, "cookie-token").Return(userID, nil)

	a := NewAuthenticate(tokenSvc, restctx.NewManager(), testutil.MakeNoopLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.AddCookie(&http.Cookie{Name: "access", Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")
	a.Handle(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	tokenSvc.AssertCalled(t, "GetUserID", mock.Anything, "cookie-token")
	tokenSvc.AssertNotCalled(t, "GetUserID", mock.Anything, "header-token")
}
