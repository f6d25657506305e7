package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/avdeyev/schoolhub-server/internal/api/rest/handler"
	"github.com/avdeyev/schoolhub-server/internal/api/rest/middleware"
)

// New assembles the HTTP routing table.
func New(
	authHandler *handler.Auth,
	profileHandler *handler.Profile,
	authenticate *middleware.Authenticate,
	logging *middleware.Logging,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.Handle)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/verify-otp", authHandler.VerifyOTP)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Use(authenticate.Handle)
			r.Get("/", profileHandler.Me)
			r.Get("/photo", profileHandler.Photo)
			r.Post("/photo", profileHandler.UploadPhoto)
		})
	})

	return r
}
