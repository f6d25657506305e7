package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/avdeyev/schoolhub-server/internal/model"
)

// mapError converts service errors to a client-facing status and message.
// Everything unrecognized collapses to a generic 500.
func mapError(err error) (int, string) {
	var locked *model.LockedOutError
	if errors.As(err, &locked) {
		minutes := int(math.Ceil(locked.RetryAfter.Minutes()))
		return http.StatusForbidden, fmt.Sprintf("Account locked out. Try again later. %d minutes", minutes)
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusBadRequest, "User with this email not found"
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusBadRequest, "Invalid email or password"
	case errors.Is(err, model.ErrInvalidOTP):
		return http.StatusBadRequest, "Invalid OTP"
	case errors.Is(err, model.ErrEmailTaken):
		return http.StatusConflict, "Email is already taken"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
