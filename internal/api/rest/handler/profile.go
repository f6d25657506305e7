package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/google/uuid"

	"github.com/avdeyev/schoolhub-server/internal/logger"
	"github.com/avdeyev/schoolhub-server/internal/model"
)

// maxPhotoSize bounds profile photo uploads.
const maxPhotoSize = 10 << 20

// ProfileService defines profile read and photo operations.
type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (model.User, error)
	UploadPhoto(ctx context.Context, userID uuid.UUID, filename string, reader io.Reader) (string, error)
	Photo(ctx context.Context, userID uuid.UUID) (io.ReadCloser, string, error)
}

// Profile handles the HTTP endpoints for the authenticated user's profile.
type Profile struct {
	profileService ProfileService
	ctxManager     model.ContextManager
	logger         *logger.Logger
}

// NewProfile creates a new Profile handler.
func NewProfile(profileService ProfileService, ctxManager model.ContextManager, logger *logger.Logger) *Profile {
	return &Profile{
		profileService: profileService,
		ctxManager:     ctxManager,
		logger:         logger,
	}
}

func profileResponse(user model.User) map[string]any {
	resp := map[string]any{
		"id":          user.ID.String(),
		"email":       user.Email,
		"username":    user.Username,
		"first_name":  user.FirstName,
		"middle_name": user.MiddleName,
		"last_name":   user.LastName,
		"full_name":   user.FullName(),
		"role":        string(user.Role),
	}
	if user.AvatarKey != nil {
		resp["avatar_key"] = *user.AvatarKey
	}
	return resp
}

// Me returns the authenticated user's profile.
func (h *Profile) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ctxManager.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.profileService.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("Profile handler: failed to get profile",
			"user_id", userID.String(),
			"error", err.Error())
		status, msg := mapError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse(user))
}

// UploadPhoto accepts a multipart photo upload and stores it as the
// user's avatar.
func (h *Profile) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ctxManager.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Photo file is required")
		return
	}
	defer file.Close()

	key, err := h.profileService.UploadPhoto(r.Context(), userID, header.Filename, file)
	if err != nil {
		h.logger.Error("Profile handler: photo upload failed",
			"user_id", userID.String(),
			"error", err.Error())
		status, msg := mapError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"avatar_key": key})
}

// Photo streams the stored profile photo back to the client.
func (h *Profile) Photo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ctxManager.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	rc, key, err := h.profileService.Photo(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No profile photo")
			return
		}
		h.logger.Error("Profile handler: photo download failed",
			"user_id", userID.String(),
			"error", err.Error())
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = io.Copy(w, rc)
}
