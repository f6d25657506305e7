package service

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"github.com/avdeyev/schoolhub-server/internal/logger"
	"github.com/avdeyev/schoolhub-server/internal/model"
)

// Profile serves account profiles and their photo uploads.
type Profile struct {
	userStore model.UserStore
	storage   model.Storage
	logger    *logger.Logger
}

func NewProfile(userStore model.UserStore, storage model.Storage, logger *logger.Logger) *Profile {
	return &Profile{userStore: userStore, storage: storage, logger: logger}
}

func (p *Profile) Get(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := p.userStore.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UploadPhoto stores the photo in object storage under a per-user key and
// records that key on the profile. Returns the storage key.
func (p *Profile) UploadPhoto(ctx context.Context, userID uuid.UUID, filename string, reader io.Reader) (string, error) {
	user, err := p.userStore.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	key := "avatars/" + user.ID.String() + path.Ext(filename)

	if err := p.storage.Upload(ctx, key, reader); err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	if err := p.userStore.SetAvatarKey(ctx, user.ID, key); err != nil {
		return "", fmt.Errorf("failed to save avatar key: %w", err)
	}

	p.logger.Info("Profile service: photo uploaded",
		"user_id", user.ID.String(),
		"key", key)

	return key, nil
}

// Photo streams the stored profile photo, returning its storage key
// alongside so callers can derive the content type.
func (p *Profile) Photo(ctx context.Context, userID uuid.UUID) (io.ReadCloser, string, error) {
	user, err := p.userStore.GetByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user: %w", err)
	}
	if user.AvatarKey == nil {
		return nil, "", model.ErrNotFound
	}

	rc, err := p.storage.Download(ctx, *user.AvatarKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download photo: %w", err)
	}
	return rc, *user.AvatarKey, nil
}
