package service

import (
	"context"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/files"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// ProfileService stores profile pictures and hands out read URLs for them.
type ProfileService struct {
	Lifecycle *LifecycleService
	Files     files.Manager
}

// UploadPicture stores the image and records it as u's picture. The
// previous blob is left in place.
func (s *ProfileService) UploadPicture(ctx context.Context, u domain.User, filename, contentType string, data []byte) (domain.User, error) {
	if err := files.CheckUpload(contentType, len(data)); err != nil {
		return domain.User{}, err
	}
	// Fail before writing a blob nobody can reference.
	if _, err := s.Lifecycle.GetProfilePicturePath(ctx, u); err != nil {
		return domain.User{}, err
	}

	name, err := s.Files.Upload(ctx, u.ID, filename, contentType, data)
	if err != nil {
		return domain.User{}, err
	}

	updated, err := s.Lifecycle.ChangeProfilePicturePath(ctx, u, name)
	if err != nil {
		return domain.User{}, err
	}
	slogx.FromContext(ctx).Info("profile picture updated", "user_id", u.ID, "file", name)
	return updated, nil
}

// PictureURL returns a time-limited URL for u's current picture.
func (s *ProfileService) PictureURL(ctx context.Context, u domain.User) (string, error) {
	name, err := s.Lifecycle.GetProfilePicturePath(ctx, u)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", ErrNoProfilePicture
	}
	return s.Files.SignedURL(ctx, u.ID, name)
}
