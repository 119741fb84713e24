package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/files"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/stretchr/testify/require"
)

func TestProfilePictureUploadAndURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	store := files.NewMemory("https://blobs.test/profiles")
	store.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	profiles := &service.ProfileService{Lifecycle: f.lifecycle, Files: store}

	u, err := f.lifecycle.Register(ctx, newCandidate("jane@example.com"))
	require.NoError(t, err)

	_, err = profiles.PictureURL(ctx, u)
	require.ErrorIs(t, err, service.ErrNoProfilePicture)

	_, err = profiles.UploadPicture(ctx, u, "me.gif", "image/gif", []byte("GIF89a"))
	require.ErrorIs(t, err, files.ErrUnsupportedType)

	updated, err := profiles.UploadPicture(ctx, u, "me.png", "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "2024-01-02_03-04-05.png", updated.ProfilePicturePath)

	data, ct, ok := store.Get(u.ID, updated.ProfilePicturePath)
	require.True(t, ok)
	require.Equal(t, "image/png", ct)
	require.Equal(t, []byte("png-bytes"), data)

	url, err := profiles.PictureURL(ctx, u)
	require.NoError(t, err)
	require.Contains(t, url, "https://blobs.test/profiles/"+u.ID+"/2024-01-02_03-04-05.png?")
}

func TestProfilePictureDisabledStorage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profiles := &service.ProfileService{Lifecycle: f.lifecycle, Files: files.Disabled{}}

	u, err := f.lifecycle.Register(ctx, newCandidate("jane@example.com"))
	require.NoError(t, err)

	_, err = profiles.UploadPicture(ctx, u, "me.png", "image/png", []byte("png-bytes"))
	require.ErrorIs(t, err, files.ErrDisabled)
}
