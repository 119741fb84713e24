// Package files stores profile pictures. The service layer only records the
// generated file name; bytes live behind a Manager.
package files

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrUnsupportedType = errors.New("files: unsupported content type")
	ErrTooLarge        = errors.New("files: file too large")
	ErrUploadFailed    = errors.New("files: upload failed")
	ErrNotFound        = errors.New("files: not found")
	ErrDisabled        = errors.New("files: storage not configured")
)

const (
	DefaultContainer = "profiles"
	DefaultSASExpiry = 30 * time.Minute
	MaxUploadSize    = 5 << 20

	nameLayout = "2006-01-02_15-04-05"
)

// allowedTypes maps accepted content types to the extension used when the
// upload name has none.
var allowedTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/jpg":  "jpg",
	"image/png":  "png",
}

// Manager stores files per user and hands out time-limited read URLs.
type Manager interface {
	// Upload stores data and returns the generated file name.
	Upload(ctx context.Context, userID, filename, contentType string, data []byte) (string, error)

	// SignedURL returns a read URL for a name previously returned by Upload.
	SignedURL(ctx context.Context, userID, name string) (string, error)
}

// CheckUpload validates the content type and size of an upload.
func CheckUpload(contentType string, size int) error {
	if _, ok := allowedTypes[normaliseType(contentType)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if size > MaxUploadSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	return nil
}

// GenerateName names an upload after its timestamp, keeping the original
// extension: "2006-01-02_15-04-05.png".
func GenerateName(filename, contentType string, now time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		ext = allowedTypes[normaliseType(contentType)]
	}
	return now.UTC().Format(nameLayout) + "." + ext
}

// Key is the storage key of name within the container.
func Key(userID, name string) string {
	return path.Join(userID, path.Base(name))
}

func normaliseType(ct string) string {
	mt, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// Disabled is used when no storage account is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string, string, []byte) (string, error) {
	return "", ErrDisabled
}

func (Disabled) SignedURL(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}
