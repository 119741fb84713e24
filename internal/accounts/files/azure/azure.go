// Package azure stores profile pictures in an Azure Blob Storage container
// authorised with the account's shared key.
package azure

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/aussiebroadwan/accounts/internal/accounts/files"
)

var ErrMissingAccountName = errors.New("azure: cannot determine storage account name")

type Config struct {
	// AccountURL is the blob endpoint, e.g. https://acct.blob.core.windows.net
	// or http://127.0.0.1:10000/devstoreaccount1 for Azurite.
	AccountURL string

	// AccountName defaults to the one found in AccountURL.
	AccountName string
	AccessKey   string

	Container string
	SASExpiry time.Duration
}

type Manager struct {
	client    *azblob.Client
	container string
	expiry    time.Duration
	now       func() time.Time
}

var _ files.Manager = (*Manager)(nil)

func New(cfg Config) (*Manager, error) {
	name := cfg.AccountName
	if name == "" {
		name = AccountNameFromURL(cfg.AccountURL)
	}
	if name == "" {
		return nil, ErrMissingAccountName
	}

	cred, err := azblob.NewSharedKeyCredential(name, cfg.AccessKey)
	if err != nil {
		return nil, fmt.Errorf("azure: shared key: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(cfg.AccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: client: %w", err)
	}

	m := &Manager{
		client:    client,
		container: cfg.Container,
		expiry:    cfg.SASExpiry,
		now:       time.Now,
	}
	if m.container == "" {
		m.container = files.DefaultContainer
	}
	if m.expiry <= 0 {
		m.expiry = files.DefaultSASExpiry
	}
	return m, nil
}

// AccountNameFromURL reads the account from the first host label, or from
// the first path segment for emulator style URLs.
func AccountNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := u.Hostname()
	if label, _, ok := strings.Cut(host, "."); ok && strings.Contains(host, ".blob.") {
		return label
	}
	seg, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return seg
}

// EnsureContainer creates the container if it doesn't exist yet.
func (m *Manager) EnsureContainer(ctx context.Context) error {
	_, err := m.client.CreateContainer(ctx, m.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("azure: create container %q: %w", m.container, err)
	}
	return nil
}

func (m *Manager) Upload(ctx context.Context, userID, filename, contentType string, data []byte) (string, error) {
	if err := files.CheckUpload(contentType, len(data)); err != nil {
		return "", err
	}
	name := files.GenerateName(filename, contentType, m.now())

	_, err := m.client.UploadBuffer(ctx, m.container, files.Key(userID, name), data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", files.ErrUploadFailed, err)
	}
	return name, nil
}

// SignedURL signs a read-only SAS URL locally; it does not contact the
// service, so a missing blob surfaces when the URL is used.
func (m *Manager) SignedURL(_ context.Context, userID, name string) (string, error) {
	bc := m.client.ServiceClient().
		NewContainerClient(m.container).
		NewBlobClient(files.Key(userID, name))

	u, err := bc.GetSASURL(sas.BlobPermissions{Read: true}, m.now().UTC().Add(m.expiry), nil)
	if err != nil {
		return "", fmt.Errorf("azure: sign url: %w", err)
	}
	return u, nil
}

// Exists reports whether the blob is present.
func (m *Manager) Exists(ctx context.Context, userID, name string) (bool, error) {
	bc := m.client.ServiceClient().
		NewContainerClient(m.container).
		NewBlobClient(files.Key(userID, name))

	_, err := bc.GetProperties(ctx, nil)
	switch {
	case err == nil:
		return true, nil
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound):
		return false, nil
	default:
		return false, err
	}
}
