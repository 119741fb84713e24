package files

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Memory keeps files in process. It backs local development and tests.
type Memory struct {
	BaseURL string
	Now     func() time.Time

	mu    sync.Mutex
	blobs map[string]memoryBlob
}

type memoryBlob struct {
	contentType string
	data        []byte
}

func NewMemory(baseURL string) *Memory {
	return &Memory{BaseURL: baseURL, Now: time.Now, blobs: map[string]memoryBlob{}}
}

func (m *Memory) Upload(_ context.Context, userID, filename, contentType string, data []byte) (string, error) {
	if err := CheckUpload(contentType, len(data)); err != nil {
		return "", err
	}
	name := GenerateName(filename, contentType, m.Now())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[Key(userID, name)] = memoryBlob{contentType: contentType, data: append([]byte(nil), data...)}
	return name, nil
}

func (m *Memory) SignedURL(_ context.Context, userID, name string) (string, error) {
	key := Key(userID, name)

	m.mu.Lock()
	_, ok := m.blobs[key]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	expiry := m.Now().Add(DefaultSASExpiry).UTC().Format(time.RFC3339)
	return m.BaseURL + "/" + key + "?se=" + url.QueryEscape(expiry) + "&sp=r", nil
}

// Get returns the stored bytes and content type of key.
func (m *Memory) Get(userID, name string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[Key(userID, name)]
	return b.data, b.contentType, ok
}
