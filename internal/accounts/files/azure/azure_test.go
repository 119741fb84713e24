package azure

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAccountNameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://acct.blob.core.windows.net":      "acct",
		"https://acct.blob.core.windows.net/":     "acct",
		"http://127.0.0.1:10000/devstoreaccount1": "devstoreaccount1",
		"http://azurite:10000/devstoreaccount1/":  "devstoreaccount1",
		"not a url":                               "",
		"":                                        "",
	}
	for raw, want := range tests {
		require.Equal(t, want, AccountNameFromURL(raw), raw)
	}
}

func TestNewRequiresAccountName(t *testing.T) {
	_, err := New(Config{AccountURL: "http://localhost:10000/"})
	require.ErrorIs(t, err, ErrMissingAccountName)
}

func TestSignedURL(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	m, err := New(Config{AccountURL: "https://acct.blob.core.windows.net", AccessKey: key})
	require.NoError(t, err)

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	raw, err := m.SignedURL(context.Background(), "user-1", "2026-10-18_12-00-00.png")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "acct.blob.core.windows.net", u.Host)
	require.Equal(t, "/profiles/user-1/2026-10-18_12-00-00.png", u.Path)

	q := u.Query()
	require.Equal(t, "r", q.Get("sp"))
	require.NotEmpty(t, q.Get("sig"))
	require.Equal(t, "2026-10-18T12:30:00Z", q.Get("se"))
}
