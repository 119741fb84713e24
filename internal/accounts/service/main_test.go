package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/events"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqlite"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testPassword = "Abcdef1!"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// recorder captures published events and can be told to fail.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// txCounter counts transactions opened through WithTx.
type txCounter struct {
	store.Store

	mu sync.Mutex
	n  int
}

func (c *txCounter) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return c.Store.WithTx(ctx, fn)
}

func (c *txCounter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// conflictingUsers behaves as if another writer inserted the same email
// between the advisory lookup and the insert.
type conflictingUsers struct {
	store.Users
}

func (conflictingUsers) GetUserByEmail(context.Context, string) (domain.User, error) {
	return domain.User{}, store.ErrNotFound
}

func (conflictingUsers) CreateUser(context.Context, domain.User) error {
	return fmt.Errorf("insert user: %w", store.ErrAlreadyExists)
}

type conflictingStore struct {
	store.Store
}

func (conflictingStore) Users() store.Users { return conflictingUsers{} }

func newStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore("file::memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTokens(t *testing.T) *service.TokenService {
	t.Helper()

	signer, err := jwtx.NewHMAC([]byte("test-secret-key-for-tokens"))
	require.NoError(t, err)
	return &service.TokenService{Signer: signer}
}

type fixture struct {
	store     store.Store
	events    *recorder
	tokens    *service.TokenService
	lifecycle *service.LifecycleService
	auth      *service.AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  newStore(t),
		events: &recorder{},
		tokens: newTokens(t),
	}
	f.lifecycle = &service.LifecycleService{
		Store:          f.store,
		Publisher:      f.events,
		Tokens:         f.tokens,
		PublishTimeout: time.Second,
	}
	f.auth = &service.AuthService{Store: f.store, Tokens: f.tokens}
	return f
}
