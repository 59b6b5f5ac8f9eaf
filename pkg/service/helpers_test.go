package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/ecomshop/pkg/auth"
	"github.com/example/ecomshop/pkg/config"
	"github.com/example/ecomshop/pkg/events"
	"github.com/example/ecomshop/pkg/models"
	"github.com/example/ecomshop/pkg/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	store    *repository.GormStore
	notifier *recordingNotifier
	tokens   *auth.TokenService
	users    *UserService
	catalog  *CatalogService
	carts    *CartService
	orders   *OrderService
}

// newFixture wires the services to a GormStore on a private in-memory
// SQLite database.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := repository.NewSQLiteStore(&config.SQLiteConfig{Path: ":memory:", AutoMigrate: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService("test-secret", "HS256", time.Hour)
	require.NoError(t, err)

	logger := zap.NewNop()
	notifier := &recordingNotifier{}
	return &fixture{
		store:    store,
		notifier: notifier,
		tokens:   tokens,
		users:    NewUserService(store, hasher, tokens, logger).WithNotifier(notifier),
		catalog:  NewCatalogService(store, 2, logger).WithNotifier(notifier),
		carts:    NewCartService(store, logger),
		orders:   NewOrderService(store, logger).WithNotifier(notifier),
	}
}

func (f *fixture) signup(t *testing.T, name string) *models.User {
	t.Helper()
	user, err := f.users.Signup(context.Background(), SignupInput{
		Username: name,
		Email:    name + "@example.com",
		Phone:    "+1-555-" + name,
		Password: "secret-" + name,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) product(t *testing.T, name string, price, stock int64) *models.Product {
	t.Helper()
	p, err := f.catalog.CreateProduct(context.Background(), ProductInput{
		Name:  name,
		Price: price,
		Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stockOf(t *testing.T, id string) int64 {
	t.Helper()
	p, err := f.store.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *recordingNotifier) Notify(e events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

var errCacheMiss = errors.New("cache miss")

type mapCache struct {
	mu    sync.Mutex
	users map[string]repository.UserCache
}

func newMapCache() *mapCache {
	return &mapCache{users: map[string]repository.UserCache{}}
}

func (c *mapCache) CacheUser(_ context.Context, user *repository.UserCache) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[user.ID] = *user
	return nil
}

func (c *mapCache) GetUserCache(_ context.Context, userID string) (*repository.UserCache, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[userID]
	if !ok {
		return nil, errCacheMiss
	}
	return &u, nil
}

func (c *mapCache) InvalidateUser(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, userID)
	return nil
}

// spyHasher records which hashes Verify was asked to check.
type spyHasher struct {
	PasswordHasher
	verified []string
	rehash   string
}

func (h *spyHasher) Verify(password, hash string) (bool, string, error) {
	h.verified = append(h.verified, hash)
	ok, _, err := h.PasswordHasher.Verify(password, hash)
	if ok {
		return true, h.rehash, err
	}
	return ok, "", err
}
