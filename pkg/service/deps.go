package service

import (
	"context"

	"github.com/example/ecomshop/pkg/auth"
	"github.com/example/ecomshop/pkg/events"
	"github.com/example/ecomshop/pkg/repository"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (ok bool, rehash string, err error)
	DummyHash() string
}

type TokenIssuer interface {
	Issue(subject string) (*auth.Token, error)
	Validate(token string) (subject string, err error)
}

// UserCache is satisfied by *repository.RedisRepository.
type UserCache interface {
	CacheUser(ctx context.Context, user *repository.UserCache) error
	GetUserCache(ctx context.Context, userID string) (*repository.UserCache, error)
	InvalidateUser(ctx context.Context, userID string) error
}

// Notifier receives events after commit. Implementations must not block.
type Notifier interface {
	Notify(event events.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(events.Event) {}
