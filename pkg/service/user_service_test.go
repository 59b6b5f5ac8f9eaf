package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/ecomshop/pkg/auth"
	"github.com/example/ecomshop/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.signup(t, "alice")
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.IsAdmin)
	assert.NotEqual(t, "secret-alice", user.HashedPassword)
	assert.Equal(t, []string{events.UserSignedUp}, f.notifier.types())

	tests := []struct {
		name string
		in   SignupInput
		want error
	}{
		{
			name: "duplicate email",
			in:   SignupInput{Username: "a2", Email: "alice@example.com", Phone: "+1-555-other", Password: "pw"},
			want: ErrDuplicateEmail,
		},
		{
			name: "duplicate phone",
			in:   SignupInput{Username: "a3", Email: "other@example.com", Phone: "+1-555-alice", Password: "pw"},
			want: ErrDuplicatePhone,
		},
		{
			name: "missing password",
			in:   SignupInput{Username: "a4", Email: "a4@example.com", Phone: "4"},
			want: ErrValidation,
		},
		{
			name: "password longer than bcrypt accepts",
			in:   SignupInput{Username: "a6", Email: "a6@example.com", Phone: "6", Password: strings.Repeat("x", 73)},
			want: ErrValidation,
		},
		{
			name: "missing email",
			in:   SignupInput{Username: "a5", Phone: "5", Password: "pw"},
			want: ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Signup(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

type rejectingHasher struct {
	PasswordHasher
}

func (rejectingHasher) Hash(string) (string, error) {
	return "", auth.ErrPasswordTooLong
}

func TestSignupHasherLengthErrorIsValidation(t *testing.T) {
	f := newFixture(t)
	users := NewUserService(f.store, rejectingHasher{}, f.tokens, zap.NewNop())

	_, err := users.Signup(context.Background(), SignupInput{
		Username: "sam", Email: "sam@example.com", Phone: "7", Password: "pw",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "bob")

	got, err := f.users.Authenticate(ctx, "bob@example.com", "secret-bob")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.users.Authenticate(ctx, "bob@example.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = f.users.Authenticate(ctx, "nobody@example.com", "secret-bob")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestAuthenticateUnknownEmailVerifiesDummyHash(t *testing.T) {
	store := newFixture(t).store
	inner, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	spy := &spyHasher{PasswordHasher: inner}
	tokens, err := auth.NewTokenService("test-secret", "HS256", time.Hour)
	require.NoError(t, err)
	users := NewUserService(store, spy, tokens, zap.NewNop())

	_, err = users.Authenticate(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Equal(t, []string{inner.DummyHash()}, spy.verified)
}

func TestAuthenticatePersistsRehash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "carol")

	inner, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	newHash, err := inner.Hash("secret-carol")
	require.NoError(t, err)
	spy := &spyHasher{PasswordHasher: inner, rehash: newHash}
	users := NewUserService(f.store, spy, f.tokens, zap.NewNop())

	_, err = users.Authenticate(ctx, "carol@example.com", "secret-carol")
	require.NoError(t, err)

	stored, err := f.store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, newHash, stored.HashedPassword)
}

func TestLoginAndResolveUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "dave")

	token, err := f.users.Login(ctx, "dave@example.com", "secret-dave")
	require.NoError(t, err)
	assert.Equal(t, auth.TokenTypeBearer, token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)

	got, err := f.users.ResolveUser(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = f.users.ResolveUser(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)

	orphan, err := f.tokens.Issue("4a0f4c57-6a5c-4f57-9a52-000000000000")
	require.NoError(t, err)
	_, err = f.users.ResolveUser(ctx, orphan.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveUserUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newMapCache()
	f.users.WithCache(cache)
	user := f.signup(t, "erin")

	token, err := f.users.IssueToken(user)
	require.NoError(t, err)
	_, err = f.users.ResolveUser(ctx, token.AccessToken)
	require.NoError(t, err)

	cached, err := cache.GetUserCache(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, cached.Email)

	_, err = f.users.SetAdmin(ctx, user.Email, true)
	require.NoError(t, err)
	_, err = cache.GetUserCache(ctx, user.ID)
	assert.ErrorIs(t, err, errCacheMiss)

	got, err := f.users.ResolveUser(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "frank")

	_, err := f.users.RequireAdmin(user)
	assert.ErrorIs(t, err, ErrForbidden)

	admin, err := f.users.SetAdmin(ctx, user.Email, true)
	require.NoError(t, err)
	got, err := f.users.RequireAdmin(admin)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	revoked, err := f.users.SetAdmin(ctx, user.Email, false)
	require.NoError(t, err)
	_, err = f.users.RequireAdmin(revoked)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.users.SetAdmin(ctx, "missing@example.com", true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
