package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/ecomshop/pkg/auth"
	"github.com/example/ecomshop/pkg/events"
	"github.com/example/ecomshop/pkg/models"
	"github.com/example/ecomshop/pkg/repository"
	"go.uber.org/zap"
)

type SignupInput struct {
	Username string
	Email    string
	Phone    string
	Password string
}

type UserService struct {
	store    repository.UserStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	cache    UserCache
	notifier Notifier
	logger   *zap.Logger
}

func NewUserService(store repository.UserStore, hasher PasswordHasher, tokens TokenIssuer, logger *zap.Logger) *UserService {
	return &UserService{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		notifier: nopNotifier{},
		logger:   logger.Named("users"),
	}
}

// WithCache enables caching of resolved users.
func (s *UserService) WithCache(cache UserCache) *UserService {
	s.cache = cache
	return s
}

func (s *UserService) WithNotifier(n Notifier) *UserService {
	s.notifier = n
	return s
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	switch {
	case strings.TrimSpace(in.Username) == "":
		return nil, validationError("username is required")
	case in.Email == "":
		return nil, validationError("email is required")
	case in.Phone == "":
		return nil, validationError("phone is required")
	case in.Password == "":
		return nil, validationError("password is required")
	case len(in.Password) > auth.MaxPasswordBytes:
		return nil, validationError("password must be at most %d bytes", auth.MaxPasswordBytes)
	}

	_, err := s.store.GetUserByEmail(ctx, in.Email)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, validationError("password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:       in.Username,
		Email:          in.Email,
		Phone:          in.Phone,
		HashedPassword: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			if strings.Contains(dup.Key, "phone") {
				return nil, ErrDuplicatePhone
			}
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User signed up", zap.String("user_id", user.ID))
	s.notifier.Notify(events.New(events.UserSignedUp, user.ID, user.ID, map[string]interface{}{
		"username": user.Username,
		"email":    user.Email,
	}))
	return user, nil
}

// Authenticate checks the credentials. An unknown email still pays for one
// hash verification so both failures take the same time.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		_, _, _ = s.hasher.Verify(password, s.hasher.DummyHash())
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, rehash, err := s.hasher.Verify(password, user.HashedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, ErrBadCredentials
	}

	if rehash != "" {
		if err := s.store.UpdatePasswordHash(ctx, user.ID, rehash); err != nil {
			return nil, fmt.Errorf("failed to store rehashed password: %w", err)
		}
		user.HashedPassword = rehash
		s.logger.Info("Password hash upgraded", zap.String("user_id", user.ID))
	}
	return user, nil
}

func (s *UserService) IssueToken(user *models.User) (*auth.Token, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}

// Login authenticates and issues a bearer token in one step.
func (s *UserService) Login(ctx context.Context, email, password string) (*auth.Token, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.IssueToken(user)
}

// ResolveUser maps a bearer token to its user. Any token problem, and a
// subject that no longer exists, is ErrUnauthorized.
func (s *UserService) ResolveUser(ctx context.Context, token string) (*models.User, error) {
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if s.cache != nil {
		cached, err := s.cache.GetUserCache(ctx, subject)
		if err == nil {
			return &models.User{
				ID:        cached.ID,
				Username:  cached.Username,
				Email:     cached.Email,
				Phone:     cached.Phone,
				IsAdmin:   cached.IsAdmin,
				CreatedAt: cached.CreatedAt,
			}, nil
		}
	}

	user, err := s.store.GetUserByID(ctx, subject)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if s.cache != nil {
		err := s.cache.CacheUser(ctx, &repository.UserCache{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Phone:     user.Phone,
			IsAdmin:   user.IsAdmin,
			CreatedAt: user.CreatedAt,
		})
		if err != nil {
			s.logger.Warn("Failed to cache user", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return user, nil
}

func (s *UserService) RequireAdmin(user *models.User) (*models.User, error) {
	if user == nil || !user.IsAdmin {
		return nil, ErrForbidden
	}
	return user, nil
}

// SetAdmin grants or revokes admin rights for the user with the given email.
func (s *UserService) SetAdmin(ctx context.Context, email string, admin bool) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.store.SetAdmin(ctx, user.ID, admin); err != nil {
		return nil, fmt.Errorf("failed to update admin flag: %w", err)
	}
	user.IsAdmin = admin

	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to invalidate cached user: %w", err)
		}
	}

	s.logger.Info("Admin flag changed", zap.String("user_id", user.ID), zap.Bool("is_admin", admin))
	return user, nil
}
