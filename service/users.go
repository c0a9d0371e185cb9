package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mdhv11/cardwiz/config"
	"github.com/mdhv11/cardwiz/middleware"
	"github.com/mdhv11/cardwiz/model"
	"github.com/mdhv11/cardwiz/pkg/cache"
)

const userProfileCache = "userProfileByEmailV2"

// AuthResult is returned from register and login.
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

// UserService handles accounts: registration, login, profile reads and
// password changes. Profile reads are cached by email.
type UserService struct {
	users UserStore
	cache *cache.Cache
	auth  *config.AuthConfig
}

func NewUserService(users UserStore, c *cache.Cache, authCfg *config.AuthConfig) *UserService {
	return &UserService{users: users, cache: c, auth: authCfg}
}

// Register creates an account and returns a signed token for it.
func (s *UserService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", ErrValidation)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:    email,
		Password: string(hashed),
		Name:     strings.TrimSpace(name),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.issueToken(user)
}

// Login verifies credentials and returns a signed token.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	return s.issueToken(user)
}

// Profile loads a user's profile, served from cache when fresh.
func (s *UserService) Profile(ctx context.Context, userID int64, email string) (*model.User, error) {
	cacheKey := normalizeEmail(email)

	var cached model.User
	if cacheKey != "" && s.cache.Get(ctx, userProfileCache, cacheKey, &cached) {
		return &cached, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	if cacheKey != "" {
		s.cache.Put(ctx, userProfileCache, cacheKey, user)
	}
	return user, nil
}

// ChangePassword verifies the current password before storing a new hash and
// dropping the cached profile.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if len(next) < 8 {
		return fmt.Errorf("%w: new password must be at least 8 characters", ErrValidation)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)) != nil {
		return fmt.Errorf("%w: current password is incorrect", ErrUnauthorized)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.cache.Evict(ctx, userProfileCache, normalizeEmail(user.Email))
	return nil
}

func (s *UserService) issueToken(user *model.User) (*AuthResult, error) {
	token, expiresAt, err := middleware.GenerateToken(user.ID, user.Email, s.auth)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
