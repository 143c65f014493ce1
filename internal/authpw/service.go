// Package authpw provides email/password authentication.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"buildea/api/internal/store"
	"buildea/api/internal/util"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// Provider-style error codes surfaced to clients.
const (
	CodeEmailInUse      = "auth/email-already-in-use"
	CodeWrongPassword   = "auth/wrong-password"
	CodeUserNotFound    = "auth/user-not-found"
	CodeTooManyRequests = "auth/too-many-requests"
	CodeWeakPassword    = "auth/weak-password"
	CodeInvalidEmail    = "auth/invalid-email"
	CodeInvalidName     = "auth/invalid-display-name"
)

const (
	minPasswordLength    = 8
	maxDisplayNameLength = 50
)

// Error is an authentication failure carrying a provider-style code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func authError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf returns the auth code of err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error
	UpdateUserDisplayName(ctx context.Context, userID, displayName string) error
}

// Limiter throttles repeated sign-in attempts per key.
type Limiter interface {
	Allow(key string) bool
}

// Service provides email/password authentication
type Service struct {
	store    UserStore
	limiter  Limiter
	validate *validator.Validate
	cost     int
}

// NewService creates a new auth service. limiter may be nil.
func NewService(store UserStore, limiter Limiter) *Service {
	return &Service{
		store:    store,
		limiter:  limiter,
		validate: validator.New(),
		cost:     bcrypt.DefaultCost,
	}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

// SignUp creates a new member account and returns it.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	email, err := s.normalizeEmail(req.Email)
	if err != nil {
		return store.User{}, err
	}
	displayName, err := normalizeDisplayName(req.DisplayName)
	if err != nil {
		return store.User{}, err
	}
	if err := checkPassword(req.Password); err != nil {
		return store.User{}, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return store.User{}, authError(CodeEmailInUse, "email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = store.RoleMember
	}
	now := time.Now().UTC()
	user := store.User{
		ID:           util.NewID("usr"),
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.User{}, authError(CodeEmailInUse, "email already registered")
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SignInRequest contains sign-in parameters
type SignInRequest struct {
	Email    string
	Password string
}

// SignIn authenticates a user
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	email, err := s.normalizeEmail(req.Email)
	if err != nil {
		return store.User{}, err
	}
	if s.limiter != nil && !s.limiter.Allow("signin:"+email) {
		return store.User{}, authError(CodeTooManyRequests, "too many sign-in attempts, try again later")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, authError(CodeUserNotFound, "no account for this email")
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return store.User{}, authError(CodeWrongPassword, "wrong password")
	}
	return user, nil
}

// UpdateDisplayName changes the profile name shown on ideas and comments.
func (s *Service) UpdateDisplayName(ctx context.Context, userID, displayName string) (store.User, error) {
	name, err := normalizeDisplayName(displayName)
	if err != nil {
		return store.User{}, err
	}
	if err := s.store.UpdateUserDisplayName(ctx, userID, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, authError(CodeUserNotFound, "account no longer exists")
		}
		return store.User{}, fmt.Errorf("update display name: %w", err)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return store.User{}, fmt.Errorf("reload user: %w", err)
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new hash.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return authError(CodeUserNotFound, "account no longer exists")
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return authError(CodeWrongPassword, "wrong password")
	}
	if err := checkPassword(next); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// VerifyPassword checks a password for an already identified user, used before
// destructive account operations.
func (s *Service) VerifyPassword(ctx context.Context, userID, password string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return authError(CodeUserNotFound, "account no longer exists")
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return authError(CodeWrongPassword, "wrong password")
	}
	return nil
}

func (s *Service) normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := s.validate.Var(email, "required,email,max=254"); err != nil {
		return "", authError(CodeInvalidEmail, "email address is invalid")
	}
	return email, nil
}

func normalizeDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
		return "", authError(CodeInvalidName, fmt.Sprintf("display name must be 1-%d characters", maxDisplayNameLength))
	}
	return name, nil
}

func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return authError(CodeWeakPassword, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}
