package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"buildea/api/internal/auth"
	"buildea/api/internal/authpw"
	"buildea/api/internal/identity"
	"buildea/api/internal/rbac"
	"buildea/api/internal/store"
	"buildea/api/internal/util"
)

// AuthSession is the token pair handed to a client after sign-in.
type AuthSession struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         store.User
}

type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type DeleteAccountInput struct {
	Password string `json:"password" validate:"required"`
	Reason   string `json:"reason" validate:"max=500"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (s *Service) SignUp(ctx context.Context, input SignUpInput) (AuthSession, error) {
	user, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
		Role:        store.RoleMember,
	})
	if err != nil {
		return AuthSession{}, err
	}
	s.logger.Info(ctx, "account created", zap.String("user.id", user.ID))
	return s.issueSession(ctx, user)
}

func (s *Service) SignIn(ctx context.Context, input SignInInput) (AuthSession, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: input.Email, Password: input.Password})
	if err != nil {
		return AuthSession{}, err
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token. The old token is consumed atomically, so
// concurrent refreshes with one token yield a single new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthSession, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return AuthSession{}, unauthorized()
	}
	owner, err := s.sessions.ConsumeRefreshSession(ctx, auth.HashToken(refreshToken))
	if errors.Is(err, store.ErrNotFound) {
		return AuthSession{}, unauthorized()
	}
	if err != nil {
		return AuthSession{}, fmt.Errorf("consume refresh session: %w", err)
	}
	user, err := s.store.GetUserByID(ctx, owner.ID)
	if errors.Is(err, store.ErrNotFound) {
		return AuthSession{}, unauthorized()
	}
	if err != nil {
		return AuthSession{}, fmt.Errorf("load user: %w", err)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	if err := s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, user store.User) (AuthSession, error) {
	token, expiresAt, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, user.Role, util.NewID("jti"), s.cfg.AccessTTL)
	if err != nil {
		return AuthSession{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, s.now().Add(s.cfg.RefreshTTL)); err != nil {
		return AuthSession{}, fmt.Errorf("save refresh session: %w", err)
	}

	return AuthSession{
		AccessToken:  token,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

// SessionFromToken resolves a bearer token to the signed-in account. The user
// is reloaded so deleted accounts and role changes take effect immediately.
func (s *Service) SessionFromToken(ctx context.Context, token string) (identity.Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return identity.Session{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return identity.Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return identity.Session{}, fmt.Errorf("load session user: %w", err)
	}
	return identity.Session{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        rbac.Normalize(user.Role),
	}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, session identity.Session, displayName string) (map[string]any, error) {
	if !session.Authenticated() {
		return nil, unauthorized()
	}
	user, err := s.passwords.UpdateDisplayName(ctx, session.UserID, displayName)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

func (s *Service) ChangePassword(ctx context.Context, session identity.Session, input ChangePasswordInput) error {
	if !session.Authenticated() {
		return unauthorized()
	}
	if err := validate.Struct(input); err != nil {
		return err
	}
	return s.passwords.ChangePassword(ctx, session.UserID, input.CurrentPassword, input.NewPassword)
}

// DeleteAccount removes the caller's account after re-checking the password.
// The user row, settings, sessions and notifications go in one transaction
// that also records a deletion log; ideas and comments stay, detached.
func (s *Service) DeleteAccount(ctx context.Context, session identity.Session, input DeleteAccountInput) error {
	if !session.Authenticated() {
		return unauthorized()
	}
	if err := validate.Struct(input); err != nil {
		return err
	}
	if err := s.passwords.VerifyPassword(ctx, session.UserID, input.Password); err != nil {
		return err
	}
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	entry := store.DeletionLog{
		ID:        util.NewID("del"),
		UserID:    user.ID,
		Email:     user.Email,
		Reason:    strings.TrimSpace(input.Reason),
		DeletedAt: s.now(),
	}
	if err := s.store.DeleteUserAccount(ctx, user.ID, entry); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if revoker, ok := s.sessions.(userSessionRevoker); ok {
		if err := revoker.RevokeUserSessions(ctx, user.ID); err != nil {
			s.logger.Warn(ctx, "revoke sessions after account deletion", zap.Error(err))
		}
	}
	s.logger.Info(ctx, "account deleted", zap.String("user.id", user.ID))
	return nil
}

// AdminDeleteUserRequest is the body of the token-guarded admin endpoint.
type AdminDeleteUserRequest struct {
	UserID string `json:"userId" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

// AdminDeleteUser never deletes: accounts are removed by their owners. It
// checks the token and the body, then points the caller at self-service.
func (s *Service) AdminDeleteUser(ctx context.Context, token string, req AdminDeleteUserRequest) (map[string]any, error) {
	if s.cfg.AdminAPIToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminAPIToken)) != 1 {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid admin token", nil)
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "admin delete-user requested", zap.String("target.user_id", req.UserID))
	return map[string]any{
		"success": false,
		"message": "Account deletion is self-service. Ask the user to delete their account from settings.",
	}, nil
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":             user.ID,
		"displayName":    user.DisplayName,
		"email":          user.Email,
		"role":           user.Role,
		"postCount":      user.PostCount,
		"themePostCount": user.ThemePostCount,
		"createdAt":      user.CreatedAt,
	}
}

func authSessionPayload(session AuthSession) map[string]any {
	return map[string]any{
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
		"expiresAt":    session.ExpiresAt.Unix(),
		"user":         userPayload(session.User),
	}
}
