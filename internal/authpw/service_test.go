package authpw

import (
	"context"
	"strings"
	"testing"

	"buildea/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string // email -> userID
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
	}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if userID, ok := m.emailIndex[email]; ok {
		return m.users[userID], nil
	}
	return store.User{}, store.ErrNotFound
}

func (m *mockUserStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, store.ErrNotFound
}

func (m *mockUserStore) CreateUser(ctx context.Context, user store.User) error {
	if _, ok := m.emailIndex[user.Email]; ok {
		return store.ErrConflict
	}
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *mockUserStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *mockUserStore) UpdateUserDisplayName(ctx context.Context, userID, displayName string) error {
	user, ok := m.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.DisplayName = displayName
	m.users[userID] = user
	return nil
}

type denyAfter struct {
	remaining int
}

func (d *denyAfter) Allow(string) bool {
	if d.remaining <= 0 {
		return false
	}
	d.remaining--
	return true
}

func newTestService(limiter Limiter) (*Service, *mockUserStore) {
	mockStore := newMockUserStore()
	return NewService(mockStore, limiter).WithCost(bcrypt.MinCost), mockStore
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(nil)

	t.Run("successful sign up", func(t *testing.T) {
		user, err := svc.SignUp(ctx, SignUpRequest{
			Email:       "  Test@Example.com ",
			Password:    "password123",
			DisplayName: "Test User",
		})
		if err != nil {
			t.Fatalf("SignUp() error = %v", err)
		}
		if user.ID == "" {
			t.Error("expected ID to be set")
		}
		if user.Email != "test@example.com" {
			t.Errorf("expected normalized email, got %q", user.Email)
		}
		if user.Role != store.RoleMember {
			t.Errorf("expected member role, got %q", user.Role)
		}
		if user.PasswordHash == "password123" {
			t.Error("password stored in clear text")
		}
	})

	tests := []struct {
		name string
		req  SignUpRequest
		code string
	}{
		{"duplicate email", SignUpRequest{Email: "TEST@example.com", Password: "password123", DisplayName: "Again"}, CodeEmailInUse},
		{"short password", SignUpRequest{Email: "test2@example.com", Password: "short", DisplayName: "Test"}, CodeWeakPassword},
		{"invalid email", SignUpRequest{Email: "not-an-email", Password: "password123", DisplayName: "Test"}, CodeInvalidEmail},
		{"missing name", SignUpRequest{Email: "test3@example.com", Password: "password123"}, CodeInvalidName},
		{"long name", SignUpRequest{Email: "test4@example.com", Password: "password123", DisplayName: strings.Repeat("a", 51)}, CodeInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tt.req)
			if got := CodeOf(err); got != tt.code {
				t.Fatalf("SignUp() code = %q (err %v), want %q", got, err, tt.code)
			}
		})
	}
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(nil)

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "test@example.com", Password: "password123", DisplayName: "Test User"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	t.Run("successful sign in", func(t *testing.T) {
		user, err := svc.SignIn(ctx, SignInRequest{Email: "Test@example.com", Password: "password123"})
		if err != nil {
			t.Fatalf("SignIn() error = %v", err)
		}
		if user.Email != "test@example.com" {
			t.Errorf("expected email test@example.com, got %s", user.Email)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "test@example.com", Password: "wrongpassword"})
		if CodeOf(err) != CodeWrongPassword {
			t.Fatalf("SignIn() error = %v, want %s", err, CodeWrongPassword)
		}
	})

	t.Run("non-existent user", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{Email: "nonexistent@example.com", Password: "password123"})
		if CodeOf(err) != CodeUserNotFound {
			t.Fatalf("SignIn() error = %v, want %s", err, CodeUserNotFound)
		}
	})
}

func TestSignInRateLimited(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(&denyAfter{remaining: 2})
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@example.com", Password: "password123", DisplayName: "A"}); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@example.com", Password: "bad-password"}); CodeOf(err) != CodeWrongPassword {
			t.Fatalf("attempt %d: SignIn() error = %v", i, err)
		}
	}
	_, err := svc.SignIn(ctx, SignInRequest{Email: "a@example.com", Password: "password123"})
	if CodeOf(err) != CodeTooManyRequests {
		t.Fatalf("SignIn() error = %v, want %s", err, CodeTooManyRequests)
	}
}

func TestUpdateDisplayName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(nil)
	user, err := svc.SignUp(ctx, SignUpRequest{Email: "a@example.com", Password: "password123", DisplayName: "A"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	updated, err := svc.UpdateDisplayName(ctx, user.ID, "  Renamed ")
	if err != nil {
		t.Fatalf("UpdateDisplayName() error = %v", err)
	}
	if updated.DisplayName != "Renamed" {
		t.Fatalf("display name = %q, want Renamed", updated.DisplayName)
	}

	if _, err := svc.UpdateDisplayName(ctx, "missing", "Name"); CodeOf(err) != CodeUserNotFound {
		t.Fatalf("UpdateDisplayName(missing) error = %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(nil)
	user, err := svc.SignUp(ctx, SignUpRequest{Email: "a@example.com", Password: "password123", DisplayName: "A"})
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrong-password", "newpassword123"); CodeOf(err) != CodeWrongPassword {
		t.Fatalf("ChangePassword(wrong current) error = %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "password123", "short"); CodeOf(err) != CodeWeakPassword {
		t.Fatalf("ChangePassword(weak) error = %v", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "password123", "newpassword123"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@example.com", Password: "password123"}); err == nil {
		t.Error("expected old password to not work")
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@example.com", Password: "newpassword123"}); err != nil {
		t.Errorf("expected new password to work: %v", err)
	}
	if err := svc.VerifyPassword(ctx, user.ID, "newpassword123"); err != nil {
		t.Errorf("VerifyPassword() error = %v", err)
	}
}
