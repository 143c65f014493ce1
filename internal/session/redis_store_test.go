package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"buildea/api/internal/store"
	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rs, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() { rs.Close() })
	return rs, s
}

func TestNewRedisStore(t *testing.T) {
	rs, _ := setupTestRedis(t)
	if err := rs.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestSaveAndConsumeRefreshSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "test-token-hash", "user-123", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}

	user, err := rs.ConsumeRefreshSession(ctx, "test-token-hash")
	if err != nil {
		t.Fatalf("ConsumeRefreshSession() error = %v", err)
	}
	if user.ID != "user-123" {
		t.Errorf("expected user ID user-123, got %s", user.ID)
	}
}

func TestSaveRejectsExpiredSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	if err := rs.SaveRefreshSession(context.Background(), "old", "user-1", time.Now().Add(-time.Minute)); err == nil {
		t.Fatal("expected error for already expired session")
	}
}

func TestConsumeExpiredSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "expired-token", "user-456", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}
	s.FastForward(2 * time.Minute)

	_, err := rs.ConsumeRefreshSession(ctx, "expired-token")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ConsumeRefreshSession() error = %v, want ErrNotFound", err)
	}
}

func TestConsumeNonExistentSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	_, err := rs.ConsumeRefreshSession(context.Background(), "non-existent-token")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("ConsumeRefreshSession() error = %v, want ErrNotFound", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "token-to-revoke", "user-789", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, "token-to-revoke"); err != nil {
		t.Fatalf("RevokeRefreshSession() error = %v", err)
	}
	if _, err := rs.ConsumeRefreshSession(ctx, "token-to-revoke"); err == nil {
		t.Error("expected error for revoked token, got nil")
	}
	if err := rs.RevokeRefreshSession(ctx, "non-existent-token"); err != nil {
		t.Errorf("RevokeRefreshSession() for unknown token error = %v", err)
	}
}

func TestRevokeUserSessions(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(time.Hour)

	for _, save := range []struct{ hash, user string }{
		{"token-1", "user-1"},
		{"token-2", "user-1"},
		{"token-3", "user-2"},
	} {
		if err := rs.SaveRefreshSession(ctx, save.hash, save.user, expiresAt); err != nil {
			t.Fatalf("SaveRefreshSession(%s) error = %v", save.hash, err)
		}
	}

	if err := rs.RevokeUserSessions(ctx, "user-1"); err != nil {
		t.Fatalf("RevokeUserSessions() error = %v", err)
	}
	for _, hash := range []string{"token-1", "token-2"} {
		if _, err := rs.ConsumeRefreshSession(ctx, hash); err == nil {
			t.Errorf("expected %s to be revoked", hash)
		}
	}
	if s.Exists(keyPrefix + "user:user-1") {
		t.Error("expected user index to be removed")
	}

	user, err := rs.ConsumeRefreshSession(ctx, "token-3")
	if err != nil {
		t.Fatalf("ConsumeRefreshSession(token-3) error = %v", err)
	}
	if user.ID != "user-2" {
		t.Errorf("expected user-2, got %s", user.ID)
	}
}

func TestConsumeRefreshSessionRedeemsOnce(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "shared-token", "user-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}

	var redeemed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user, err := rs.ConsumeRefreshSession(ctx, "shared-token")
			switch {
			case err == nil:
				if user.ID != "user-1" {
					t.Errorf("expected user-1, got %s", user.ID)
				}
				redeemed.Add(1)
			case !errors.Is(err, store.ErrNotFound):
				t.Errorf("ConsumeRefreshSession() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := redeemed.Load(); got != 1 {
		t.Fatalf("token redeemed %d times, want 1", got)
	}
	if members, _ := s.Members(keyPrefix + "user:user-1"); len(members) != 0 {
		t.Errorf("expected user index to drop consumed token, got %v", members)
	}
}
