package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is the subset of store methods the shared suite exercises.
type backend interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByID(ctx context.Context, id string) (User, error)
	DeleteUserAccount(ctx context.Context, userID string, entry DeletionLog) error
	ListDeletionLogs(ctx context.Context) ([]DeletionLog, error)
	InsertIdea(ctx context.Context, idea Idea) error
	GetIdea(ctx context.Context, id string) (Idea, error)
	ListIdeas(ctx context.Context) ([]Idea, error)
	UpdateIdeaStatus(ctx context.Context, id string, status IdeaStatus, action IdeaAction) (Idea, error)
	DeleteIdea(ctx context.Context, id string) error
	InsertLike(ctx context.Context, like Like) (bool, error)
	DeleteLike(ctx context.Context, ideaID, visitorID string) (bool, error)
	HasLike(ctx context.Context, ideaID, visitorID string) (bool, error)
	CountLikes(ctx context.Context, ideaID string) (int, error)
	InsertComment(ctx context.Context, comment Comment) error
	ListComments(ctx context.Context, ideaID string) ([]Comment, error)
	InsertTheme(ctx context.Context, theme Theme) error
	ListThemes(ctx context.Context) ([]Theme, error)
	GetActiveTheme(ctx context.Context) (*Theme, error)
	ActivateTheme(ctx context.Context, id string) error
	UpdateTheme(ctx context.Context, id string, patch ThemePatch) (Theme, error)
	InsertNotification(ctx context.Context, n Notification) error
	MarkNotificationRead(ctx context.Context, id, userID string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	ConsumeRefreshSession(ctx context.Context, tokenHash string) (User, error)
}

func runStoreSuite(t *testing.T, newBackend func(t *testing.T) backend) {
	t.Run("refresh token redeemed once under concurrency", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.CreateUser(ctx, testUser("user_refresh")))
		require.NoError(t, s.SaveRefreshSession(ctx, "hash_shared", "user_refresh", time.Now().Add(time.Hour)))

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			redeemed int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				user, err := s.ConsumeRefreshSession(ctx, "hash_shared")
				if err != nil {
					assert.ErrorIs(t, err, ErrNotFound)
					return
				}
				assert.Equal(t, "user_refresh", user.ID)
				mu.Lock()
				redeemed++
				mu.Unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, redeemed)
	})

	t.Run("idea round trip", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		idea := testIdea("idea_roundtrip")
		require.NoError(t, s.InsertIdea(ctx, idea))

		ideas, err := s.ListIdeas(ctx)
		require.NoError(t, err)
		require.Len(t, ideas, 1)
		assert.Equal(t, "T", ideas[0].Title)
		assert.Equal(t, "D", ideas[0].Description)
		assert.Equal(t, ModeOnline, ideas[0].Mode)
		assert.Equal(t, StatusIdea, ideas[0].Status)
		assert.Equal(t, 0, ideas[0].Likes)
	})

	t.Run("ideas listed newest first", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		older := testIdea("idea_older")
		older.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
		newer := testIdea("idea_newer")
		require.NoError(t, s.InsertIdea(ctx, older))
		require.NoError(t, s.InsertIdea(ctx, newer))

		ideas, err := s.ListIdeas(ctx)
		require.NoError(t, err)
		require.Len(t, ideas, 2)
		assert.Equal(t, "idea_newer", ideas[0].ID)
	})

	t.Run("status update appends history", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.InsertIdea(ctx, testIdea("idea_status")))

		for i := 0; i < 2; i++ {
			updated, err := s.UpdateIdeaStatus(ctx, "idea_status", StatusPreparing, IdeaAction{
				Action:    string(StatusPreparing),
				Details:   fmt.Sprintf("pass %d", i),
				Actor:     "admin",
				Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			})
			require.NoError(t, err)
			assert.Equal(t, StatusPreparing, updated.Status)
			assert.Len(t, updated.History, i+1)
		}

		_, err := s.UpdateIdeaStatus(ctx, "missing", StatusChecked, IdeaAction{Timestamp: time.Now()})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent status updates keep every history entry", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.InsertIdea(ctx, testIdea("idea_race")))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.UpdateIdeaStatus(ctx, "idea_race", StatusChecked, IdeaAction{
					Action:    string(StatusChecked),
					Details:   fmt.Sprintf("writer %d", i),
					Timestamp: time.Now().UTC().Truncate(time.Millisecond),
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		idea, err := s.GetIdea(ctx, "idea_race")
		require.NoError(t, err)
		assert.Len(t, idea.History, 8)
	})

	t.Run("likes are unique per visitor", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.InsertIdea(ctx, testIdea("idea_likes")))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.InsertLike(ctx, Like{IdeaID: "idea_likes", VisitorID: "v_same", CreatedAt: time.Now().UTC()})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		idea, err := s.GetIdea(ctx, "idea_likes")
		require.NoError(t, err)
		assert.Equal(t, 1, idea.Likes)
		count, err := s.CountLikes(ctx, "idea_likes")
		require.NoError(t, err)
		assert.Equal(t, idea.Likes, count)

		liked, err := s.InsertLike(ctx, Like{IdeaID: "idea_likes", VisitorID: "v_other", CreatedAt: time.Now().UTC()})
		require.NoError(t, err)
		assert.True(t, liked)

		for visitor, want := range map[string]bool{"v_same": true, "v_other": true, "v_unused": false} {
			has, err := s.HasLike(ctx, "idea_likes", visitor)
			require.NoError(t, err)
			assert.Equal(t, want, has, visitor)
		}

		removed, err := s.DeleteLike(ctx, "idea_likes", "v_same")
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = s.DeleteLike(ctx, "idea_likes", "v_same")
		require.NoError(t, err)
		assert.False(t, removed)

		idea, err = s.GetIdea(ctx, "idea_likes")
		require.NoError(t, err)
		assert.Equal(t, 1, idea.Likes)

		_, err = s.InsertLike(ctx, Like{IdeaID: "missing", VisitorID: "v_same", CreatedAt: time.Now().UTC()})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete idea cascades", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.InsertIdea(ctx, testIdea("idea_cascade")))
		require.NoError(t, s.InsertComment(ctx, Comment{ID: "cmt_1", IdeaID: "idea_cascade", Text: "nice", CreatedAt: time.Now().UTC()}))
		_, err := s.InsertLike(ctx, Like{IdeaID: "idea_cascade", VisitorID: "v_1", CreatedAt: time.Now().UTC()})
		require.NoError(t, err)

		require.NoError(t, s.DeleteIdea(ctx, "idea_cascade"))

		ideas, err := s.ListIdeas(ctx)
		require.NoError(t, err)
		assert.Empty(t, ideas)
		comments, err := s.ListComments(ctx, "idea_cascade")
		require.NoError(t, err)
		assert.Empty(t, comments)
		has, err := s.HasLike(ctx, "idea_cascade", "v_1")
		require.NoError(t, err)
		assert.False(t, has)

		assert.ErrorIs(t, s.DeleteIdea(ctx, "idea_cascade"), ErrNotFound)
		assert.ErrorIs(t, s.InsertComment(ctx, Comment{ID: "cmt_2", IdeaID: "idea_cascade", Text: "late", CreatedAt: time.Now().UTC()}), ErrNotFound)
	})

	t.Run("single active theme", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.InsertTheme(ctx, testTheme("theme_a", true)))
		require.NoError(t, s.InsertTheme(ctx, testTheme("theme_b", true)))
		require.NoError(t, s.InsertTheme(ctx, testTheme("theme_c", false)))
		assertSingleActive(t, s, "theme_b")

		require.NoError(t, s.ActivateTheme(ctx, "theme_c"))
		assertSingleActive(t, s, "theme_c")

		active := true
		_, err := s.UpdateTheme(ctx, "theme_a", ThemePatch{IsActive: &active})
		require.NoError(t, err)
		assertSingleActive(t, s, "theme_a")

		assert.ErrorIs(t, s.ActivateTheme(ctx, "missing"), ErrNotFound)
		assertSingleActive(t, s, "theme_a")
	})

	t.Run("concurrent activations leave one active theme", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		ids := []string{"theme_1", "theme_2", "theme_3", "theme_4"}
		for _, id := range ids {
			require.NoError(t, s.InsertTheme(ctx, testTheme(id, false)))
		}
		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				err := s.ActivateTheme(ctx, id)
				if err != nil {
					assert.ErrorIs(t, err, ErrConflict)
				}
			}(id)
		}
		wg.Wait()

		themes, err := s.ListThemes(ctx)
		require.NoError(t, err)
		activeCount := 0
		for _, theme := range themes {
			if theme.IsActive {
				activeCount++
			}
		}
		assert.Equal(t, 1, activeCount)
	})

	t.Run("notifications unread count", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.CreateUser(ctx, testUser("user_n")))
		for i := 0; i < 3; i++ {
			require.NoError(t, s.InsertNotification(ctx, Notification{
				ID:        fmt.Sprintf("ntf_%d", i),
				UserID:    "user_n",
				Title:     "status",
				Message:   "changed",
				Type:      NotificationStatusChange,
				CreatedAt: time.Now().UTC(),
			}))
		}
		require.NoError(t, s.MarkNotificationRead(ctx, "ntf_0", "user_n"))
		assert.ErrorIs(t, s.MarkNotificationRead(ctx, "ntf_1", "someone_else"), ErrNotFound)

		count, err := s.CountUnreadNotifications(ctx, "user_n")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("user counters and account deletion", func(t *testing.T) {
		s := newBackend(t)
		ctx := context.Background()
		require.NoError(t, s.CreateUser(ctx, testUser("user_c")))
		assert.ErrorIs(t, s.CreateUser(ctx, User{ID: "user_dup", Email: "user_c@example.com", DisplayName: "dup", Role: RoleMember, CreatedAt: time.Now().UTC()}), ErrConflict)
		require.NoError(t, s.InsertTheme(ctx, testTheme("theme_u", true)))

		userID := "user_c"
		themeID := "theme_u"
		plain := testIdea("idea_u1")
		plain.UserID = &userID
		themed := testIdea("idea_u2")
		themed.UserID = &userID
		themed.ThemeID = &themeID
		require.NoError(t, s.InsertIdea(ctx, plain))
		require.NoError(t, s.InsertIdea(ctx, themed))

		user, err := s.GetUserByID(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, 2, user.PostCount)
		assert.Equal(t, 1, user.ThemePostCount)

		require.NoError(t, s.DeleteUserAccount(ctx, userID, DeletionLog{
			ID: "del_1", UserID: userID, Email: user.Email, Reason: "self-service", DeletedAt: time.Now().UTC(),
		}))
		_, err = s.GetUserByID(ctx, userID)
		assert.ErrorIs(t, err, ErrNotFound)

		idea, err := s.GetIdea(ctx, "idea_u1")
		require.NoError(t, err)
		assert.Nil(t, idea.UserID)

		logs, err := s.ListDeletionLogs(ctx)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, userID, logs[0].UserID)
	})
}

func assertSingleActive(t *testing.T, s backend, wantID string) {
	t.Helper()
	active, err := s.GetActiveTheme(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, wantID, active.ID)

	themes, err := s.ListThemes(context.Background())
	require.NoError(t, err)
	for _, theme := range themes {
		assert.Equal(t, theme.ID == wantID, theme.IsActive, theme.ID)
	}
}

func testIdea(id string) Idea {
	return Idea{
		ID:          id,
		Title:       "T",
		Description: "D",
		Mode:        ModeOnline,
		Status:      StatusIdea,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testTheme(id string, active bool) Theme {
	return Theme{
		ID:        id,
		Title:     "Theme " + id,
		StartDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		IsActive:  active,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func testUser(id string) User {
	return User{
		ID:           id,
		DisplayName:  "User " + id,
		Email:        id + "@example.com",
		PasswordHash: "hash",
		Role:         RoleMember,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}
