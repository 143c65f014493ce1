package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) backend {
		return NewMemoryStore()
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.InsertIdea(ctx, testIdea("idea_copy")))
	_, err := s.UpdateIdeaStatus(ctx, "idea_copy", StatusChecked, IdeaAction{Action: "checked", Timestamp: time.Now()})
	require.NoError(t, err)

	idea, err := s.GetIdea(ctx, "idea_copy")
	require.NoError(t, err)
	idea.History[0].Details = "mutated"

	fresh, err := s.GetIdea(ctx, "idea_copy")
	require.NoError(t, err)
	assert.Equal(t, "", fresh.History[0].Details)
}

func TestMemoryStoreRefreshSessions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, testUser("user_r")))

	require.NoError(t, s.SaveRefreshSession(ctx, "hash-1", "user_r", time.Now().Add(time.Hour)))
	user, err := s.ConsumeRefreshSession(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "user_r", user.ID)
	_, err = s.ConsumeRefreshSession(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrNotFound, "a token is redeemed once")

	require.NoError(t, s.SaveRefreshSession(ctx, "hash-expired", "user_r", time.Now().Add(-time.Minute)))
	_, err = s.ConsumeRefreshSession(ctx, "hash-expired")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveRefreshSession(ctx, "hash-2", "user_r", time.Now().Add(time.Hour)))
	require.NoError(t, s.RevokeRefreshSession(ctx, "hash-2"))
	_, err = s.ConsumeRefreshSession(ctx, "hash-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThemePatchApply(t *testing.T) {
	eventDate := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	theme := testTheme("theme_p", false)
	theme.EventDate = &eventDate

	title := "Renamed"
	patched := ThemePatch{Title: &title}.Apply(theme)
	assert.Equal(t, "Renamed", patched.Title)
	require.NotNil(t, patched.EventDate)

	cleared := ThemePatch{ClearEventDate: true}.Apply(theme)
	assert.Nil(t, cleared.EventDate)
	assert.Equal(t, theme.Title, cleared.Title)
}

func TestIdeaStatusValid(t *testing.T) {
	for _, status := range IdeaStatuses {
		assert.True(t, status.Valid(), status)
	}
	assert.False(t, IdeaStatus("archived").Valid())
	assert.True(t, ModeOffline.Valid())
	assert.False(t, IdeaMode("hybrid").Valid())
}
