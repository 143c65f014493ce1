package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"buildea/api/internal/logging"
	"buildea/api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func ptr(s string) *string { return &s }

func fixtureIdeas() []store.Idea {
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	return []store.Idea{
		{ID: "a", Title: "Coding dojo", Description: "Weekly pair programming", Mode: store.ModeOnline, Status: store.StatusIdea, Likes: 3, CreatedAt: base},
		{ID: "b", Title: "Night market", Description: "Food stalls on campus", Mode: store.ModeOffline, Status: store.StatusPreparing, Likes: 10, ThemeID: ptr("thm_food"), CreatedAt: base.Add(time.Hour)},
		{ID: "c", Title: "Hackathon", Description: "48h CODING marathon", Mode: store.ModeOffline, Status: store.StatusIdea, Likes: 3, CreatedAt: base.Add(2 * time.Hour)},
	}
}

func ids(ideas []store.Idea) []string {
	out := make([]string, len(ideas))
	for i, idea := range ideas {
		out[i] = idea.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"default newest first", Query{}, []string{"c", "b", "a"}},
		{"oldest first", Query{Sort: SortOld}, []string{"a", "b", "c"}},
		{"likes then newest", Query{Sort: SortLikes}, []string{"b", "c", "a"}},
		{"status", Query{Status: store.StatusIdea}, []string{"c", "a"}},
		{"mode", Query{Mode: store.ModeOnline}, []string{"a"}},
		{"theme", Query{ThemeID: "thm_food"}, []string{"b"}},
		{"text case-insensitive", Query{Text: "coding"}, []string{"c", "a"}},
		{"text no match", Query{Text: "zzz"}, []string{}},
		{"limit", Query{Limit: 2}, []string{"c", "b"}},
		{"offset", Query{Offset: 2}, []string{"a"}},
		{"offset past end", Query{Offset: 9}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(fixtureIdeas(), tt.q)))
		})
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	in := fixtureIdeas()
	_ = Filter(in, Query{Sort: SortLikes})
	assert.Equal(t, []string{"a", "b", "c"}, ids(in))
}

func TestSortValid(t *testing.T) {
	assert.True(t, Sort("").Valid())
	assert.True(t, SortLikes.Valid())
	assert.False(t, Sort("random").Valid())
}

type fakeEngine struct {
	mu      sync.Mutex
	healthy bool
	hits    []string
	err     error
	indexed []IdeaRecord
	deleted []string
}

func (f *fakeEngine) SearchIdeaIDs(context.Context, string, int) ([]string, error) {
	return f.hits, f.err
}

func (f *fakeEngine) Healthy() bool { return f.healthy }

func (f *fakeEngine) IndexIdeas(_ context.Context, ideas []IdeaRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, ideas...)
	return nil
}

func (f *fakeEngine) DeleteIdea(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func TestApplyUsesEngineOrder(t *testing.T) {
	engine := &fakeEngine{healthy: true, hits: []string{"a", "missing", "b"}}
	svc := NewService(engine, nil)

	got := svc.Apply(context.Background(), fixtureIdeas(), Query{Text: "anything"})
	assert.Equal(t, []string{"a", "b"}, ids(got))

	got = svc.Apply(context.Background(), fixtureIdeas(), Query{Text: "anything", Sort: SortLikes})
	assert.Equal(t, []string{"b", "a"}, ids(got))
}

func TestApplyFallsBackOnEngineError(t *testing.T) {
	tl := logging.NewTestLogger()
	engine := &fakeEngine{healthy: true, err: errors.New("boom")}
	svc := NewService(engine, tl.Logger)

	got := svc.Apply(context.Background(), fixtureIdeas(), Query{Text: "market"})
	assert.Equal(t, []string{"b"}, ids(got))
	tl.AssertLogged(t, zapcore.WarnLevel, "falling back")
}

func TestApplyWithoutEngine(t *testing.T) {
	svc := NewService(nil, nil)
	got := svc.Apply(context.Background(), fixtureIdeas(), Query{Text: "hack", Sort: SortRelevance})
	assert.Equal(t, []string{"c"}, ids(got))
}

func TestIndexingIsAsync(t *testing.T) {
	engine := &fakeEngine{healthy: true}
	svc := NewService(engine, nil)

	svc.IndexIdea(context.Background(), fixtureIdeas()[1])
	svc.DeleteIdea(context.Background(), "a")

	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return len(engine.indexed) == 1 && len(engine.deleted) == 1
	}, time.Second, 5*time.Millisecond)
	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Equal(t, "thm_food", engine.indexed[0].ThemeID)
}

func TestReindexAll(t *testing.T) {
	engine := &fakeEngine{healthy: true}
	n, err := NewService(engine, nil).ReindexAll(context.Background(), fixtureIdeas())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = NewService(&fakeEngine{}, nil).ReindexAll(context.Background(), fixtureIdeas())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestApplyFindsIdeasMissingFromIndex(t *testing.T) {
	engine := &fakeEngine{}
	svc := NewService(engine, nil)

	workshop := store.Idea{ID: "d", Title: "Robot workshop", Description: "Build a line follower", Mode: store.ModeOffline, Status: store.StatusIdea, CreatedAt: time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)}
	svc.IndexIdea(context.Background(), workshop)
	svc.Wait()
	require.Empty(t, engine.indexed, "nothing is indexed while the engine is down")

	ideas := append(fixtureIdeas(), workshop)
	assert.Equal(t, []string{"d"}, ids(svc.Apply(context.Background(), ideas, Query{Text: "robot"})))

	engine.healthy = true
	engine.hits = nil
	assert.Equal(t, []string{"d"}, ids(svc.Apply(context.Background(), ideas, Query{Text: "robot"})))

	engine.hits = []string{"c"}
	assert.Equal(t, []string{"c", "a"}, ids(svc.Apply(context.Background(), ideas, Query{Text: "coding"})),
		"engine hits keep their rank ahead of substring matches")
}

func TestWaitDrainsIndexWrites(t *testing.T) {
	engine := &fakeEngine{healthy: true}
	svc := NewService(engine, nil)

	for _, idea := range fixtureIdeas() {
		svc.IndexIdea(context.Background(), idea)
	}
	svc.DeleteIdea(context.Background(), "a")
	svc.Wait()

	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.Len(t, engine.indexed, 3)
	assert.Equal(t, []string{"a"}, engine.deleted)
}
