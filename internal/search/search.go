// Package search finds ideas by text, using Meilisearch when it is reachable
// and an in-process filter otherwise.
package search

import (
	"context"

	"buildea/api/internal/store"
)

// Sort orders idea listings.
type Sort string

const (
	SortNew       Sort = "new"
	SortOld       Sort = "old"
	SortLikes     Sort = "likes"
	SortRelevance Sort = "relevance"
)

func (s Sort) Valid() bool {
	switch s {
	case "", SortNew, SortOld, SortLikes, SortRelevance:
		return true
	}
	return false
}

// Query describes an idea listing request. Zero fields do not filter.
type Query struct {
	Text    string
	Status  store.IdeaStatus
	Mode    store.IdeaMode
	ThemeID string
	Sort    Sort
	Limit   int
	Offset  int
}

// Searcher can execute a full-text search over ideas. It returns matching
// idea ids in relevance order.
type Searcher interface {
	SearchIdeaIDs(ctx context.Context, text string, limit int) ([]string, error)
	Healthy() bool
}

// Indexer can push ideas into a search index.
type Indexer interface {
	IndexIdeas(ctx context.Context, ideas []IdeaRecord) error
	DeleteIdea(ctx context.Context, id string) error
}

// IdeaRecord is the data we index for an idea.
type IdeaRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Mode        string `json:"mode"`
	Status      string `json:"status"`
	ThemeID     string `json:"themeId"`
	Likes       int    `json:"likes"`
	CreatedAt   int64  `json:"createdAt"`
}

// RecordFromIdea converts a stored idea to its index form.
func RecordFromIdea(idea store.Idea) IdeaRecord {
	rec := IdeaRecord{
		ID:          idea.ID,
		Title:       idea.Title,
		Description: idea.Description,
		Mode:        string(idea.Mode),
		Status:      string(idea.Status),
		Likes:       idea.Likes,
		CreatedAt:   idea.CreatedAt.Unix(),
	}
	if idea.ThemeID != nil {
		rec.ThemeID = *idea.ThemeID
	}
	return rec
}
