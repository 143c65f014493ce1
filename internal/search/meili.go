package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"buildea/api/internal/logging"
	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const (
	idxIdeas       = "buildea_ideas"
	healthInterval = 10 * time.Second
	maxHits        = 1000
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *logging.Logger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the ideas index.
// An unreachable server is not an error; the health loop picks it up later.
func NewMeili(url, apiKey string, logger *logging.Logger) *Meili {
	if logger == nil {
		logger = logging.Nop()
	}
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		logger: logger.Named("search"),
		done:   make(chan struct{}),
	}

	ctx := context.Background()
	if _, err := m.client.Health(); err != nil {
		m.logger.Warn(ctx, "meilisearch unavailable", zap.String("url", url), zap.Error(err))
	} else {
		m.healthy.Store(true)
		m.configureIndex(ctx)
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex(ctx context.Context) {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxIdeas,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug(ctx, "create index (may already exist)", zap.String("index", idxIdeas), zap.Error(err))
	}

	index := m.client.Index(idxIdeas)
	filterable := []interface{}{"status", "mode", "themeId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn(ctx, "update filterable attributes", zap.Error(err))
	}
	searchable := []string{"title", "description"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn(ctx, "update searchable attributes", zap.Error(err))
	}
	sortable := []string{"createdAt", "likes"}
	if _, err := index.UpdateSortableAttributes(&sortable); err != nil {
		m.logger.Warn(ctx, "update sortable attributes", zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				ctx := context.Background()
				m.logger.Info(ctx, "meilisearch recovered, reconfiguring index")
				m.configureIndex(ctx)
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// SearchIdeaIDs returns the ids of ideas matching text, best match first.
func (m *Meili) SearchIdeaIDs(_ context.Context, text string, limit int) ([]string, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 || limit > maxHits {
		limit = maxHits
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:             idxIdeas,
			Query:                text,
			Limit:                int64(limit),
			AttributesToRetrieve: []string{"id"},
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var ids []string
	for _, sr := range resp.Results {
		for _, hit := range sr.Hits {
			if id := decodeString(hit, "id"); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexIdeas adds or updates ideas in the search index.
func (m *Meili) IndexIdeas(_ context.Context, ideas []IdeaRecord) error {
	if len(ideas) == 0 {
		return nil
	}
	_, err := m.client.Index(idxIdeas).AddDocuments(ideas, nil)
	return err
}

// DeleteIdea removes an idea from the search index.
func (m *Meili) DeleteIdea(_ context.Context, id string) error {
	_, err := m.client.Index(idxIdeas).DeleteDocument(id, nil)
	return err
}
