package search

import (
	"context"
	"sync"
	"time"

	"buildea/api/internal/logging"
	"buildea/api/internal/store"
	"go.uber.org/zap"
)

const indexTimeout = 10 * time.Second

// Engine is both halves of a search backend.
type Engine interface {
	Searcher
	Indexer
}

// Service is the facade that tries Meilisearch first and falls back to the
// in-process filter.
type Service struct {
	engine Engine
	logger *logging.Logger
	wg     sync.WaitGroup
}

// NewService creates a search service. engine may be nil if Meilisearch is
// not configured.
func NewService(engine Engine, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{engine: engine, logger: logger.Named("search")}
}

func (s *Service) available() bool {
	return s.engine != nil && s.engine.Healthy()
}

// Apply filters, sorts and pages ideas according to q. Text matching uses
// the engine when healthy; other filters always run in process. Ideas the
// index has not seen yet still match by substring after the engine's hits.
func (s *Service) Apply(ctx context.Context, ideas []store.Idea, q Query) []store.Idea {
	if q.Text != "" && s.available() {
		ids, err := s.engine.SearchIdeaIDs(ctx, q.Text, 0)
		if err == nil {
			text := q.Text
			q.Text = ""
			if q.Sort == "" {
				q.Sort = SortRelevance
			}
			return Filter(mergeHits(ideas, ids, text), q)
		}
		s.logger.Warn(ctx, "meilisearch error, falling back to in-process filter", zap.Error(err))
	}
	if q.Sort == SortRelevance {
		q.Sort = SortNew
	}
	return Filter(ideas, q)
}

// IndexIdea indexes an idea (fire-and-forget).
func (s *Service) IndexIdea(ctx context.Context, idea store.Idea) {
	if !s.available() {
		return
	}
	rec := RecordFromIdea(idea)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), indexTimeout)
		defer cancel()
		if err := s.engine.IndexIdeas(ctx, []IdeaRecord{rec}); err != nil {
			s.logger.Warn(ctx, "index idea", zap.String("idea.id", rec.ID), zap.Error(err))
		}
	}()
}

// DeleteIdea removes an idea from the search index (fire-and-forget).
func (s *Service) DeleteIdea(ctx context.Context, id string) {
	if !s.available() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), indexTimeout)
		defer cancel()
		if err := s.engine.DeleteIdea(ctx, id); err != nil {
			s.logger.Warn(ctx, "delete idea from index", zap.String("idea.id", id), zap.Error(err))
		}
	}()
}

// Wait blocks until pending index writes have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// ReindexAll pushes every idea to the engine synchronously and returns how
// many were sent.
func (s *Service) ReindexAll(ctx context.Context, ideas []store.Idea) (int, error) {
	if !s.available() {
		return 0, nil
	}
	records := make([]IdeaRecord, 0, len(ideas))
	for _, idea := range ideas {
		records = append(records, RecordFromIdea(idea))
	}
	if err := s.engine.IndexIdeas(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}
