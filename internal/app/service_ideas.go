package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"buildea/api/internal/identity"
	"buildea/api/internal/rbac"
	"buildea/api/internal/search"
	"buildea/api/internal/store"
	"buildea/api/internal/util"
)

const anonymousAuthor = "Anonymous"

type CreateIdeaInput struct {
	Title       string `json:"title" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"required,notblank,max=2000"`
	Mode        string `json:"mode" validate:"required,idea_mode"`
	ThemeID     string `json:"themeId" validate:"max=64"`
	AuthorName  string `json:"authorName" validate:"max=50"`
}

type ListIdeasInput struct {
	Status  string `query:"status" json:"status" validate:"omitempty,idea_status"`
	Mode    string `query:"mode" json:"mode" validate:"omitempty,idea_mode"`
	ThemeID string `query:"themeId" json:"themeId"`
	Query   string `query:"q" json:"q" validate:"max=200"`
	Sort    string `query:"sort" json:"sort" validate:"omitempty,oneof=new old likes relevance"`
	Limit   int    `query:"limit" json:"limit" validate:"min=0,max=500"`
	Offset  int    `query:"offset" json:"offset" validate:"min=0"`
}

type UpdateStatusInput struct {
	Status  string `json:"status" validate:"required,idea_status"`
	Details string `json:"details" validate:"max=1000"`
}

type UpdateIdeaAdminInput struct {
	Memo      string                `json:"memo" validate:"max=5000"`
	Checklist []store.ChecklistItem `json:"checklist" validate:"max=100,dive"`
}

// nextStatusOptions is the subset of targets the admin UI offers for each
// status. The service accepts any transition.
var nextStatusOptions = map[store.IdeaStatus][]store.IdeaStatus{
	store.StatusIdea:         {store.StatusChecked, store.StatusRejected},
	store.StatusChecked:      {store.StatusPreparing, store.StatusRejected},
	store.StatusPreparing:    {store.StatusEventPlanned, store.StatusRejected},
	store.StatusEventPlanned: {store.StatusCompleted, store.StatusRejected},
	store.StatusRejected:     {store.StatusIdea},
	store.StatusCompleted:    {},
}

var statusLabels = map[store.IdeaStatus]string{
	store.StatusIdea:         "Idea",
	store.StatusChecked:      "Checked",
	store.StatusPreparing:    "Preparing",
	store.StatusEventPlanned: "Event planned",
	store.StatusRejected:     "Rejected",
	store.StatusCompleted:    "Completed",
}

func nextStatuses(status store.IdeaStatus) []string {
	options := nextStatusOptions[status]
	out := make([]string, 0, len(options))
	for _, option := range options {
		out = append(out, string(option))
	}
	return out
}

func statusLabel(status store.IdeaStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// newIdea is the only constructor for stored ideas.
func newIdea(input CreateIdeaInput, session identity.Session, now time.Time) (store.Idea, error) {
	if err := validate.Struct(input); err != nil {
		return store.Idea{}, err
	}
	var author string
	if session.Authenticated() {
		author = firstNonBlank(session.DisplayName, input.AuthorName, anonymousAuthor)
	} else {
		author = firstNonBlank(input.AuthorName, anonymousAuthor)
	}
	return store.Idea{
		ID:          util.NewID("idea"),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Mode:        store.IdeaMode(input.Mode),
		Status:      store.StatusIdea,
		Likes:       0,
		ThemeID:     stringPtr(input.ThemeID),
		UserID:      session.UserIDPtr(),
		AuthorName:  author,
		Checklist:   []store.ChecklistItem{},
		History:     []store.IdeaAction{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (s *Service) CreateIdea(ctx context.Context, session identity.Session, input CreateIdeaInput) (map[string]any, error) {
	if !session.Can(rbac.ActionPost) {
		return nil, denied(session)
	}
	idea, err := newIdea(input, session, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertIdea(ctx, idea); err != nil {
		if errors.Is(err, store.ErrNotFound) && idea.ThemeID != nil {
			return nil, validationError("themeId", "theme does not exist")
		}
		return nil, fmt.Errorf("insert idea: %w", err)
	}
	s.metrics.IdeasCreated.WithLabelValues(string(idea.Mode)).Inc()
	s.search.IndexIdea(ctx, idea)
	s.logger.Info(ctx, "idea created", zap.String("idea.id", idea.ID))
	return ideaPayload(idea, session), nil
}

func (s *Service) ListIdeas(ctx context.Context, session identity.Session, input ListIdeasInput) (map[string]any, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	ideas, err := s.store.ListIdeas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	filtered := s.search.Apply(ctx, ideas, search.Query{
		Text:    strings.TrimSpace(input.Query),
		Status:  store.IdeaStatus(input.Status),
		Mode:    store.IdeaMode(input.Mode),
		ThemeID: strings.TrimSpace(input.ThemeID),
		Sort:    search.Sort(input.Sort),
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	items := make([]map[string]any, 0, len(filtered))
	for _, idea := range filtered {
		items = append(items, ideaPayload(idea, session))
	}
	return map[string]any{"ideas": items, "count": len(items)}, nil
}

func (s *Service) GetIdea(ctx context.Context, session identity.Session, ideaID string) (map[string]any, error) {
	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("get idea: %w", err)
	}
	return ideaPayload(idea, session), nil
}

// UpdateIdeaStatus sets the status and appends one history entry in a single
// store operation, then tells the author.
func (s *Service) UpdateIdeaStatus(ctx context.Context, session identity.Session, ideaID string, input UpdateStatusInput) (map[string]any, error) {
	if !session.Can(rbac.ActionModerate) {
		return nil, denied(session)
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	status := store.IdeaStatus(input.Status)
	action := store.IdeaAction{
		Action:    string(status),
		Details:   strings.TrimSpace(input.Details),
		Actor:     firstNonBlank(session.DisplayName, session.UserID),
		Timestamp: s.now(),
	}
	idea, err := s.store.UpdateIdeaStatus(ctx, ideaID, status, action)
	if err != nil {
		return nil, fmt.Errorf("update idea status: %w", err)
	}
	s.metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	s.search.IndexIdea(ctx, idea)

	if idea.UserID != nil {
		s.notifyStatusChange(ctx, idea, action)
	}
	return ideaPayload(idea, session), nil
}

func (s *Service) UpdateIdeaAdmin(ctx context.Context, session identity.Session, ideaID string, input UpdateIdeaAdminInput) (map[string]any, error) {
	if !session.Can(rbac.ActionModerate) {
		return nil, denied(session)
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	checklist := make([]store.ChecklistItem, 0, len(input.Checklist))
	for _, item := range input.Checklist {
		label := strings.TrimSpace(item.Label)
		if label == "" {
			continue
		}
		checklist = append(checklist, store.ChecklistItem{Label: label, Done: item.Done})
	}
	if err := s.store.UpdateIdeaAdmin(ctx, ideaID, strings.TrimSpace(input.Memo), checklist); err != nil {
		return nil, fmt.Errorf("update idea admin fields: %w", err)
	}
	return s.GetIdea(ctx, session, ideaID)
}

// DeleteIdea removes the idea with its likes, comments and admin comments.
func (s *Service) DeleteIdea(ctx context.Context, session identity.Session, ideaID string) error {
	if !session.Can(rbac.ActionModerate) {
		return denied(session)
	}
	if err := s.store.DeleteIdea(ctx, ideaID); err != nil {
		return fmt.Errorf("delete idea: %w", err)
	}
	s.search.DeleteIdea(ctx, ideaID)
	s.logger.Info(ctx, "idea deleted", zap.String("idea.id", ideaID))
	return nil
}

// ReindexIdeas pushes every stored idea to the search engine.
func (s *Service) ReindexIdeas(ctx context.Context) (int, error) {
	ideas, err := s.store.ListIdeas(ctx)
	if err != nil {
		return 0, fmt.Errorf("list ideas: %w", err)
	}
	return s.search.ReindexAll(ctx, ideas)
}

func ideaPayload(idea store.Idea, session identity.Session) map[string]any {
	history := make([]map[string]any, 0, len(idea.History))
	for _, entry := range idea.History {
		history = append(history, map[string]any{
			"action":    entry.Action,
			"details":   entry.Details,
			"actor":     entry.Actor,
			"timestamp": entry.Timestamp,
		})
	}
	payload := map[string]any{
		"id":          idea.ID,
		"title":       idea.Title,
		"description": idea.Description,
		"mode":        idea.Mode,
		"status":      idea.Status,
		"statusLabel": statusLabel(idea.Status),
		"likes":       idea.Likes,
		"themeId":     derefString(idea.ThemeID),
		"userId":      derefString(idea.UserID),
		"authorName":  idea.AuthorName,
		"history":     history,
		"createdAt":   idea.CreatedAt,
		"updatedAt":   idea.UpdatedAt,
	}
	if session.Can(rbac.ActionModerate) {
		checklist := idea.Checklist
		if checklist == nil {
			checklist = []store.ChecklistItem{}
		}
		payload["adminMemo"] = idea.AdminMemo
		payload["checklist"] = checklist
		payload["nextStatuses"] = nextStatuses(idea.Status)
	}
	return payload
}
