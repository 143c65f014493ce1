package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"buildea/api/internal/identity"
	"buildea/api/internal/rbac"
	"buildea/api/internal/store"
	"buildea/api/internal/util"
)

const defaultCommentMaxLength = 500

type AddCommentInput struct {
	Text string `json:"text" validate:"required,notblank"`
}

type AddAdminCommentInput struct {
	Body string `json:"body" validate:"required,notblank,max=2000"`
}

// likeKey identifies who is liking; a missing identifier cannot like.
func likeKey(session identity.Session) (string, error) {
	key := session.LikeIdentifier()
	if key == "" {
		return "", validationError("visitorId", "visitor id is required")
	}
	return key, nil
}

// LikeIdea records one like per identifier. A repeated like is not an error;
// it reports liked=false and leaves the count alone.
func (s *Service) LikeIdea(ctx context.Context, session identity.Session, ideaID string) (map[string]any, error) {
	if !session.Can(rbac.ActionLike) {
		return nil, denied(session)
	}
	key, err := likeKey(session)
	if err != nil {
		return nil, err
	}
	if !s.allow("like:" + key) {
		return nil, tooManyRequests()
	}
	liked, err := s.store.InsertLike(ctx, store.Like{IdeaID: ideaID, VisitorID: key, CreatedAt: s.now()})
	if err != nil {
		return nil, fmt.Errorf("insert like: %w", err)
	}
	result := "duplicate"
	if liked {
		result = "liked"
	}
	s.metrics.Likes.WithLabelValues(result).Inc()
	return s.likeState(ctx, ideaID, liked, true)
}

func (s *Service) UnlikeIdea(ctx context.Context, session identity.Session, ideaID string) (map[string]any, error) {
	if !session.Can(rbac.ActionLike) {
		return nil, denied(session)
	}
	key, err := likeKey(session)
	if err != nil {
		return nil, err
	}
	removed, err := s.store.DeleteLike(ctx, ideaID, key)
	if err != nil {
		return nil, fmt.Errorf("delete like: %w", err)
	}
	if removed {
		s.metrics.Likes.WithLabelValues("unliked").Inc()
	}
	state, err := s.likeState(ctx, ideaID, false, false)
	if err != nil {
		return nil, err
	}
	state["unliked"] = removed
	return state, nil
}

func (s *Service) HasUserLiked(ctx context.Context, session identity.Session, ideaID string) (map[string]any, error) {
	key := session.LikeIdentifier()
	hasLiked := false
	if key != "" {
		var err error
		hasLiked, err = s.store.HasLike(ctx, ideaID, key)
		if err != nil {
			return nil, fmt.Errorf("check like: %w", err)
		}
	}
	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("get idea: %w", err)
	}
	return map[string]any{"ideaId": ideaID, "hasLiked": hasLiked, "likes": idea.Likes}, nil
}

func (s *Service) likeState(ctx context.Context, ideaID string, liked, hasLiked bool) (map[string]any, error) {
	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("get idea: %w", err)
	}
	return map[string]any{
		"ideaId":   ideaID,
		"liked":    liked,
		"hasLiked": hasLiked,
		"likes":    idea.Likes,
	}, nil
}

// newComment validates comment text against the configured maximum.
func newComment(ideaID string, input AddCommentInput, session identity.Session, maxLength int, now time.Time) (store.Comment, error) {
	if err := validate.Struct(input); err != nil {
		return store.Comment{}, err
	}
	if maxLength <= 0 {
		maxLength = defaultCommentMaxLength
	}
	text := strings.TrimSpace(input.Text)
	if utf8.RuneCountInString(text) > maxLength {
		return store.Comment{}, validationError("text", fmt.Sprintf("text must be a maximum of %d characters in length", maxLength))
	}
	return store.Comment{
		ID:        util.NewID("cmt"),
		IdeaID:    ideaID,
		Text:      text,
		UserID:    session.UserIDPtr(),
		CreatedAt: now,
	}, nil
}

func (s *Service) AddComment(ctx context.Context, session identity.Session, ideaID string, input AddCommentInput) (map[string]any, error) {
	if !session.Can(rbac.ActionComment) {
		return nil, denied(session)
	}
	comment, err := newComment(ideaID, input, session, s.cfg.CommentMaxLength, s.now())
	if err != nil {
		return nil, err
	}
	if !s.allow("comment:" + firstNonBlank(session.LikeIdentifier(), "anonymous")) {
		return nil, tooManyRequests()
	}
	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("get idea: %w", err)
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	s.metrics.Comments.Inc()
	s.logger.Debug(ctx, "comment added", zap.String("idea.id", ideaID))

	if idea.UserID != nil && (comment.UserID == nil || *comment.UserID != *idea.UserID) {
		s.notifyComment(ctx, idea, comment)
	}
	return commentPayload(comment), nil
}

func (s *Service) ListComments(ctx context.Context, ideaID string) ([]map[string]any, error) {
	comments, err := s.store.ListComments(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, commentPayload(comment))
	}
	return items, nil
}

func (s *Service) AddAdminComment(ctx context.Context, session identity.Session, ideaID string, input AddAdminCommentInput) (map[string]any, error) {
	if !session.Can(rbac.ActionModerate) {
		return nil, denied(session)
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	comment := store.AdminComment{
		ID:        util.NewID("acm"),
		IdeaID:    ideaID,
		Author:    firstNonBlank(session.DisplayName, session.UserID),
		Body:      strings.TrimSpace(input.Body),
		CreatedAt: s.now(),
	}
	if err := s.store.InsertAdminComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("insert admin comment: %w", err)
	}
	return adminCommentPayload(comment), nil
}

func (s *Service) ListAdminComments(ctx context.Context, session identity.Session, ideaID string) ([]map[string]any, error) {
	if !session.Can(rbac.ActionModerate) {
		return nil, denied(session)
	}
	comments, err := s.store.ListAdminComments(ctx, ideaID)
	if err != nil {
		return nil, fmt.Errorf("list admin comments: %w", err)
	}
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, adminCommentPayload(comment))
	}
	return items, nil
}

func commentPayload(comment store.Comment) map[string]any {
	return map[string]any{
		"id":        comment.ID,
		"ideaId":    comment.IdeaID,
		"text":      comment.Text,
		"userId":    derefString(comment.UserID),
		"createdAt": comment.CreatedAt,
	}
}

func adminCommentPayload(comment store.AdminComment) map[string]any {
	return map[string]any{
		"id":        comment.ID,
		"ideaId":    comment.IdeaID,
		"author":    comment.Author,
		"body":      comment.Body,
		"createdAt": comment.CreatedAt,
	}
}
