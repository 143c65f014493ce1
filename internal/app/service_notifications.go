package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"buildea/api/internal/email"
	"buildea/api/internal/identity"
	"buildea/api/internal/rbac"
	"buildea/api/internal/realtime"
	"buildea/api/internal/store"
	"buildea/api/internal/util"
)

type CreateNotificationInput struct {
	UserID  string `json:"userId" validate:"required"`
	Title   string `json:"title" validate:"required,notblank,max=200"`
	Message string `json:"message" validate:"required,notblank,max=2000"`
	Type    string `json:"type" validate:"omitempty,oneof=status_change comment theme system"`
	Link    string `json:"link" validate:"omitempty,max=500"`
}

func newNotification(input CreateNotificationInput, now time.Time) (store.Notification, error) {
	if err := validate.Struct(input); err != nil {
		return store.Notification{}, err
	}
	kind := input.Type
	if kind == "" {
		kind = store.NotificationSystem
	}
	return store.Notification{
		ID:        util.NewID("ntf"),
		UserID:    input.UserID,
		Title:     strings.TrimSpace(input.Title),
		Message:   strings.TrimSpace(input.Message),
		Type:      kind,
		Link:      strings.TrimSpace(input.Link),
		CreatedAt: now,
	}, nil
}

// CreateNotification stores a notification and pushes it to the user's open
// connections.
func (s *Service) CreateNotification(ctx context.Context, input CreateNotificationInput) (map[string]any, error) {
	n, err := newNotification(input, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	s.metrics.NotificationsTotal.WithLabelValues(n.Type).Inc()
	payload := notificationPayload(n)
	if s.hub != nil {
		s.hub.Publish(ctx, n.UserID, realtime.Message{Type: "notification", Data: payload})
	}
	return payload, nil
}

// SendNotification is the admin entry point for system messages.
func (s *Service) SendNotification(ctx context.Context, session identity.Session, input CreateNotificationInput) (map[string]any, error) {
	if !session.Can(rbac.ActionAdmin) {
		return nil, denied(session)
	}
	if _, err := s.store.GetUserByID(ctx, input.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, validationError("userId", "user does not exist")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return s.CreateNotification(ctx, input)
}

func (s *Service) ListNotifications(ctx context.Context, session identity.Session) ([]map[string]any, error) {
	if !session.Authenticated() {
		return nil, unauthorized()
	}
	notifications, err := s.store.ListNotifications(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	items := make([]map[string]any, 0, len(notifications))
	for _, n := range notifications {
		items = append(items, notificationPayload(n))
	}
	return items, nil
}

// MarkNotificationRead only touches notifications owned by the caller; any
// other id reads as not found.
func (s *Service) MarkNotificationRead(ctx context.Context, session identity.Session, notificationID string) error {
	if !session.Authenticated() {
		return unauthorized()
	}
	if err := s.store.MarkNotificationRead(ctx, notificationID, session.UserID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	s.publishUnread(ctx, session.UserID)
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session identity.Session) (int, error) {
	if !session.Authenticated() {
		return 0, unauthorized()
	}
	updated, err := s.store.MarkAllNotificationsRead(ctx, session.UserID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	s.publishUnread(ctx, session.UserID)
	return updated, nil
}

func (s *Service) UnreadCount(ctx context.Context, session identity.Session) (int, error) {
	if !session.Authenticated() {
		return 0, unauthorized()
	}
	count, err := s.store.CountUnreadNotifications(ctx, session.UserID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (s *Service) publishUnread(ctx context.Context, userID string) {
	if s.hub == nil || s.hub.Connections(userID) == 0 {
		return
	}
	count, err := s.store.CountUnreadNotifications(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "count unread for push", zap.Error(err))
		return
	}
	s.hub.Publish(ctx, userID, realtime.Message{Type: "unread_count", Data: map[string]any{"count": count}})
}

func (s *Service) ideaLink(ideaID string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/ideas/" + ideaID
}

// notifyStatusChange tells the idea's author. Notification failures are logged,
// never returned: the status change itself already committed.
func (s *Service) notifyStatusChange(ctx context.Context, idea store.Idea, action store.IdeaAction) {
	label := statusLabel(idea.Status)
	message := fmt.Sprintf("Your idea \"%s\" is now %s.", idea.Title, label)
	if action.Details != "" {
		message += " " + action.Details
	}
	if _, err := s.CreateNotification(ctx, CreateNotificationInput{
		UserID:  *idea.UserID,
		Title:   "Idea status updated",
		Message: message,
		Type:    store.NotificationStatusChange,
		Link:    s.ideaLink(idea.ID),
	}); err != nil {
		s.logger.Warn(ctx, "create status notification", zap.String("idea.id", idea.ID), zap.Error(err))
		return
	}
	s.emailUser(ctx, *idea.UserID, func(user store.User) (email.Message, error) {
		return email.StatusChangeMessage(user.Email, email.StatusChangeData{
			UserName:    user.DisplayName,
			IdeaTitle:   idea.Title,
			StatusLabel: label,
			Details:     action.Details,
			IdeaURL:     s.ideaLink(idea.ID),
		})
	})
}

func (s *Service) notifyComment(ctx context.Context, idea store.Idea, comment store.Comment) {
	if _, err := s.CreateNotification(ctx, CreateNotificationInput{
		UserID:  *idea.UserID,
		Title:   "New comment",
		Message: fmt.Sprintf("Someone commented on \"%s\".", idea.Title),
		Type:    store.NotificationComment,
		Link:    s.ideaLink(idea.ID),
	}); err != nil {
		s.logger.Warn(ctx, "create comment notification", zap.String("idea.id", idea.ID), zap.Error(err))
		return
	}
	s.emailUser(ctx, *idea.UserID, func(user store.User) (email.Message, error) {
		return email.CommentMessage(user.Email, email.CommentData{
			UserName:  user.DisplayName,
			IdeaTitle: idea.Title,
			Comment:   comment.Text,
			IdeaURL:   s.ideaLink(idea.ID),
		})
	})
}

// notifyAllUsers fans a theme announcement out to every account in the
// background.
func (s *Service) notifyAllUsers(ctx context.Context, title, message, link string) {
	s.goBackground(ctx, "theme announcement", func(ctx context.Context) error {
		users, err := s.store.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		for _, user := range users {
			if _, err := s.CreateNotification(ctx, CreateNotificationInput{
				UserID:  user.ID,
				Title:   title,
				Message: message,
				Type:    store.NotificationTheme,
				Link:    link,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// emailUser sends in the background when the user allows email notifications.
func (s *Service) emailUser(ctx context.Context, userID string, build func(store.User) (email.Message, error)) {
	s.goBackground(ctx, "notification email", func(ctx context.Context) error {
		settings, err := s.store.GetUserSettings(ctx, userID)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		if !settings.EmailNotifications {
			return nil
		}
		user, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user.Email == "" {
			return nil
		}
		msg, err := build(user)
		if err != nil {
			return err
		}
		return s.mailer.Send(ctx, msg)
	})
}

func notificationPayload(n store.Notification) map[string]any {
	return map[string]any{
		"id":        n.ID,
		"userId":    n.UserID,
		"title":     n.Title,
		"message":   n.Message,
		"type":      n.Type,
		"isRead":    n.IsRead,
		"link":      nilIfEmpty(n.Link),
		"createdAt": n.CreatedAt,
	}
}
