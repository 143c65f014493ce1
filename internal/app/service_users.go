package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"buildea/api/internal/email"
	"buildea/api/internal/identity"
	"buildea/api/internal/rbac"
	"buildea/api/internal/store"
	"buildea/api/internal/util"
)

type UpdateSettingsInput struct {
	EmailNotifications *bool   `json:"emailNotifications"`
	Language           *string `json:"language" validate:"omitempty,oneof=ja en"`
}

type ContactInput struct {
	Name    string `json:"name" validate:"required,notblank,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"required,notblank,max=200"`
	Message string `json:"message" validate:"required,notblank,max=5000"`
}

type BusinessContactInput struct {
	Company string `json:"company" validate:"required,notblank,max=200"`
	Name    string `json:"name" validate:"required,notblank,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"omitempty,max=40"`
	Message string `json:"message" validate:"required,notblank,max=5000"`
}

type UpdateRoleInput struct {
	Role string `json:"role" validate:"required,role"`
}

func (s *Service) GetSettings(ctx context.Context, session identity.Session) (map[string]any, error) {
	if !session.Can(rbac.ActionManageAccount) {
		return nil, unauthorized()
	}
	settings, err := s.store.GetUserSettings(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return settingsPayload(settings), nil
}

func (s *Service) UpdateSettings(ctx context.Context, session identity.Session, input UpdateSettingsInput) (map[string]any, error) {
	if !session.Can(rbac.ActionManageAccount) {
		return nil, unauthorized()
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	settings, err := s.store.GetUserSettings(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if input.EmailNotifications != nil {
		settings.EmailNotifications = *input.EmailNotifications
	}
	if input.Language != nil {
		settings.Language = *input.Language
	}
	settings.UserID = session.UserID
	settings.UpdatedAt = s.now()
	if err := s.store.SaveUserSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return settingsPayload(settings), nil
}

// SubmitContact stores the form and forwards it to the team inbox.
func (s *Service) SubmitContact(ctx context.Context, input ContactInput) (map[string]any, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	contact := store.Contact{
		ID:        util.NewID("ctc"),
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Subject:   strings.TrimSpace(input.Subject),
		Message:   strings.TrimSpace(input.Message),
		CreatedAt: s.now(),
	}
	if !s.allow("contact:" + contact.Email) {
		return nil, tooManyRequests()
	}
	if err := s.store.InsertContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	s.forwardContact(ctx, email.ContactData{
		Kind:    "Contact",
		Name:    contact.Name,
		Email:   contact.Email,
		Subject: contact.Subject,
		Message: contact.Message,
	})
	return map[string]any{"id": contact.ID, "createdAt": contact.CreatedAt}, nil
}

func (s *Service) SubmitBusinessContact(ctx context.Context, input BusinessContactInput) (map[string]any, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	contact := store.BusinessContact{
		ID:        util.NewID("bct"),
		Company:   strings.TrimSpace(input.Company),
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:     strings.TrimSpace(input.Phone),
		Message:   strings.TrimSpace(input.Message),
		CreatedAt: s.now(),
	}
	if !s.allow("contact:" + contact.Email) {
		return nil, tooManyRequests()
	}
	if err := s.store.InsertBusinessContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("insert business contact: %w", err)
	}
	s.forwardContact(ctx, email.ContactData{
		Kind:    "Business",
		Name:    contact.Name,
		Email:   contact.Email,
		Company: contact.Company,
		Phone:   contact.Phone,
		Message: contact.Message,
	})
	return map[string]any{"id": contact.ID, "createdAt": contact.CreatedAt}, nil
}

func (s *Service) forwardContact(ctx context.Context, data email.ContactData) {
	if s.cfg.ContactInbox == "" {
		return
	}
	s.goBackground(ctx, "contact forward", func(ctx context.Context) error {
		msg, err := email.ContactMessage(s.cfg.ContactInbox, data)
		if err != nil {
			return err
		}
		return s.mailer.Send(ctx, msg)
	})
}

func (s *Service) ListContacts(ctx context.Context, session identity.Session) ([]map[string]any, error) {
	if !session.Can(rbac.ActionAdmin) {
		return nil, denied(session)
	}
	contacts, err := s.store.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	items := make([]map[string]any, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, map[string]any{
			"id":        c.ID,
			"name":      c.Name,
			"email":     c.Email,
			"subject":   c.Subject,
			"message":   c.Message,
			"createdAt": c.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) ListBusinessContacts(ctx context.Context, session identity.Session) ([]map[string]any, error) {
	if !session.Can(rbac.ActionAdmin) {
		return nil, denied(session)
	}
	contacts, err := s.store.ListBusinessContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list business contacts: %w", err)
	}
	items := make([]map[string]any, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, map[string]any{
			"id":        c.ID,
			"company":   c.Company,
			"name":      c.Name,
			"email":     c.Email,
			"phone":     c.Phone,
			"message":   c.Message,
			"createdAt": c.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) ListUsers(ctx context.Context, session identity.Session) ([]map[string]any, error) {
	if !session.Can(rbac.ActionAdmin) {
		return nil, denied(session)
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, userPayload(user))
	}
	return items, nil
}

// UpdateUserRole changes another account's role. Admins cannot demote
// themselves, so there is always at least the acting admin left.
func (s *Service) UpdateUserRole(ctx context.Context, session identity.Session, userID string, input UpdateRoleInput) (map[string]any, error) {
	if !session.Can(rbac.ActionAdmin) {
		return nil, denied(session)
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if userID == session.UserID && input.Role != store.RoleAdmin {
		return nil, domainError(http.StatusConflict, "CONFLICT", "You cannot remove your own admin role", nil)
	}
	if err := s.store.UpdateUserRole(ctx, userID, input.Role); err != nil {
		return nil, fmt.Errorf("update user role: %w", err)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	s.logger.Info(ctx, "user role changed", zap.String("target.user_id", userID), zap.String("role", input.Role))
	return userPayload(user), nil
}

func (s *Service) AdminStats(ctx context.Context, session identity.Session) (map[string]any, error) {
	if !session.Can(rbac.ActionAdmin) {
		return nil, denied(session)
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	byStatus := make(map[string]int, len(store.IdeaStatuses))
	total := 0
	for _, status := range store.IdeaStatuses {
		count := stats.IdeasByStatus[status]
		byStatus[string(status)] = count
		total += count
	}
	deletions, err := s.store.ListDeletionLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deletion logs: %w", err)
	}
	active, err := s.store.GetActiveTheme(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get active theme: %w", err)
	}
	var activeTheme any
	if active != nil {
		activeTheme = themePayload(*active)
	}
	return map[string]any{
		"ideas":            total,
		"ideasByStatus":    byStatus,
		"users":            stats.Users,
		"contacts":         stats.Contacts,
		"businessContacts": stats.BusinessContacts,
		"deletedAccounts":  len(deletions),
		"activeTheme":      activeTheme,
	}, nil
}

func settingsPayload(settings store.UserSettings) map[string]any {
	return map[string]any{
		"emailNotifications": settings.EmailNotifications,
		"language":           settings.Language,
		"updatedAt":          settings.UpdatedAt,
	}
}
