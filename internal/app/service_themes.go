package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"buildea/api/internal/export"
	"buildea/api/internal/identity"
	"buildea/api/internal/rbac"
	"buildea/api/internal/store"
	"buildea/api/internal/util"
)

type CreateThemeInput struct {
	Title       string `json:"title" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=2000"`
	StartDate   string `json:"startDate" validate:"required,calendar_date"`
	EndDate     string `json:"endDate" validate:"required,calendar_date"`
	EventDate   string `json:"eventDate" validate:"omitempty,calendar_date"`
	IsActive    bool   `json:"isActive"`
}

// UpdateThemeInput is a partial update. An empty eventDate clears it.
type UpdateThemeInput struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	StartDate   *string `json:"startDate" validate:"omitempty,calendar_date"`
	EndDate     *string `json:"endDate" validate:"omitempty,calendar_date"`
	EventDate   *string `json:"eventDate"`
	IsActive    *bool   `json:"isActive"`
}

type EventInput struct {
	ThemeID          string `json:"themeId" validate:"max=64"`
	IdeaID           string `json:"ideaId" validate:"max=64"`
	Title            string `json:"title" validate:"required,notblank,max=200"`
	Description      string `json:"description" validate:"max=5000"`
	Date             string `json:"date" validate:"required,calendar_date"`
	ParticipantCount int    `json:"participantCount" validate:"min=0,max=100000"`
	Content          string `json:"content" validate:"max=20000"`
	NextActions      string `json:"nextActions" validate:"max=5000"`
}

// ExportedReport is either a stored object (URL set) or raw bytes.
type ExportedReport struct {
	Filename  string
	MimeType  string
	Data      []byte
	URL       string
	Key       string
	ExpiresIn time.Duration
}

func newTheme(input CreateThemeInput, now time.Time) (store.Theme, error) {
	if err := validate.Struct(input); err != nil {
		return store.Theme{}, err
	}
	theme := store.Theme{
		ID:          util.NewID("thm"),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		StartDate:   parseDate(input.StartDate),
		EndDate:     parseDate(input.EndDate),
		IsActive:    input.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.EventDate != "" {
		eventDate := parseDate(input.EventDate)
		theme.EventDate = &eventDate
	}
	if err := checkThemeDates(theme); err != nil {
		return store.Theme{}, err
	}
	return theme, nil
}

func checkThemeDates(theme store.Theme) error {
	if theme.EndDate.Before(theme.StartDate) {
		return validationError("endDate", "endDate must not be before startDate")
	}
	return nil
}

func (s *Service) CreateTheme(ctx context.Context, session identity.Session, input CreateThemeInput) (map[string]any, error) {
	if !session.Can(rbac.ActionManageThemes) {
		return nil, denied(session)
	}
	theme, err := newTheme(input, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertTheme(ctx, theme); err != nil {
		return nil, fmt.Errorf("insert theme: %w", err)
	}
	if theme.IsActive {
		s.announceTheme(ctx, theme)
	}
	return themePayload(theme), nil
}

func (s *Service) UpdateTheme(ctx context.Context, session identity.Session, themeID string, input UpdateThemeInput) (map[string]any, error) {
	if !session.Can(rbac.ActionManageThemes) {
		return nil, denied(session)
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	current, err := s.store.GetTheme(ctx, themeID)
	if err != nil {
		return nil, fmt.Errorf("get theme: %w", err)
	}

	var patch store.ThemePatch
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		patch.Title = &title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		patch.Description = &description
	}
	if input.StartDate != nil {
		startDate := parseDate(*input.StartDate)
		patch.StartDate = &startDate
	}
	if input.EndDate != nil {
		endDate := parseDate(*input.EndDate)
		patch.EndDate = &endDate
	}
	if input.EventDate != nil {
		if *input.EventDate == "" {
			patch.ClearEventDate = true
		} else {
			eventDate, err := time.Parse(dateLayout, *input.EventDate)
			if err != nil {
				return nil, validationError("eventDate", "eventDate must be a date in YYYY-MM-DD format")
			}
			patch.EventDate = &eventDate
		}
	}
	patch.IsActive = input.IsActive
	if err := checkThemeDates(patch.Apply(current)); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateTheme(ctx, themeID, patch)
	if err != nil {
		return nil, fmt.Errorf("update theme: %w", err)
	}
	if updated.IsActive && !current.IsActive {
		s.announceTheme(ctx, updated)
	}
	return themePayload(updated), nil
}

// ActivateTheme makes themeID the only active theme in one store operation.
func (s *Service) ActivateTheme(ctx context.Context, session identity.Session, themeID string) (map[string]any, error) {
	if !session.Can(rbac.ActionManageThemes) {
		return nil, denied(session)
	}
	current, err := s.store.GetTheme(ctx, themeID)
	if err != nil {
		return nil, fmt.Errorf("get theme: %w", err)
	}
	if err := s.store.ActivateTheme(ctx, themeID); err != nil {
		return nil, fmt.Errorf("activate theme: %w", err)
	}
	theme, err := s.store.GetTheme(ctx, themeID)
	if err != nil {
		return nil, fmt.Errorf("get theme: %w", err)
	}
	if !current.IsActive {
		s.announceTheme(ctx, theme)
	}
	s.logger.Info(ctx, "theme activated", zap.String("theme.id", themeID))
	return themePayload(theme), nil
}

// DeleteTheme removes the theme; ideas and events keep existing without it.
func (s *Service) DeleteTheme(ctx context.Context, session identity.Session, themeID string) error {
	if !session.Can(rbac.ActionManageThemes) {
		return denied(session)
	}
	if err := s.store.DeleteTheme(ctx, themeID); err != nil {
		return fmt.Errorf("delete theme: %w", err)
	}
	return nil
}

// GetActiveTheme returns nil when no theme is active.
func (s *Service) GetActiveTheme(ctx context.Context) (map[string]any, error) {
	theme, err := s.store.GetActiveTheme(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active theme: %w", err)
	}
	if theme == nil {
		return nil, nil
	}
	return themePayload(*theme), nil
}

func (s *Service) GetTheme(ctx context.Context, themeID string) (map[string]any, error) {
	theme, err := s.store.GetTheme(ctx, themeID)
	if err != nil {
		return nil, fmt.Errorf("get theme: %w", err)
	}
	return themePayload(theme), nil
}

func (s *Service) ListThemes(ctx context.Context) ([]map[string]any, error) {
	themes, err := s.store.ListThemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	items := make([]map[string]any, 0, len(themes))
	for _, theme := range themes {
		items = append(items, themePayload(theme))
	}
	return items, nil
}

func (s *Service) announceTheme(ctx context.Context, theme store.Theme) {
	link := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/themes/" + theme.ID
	s.notifyAllUsers(ctx, "New theme: "+theme.Title, fmt.Sprintf("This month's theme \"%s\" is open for ideas until %s.", theme.Title, formatDate(theme.EndDate)), link)
}

func themePayload(theme store.Theme) map[string]any {
	var eventDate any
	if theme.EventDate != nil {
		eventDate = formatDate(*theme.EventDate)
	}
	return map[string]any{
		"id":          theme.ID,
		"title":       theme.Title,
		"description": theme.Description,
		"startDate":   formatDate(theme.StartDate),
		"endDate":     formatDate(theme.EndDate),
		"eventDate":   eventDate,
		"isActive":    theme.IsActive,
		"createdAt":   theme.CreatedAt,
		"updatedAt":   theme.UpdatedAt,
	}
}

// Events

func newEvent(input EventInput, now time.Time) (store.Event, error) {
	if err := validate.Struct(input); err != nil {
		return store.Event{}, err
	}
	return store.Event{
		ID:               util.NewID("evt"),
		ThemeID:          stringPtr(input.ThemeID),
		IdeaID:           stringPtr(input.IdeaID),
		Title:            strings.TrimSpace(input.Title),
		Description:      strings.TrimSpace(input.Description),
		Date:             parseDate(input.Date),
		ParticipantCount: input.ParticipantCount,
		Content:          strings.TrimSpace(input.Content),
		NextActions:      strings.TrimSpace(input.NextActions),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func eventRefError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{
			"themeId": "theme or idea does not exist",
			"ideaId":  "theme or idea does not exist",
		})
	}
	return err
}

func (s *Service) CreateEvent(ctx context.Context, session identity.Session, input EventInput) (map[string]any, error) {
	if !session.Can(rbac.ActionManageEvents) {
		return nil, denied(session)
	}
	event, err := newEvent(input, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("insert event: %w", eventRefError(err))
	}
	return eventPayload(event), nil
}

// UpdateEvent replaces every editable field; the report key is kept.
func (s *Service) UpdateEvent(ctx context.Context, session identity.Session, eventID string, input EventInput) (map[string]any, error) {
	if !session.Can(rbac.ActionManageEvents) {
		return nil, denied(session)
	}
	current, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	next, err := newEvent(input, s.now())
	if err != nil {
		return nil, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.ReportKey = current.ReportKey
	if err := s.store.UpdateEvent(ctx, next); err != nil {
		return nil, fmt.Errorf("update event: %w", eventRefError(err))
	}
	return eventPayload(next), nil
}

func (s *Service) DeleteEvent(ctx context.Context, session identity.Session, eventID string) error {
	if !session.Can(rbac.ActionManageEvents) {
		return denied(session)
	}
	if err := s.store.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func (s *Service) GetEvent(ctx context.Context, eventID string) (map[string]any, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return eventPayload(event), nil
}

func (s *Service) ListEvents(ctx context.Context, themeID string) ([]map[string]any, error) {
	events, err := s.store.ListEvents(ctx, strings.TrimSpace(themeID))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	items := make([]map[string]any, 0, len(events))
	for _, event := range events {
		items = append(items, eventPayload(event))
	}
	return items, nil
}

// ExportEventReport renders the event report. With object storage configured
// the report is uploaded and a presigned URL returned instead of bytes.
func (s *Service) ExportEventReport(ctx context.Context, session identity.Session, eventID, format string) (ExportedReport, error) {
	if !session.Can(rbac.ActionManageEvents) {
		return ExportedReport{}, denied(session)
	}
	requested := export.Format(strings.ToLower(strings.TrimSpace(format)))
	if requested == "" {
		requested = export.FormatPDF
	}
	if !requested.Valid() {
		return ExportedReport{}, validationError("format", "format must be pdf or docx")
	}

	result, err := s.export.Export(ctx, export.Request{
		EventID: eventID,
		Format:  requested,
		Upload:  s.export.CanUpload(),
	})
	switch {
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return ExportedReport{}, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Report export is not available on this server", nil)
	case err != nil:
		return ExportedReport{}, fmt.Errorf("export event report: %w", err)
	}
	s.metrics.ReportsExported.WithLabelValues(string(requested)).Inc()

	report := ExportedReport{
		Filename:  result.Filename,
		MimeType:  result.MimeType,
		Data:      result.Data,
		URL:       result.URL,
		Key:       result.Key,
		ExpiresIn: result.URLTTL,
	}
	if report.URL != "" {
		report.Data = nil
	}
	return report, nil
}

func eventPayload(event store.Event) map[string]any {
	return map[string]any{
		"id":               event.ID,
		"themeId":          derefString(event.ThemeID),
		"ideaId":           derefString(event.IdeaID),
		"title":            event.Title,
		"description":      event.Description,
		"date":             formatDate(event.Date),
		"participantCount": event.ParticipantCount,
		"content":          event.Content,
		"nextActions":      event.NextActions,
		"reportKey":        nilIfEmpty(event.ReportKey),
		"createdAt":        event.CreatedAt,
		"updatedAt":        event.UpdatedAt,
	}
}
