package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buildea/api/internal/blob"
	"buildea/api/internal/store"
)

const reportURLTTL = 24 * time.Hour

// DataStore defines the interface for data access
type DataStore interface {
	GetEvent(ctx context.Context, id string) (store.Event, error)
	GetTheme(ctx context.Context, id string) (store.Theme, error)
	GetIdea(ctx context.Context, id string) (store.Idea, error)
	SetEventReport(ctx context.Context, id, reportKey string) error
}

// Uploader is the object storage used for finished reports.
type Uploader interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	PresignedURL(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
}

type renderFunc func(ctx context.Context, html, title string) (*Result, error)

// Service provides event report export
type Service struct {
	store    DataStore
	uploader Uploader
	now      func() time.Time
	pdf      renderFunc
	docx     renderFunc
}

// NewService creates a new export service. uploader may be nil.
func NewService(store DataStore, uploader Uploader) *Service {
	return &Service{
		store:    store,
		uploader: uploader,
		now:      time.Now,
		pdf:      exportPDF,
		docx:     exportDOCX,
	}
}

// CanUpload reports whether results can be stored in object storage.
func (s *Service) CanUpload() bool {
	return s.uploader != nil
}

// Export generates a report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if !req.Format.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}

	data, err := s.reportData(ctx, req.EventID)
	if err != nil {
		return nil, err
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	var result *Result
	switch req.Format {
	case FormatPDF:
		result, err = s.pdf(ctx, html, data.Event.Title)
	case FormatDOCX:
		result, err = s.docx(ctx, html, data.Event.Title)
	}
	if err != nil {
		return nil, err
	}

	if req.Upload && s.uploader != nil {
		if err := s.upload(ctx, data.Event.ID, req.Format, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Service) reportData(ctx context.Context, eventID string) (ReportData, error) {
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return ReportData{}, fmt.Errorf("get event: %w", err)
	}
	data := ReportData{Event: event, GeneratedAt: s.now()}

	// A dangling theme or idea reference renders without that section.
	if event.ThemeID != nil {
		theme, err := s.store.GetTheme(ctx, *event.ThemeID)
		switch {
		case err == nil:
			data.Theme = &theme
		case !errors.Is(err, store.ErrNotFound):
			return ReportData{}, fmt.Errorf("get theme: %w", err)
		}
	}
	if event.IdeaID != nil {
		idea, err := s.store.GetIdea(ctx, *event.IdeaID)
		switch {
		case err == nil:
			data.Idea = &idea
		case !errors.Is(err, store.ErrNotFound):
			return ReportData{}, fmt.Errorf("get idea: %w", err)
		}
	}
	return data, nil
}

func (s *Service) upload(ctx context.Context, eventID string, format Format, result *Result) error {
	key := blob.ReportKey(eventID, string(format), s.now())
	if err := s.uploader.Put(ctx, key, result.MimeType, result.Data); err != nil {
		return fmt.Errorf("upload report: %w", err)
	}
	if err := s.store.SetEventReport(ctx, eventID, key); err != nil {
		return fmt.Errorf("record report key: %w", err)
	}
	url, err := s.uploader.PresignedURL(ctx, key, result.Filename, reportURLTTL)
	if err != nil {
		return fmt.Errorf("presign report: %w", err)
	}
	result.Key = key
	result.URL = url
	result.URLTTL = reportURLTTL
	return nil
}
