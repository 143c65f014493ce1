package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"buildea/api/internal/authpw"
	"buildea/api/internal/config"
	"buildea/api/internal/email"
	"buildea/api/internal/export"
	"buildea/api/internal/logging"
	"buildea/api/internal/metrics"
	"buildea/api/internal/ratelimit"
	"buildea/api/internal/realtime"
	"buildea/api/internal/search"
	"buildea/api/internal/store"
)

// backgroundTimeout bounds fire-and-forget work started by a request.
const backgroundTimeout = 30 * time.Second

// DataStore is implemented by every storage backend.
type DataStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	ListUsers(context.Context) ([]store.User, error)
	UpdateUserDisplayName(context.Context, string, string) error
	UpdateUserRole(context.Context, string, string) error
	UpdateUserPassword(context.Context, string, string) error
	DeleteUserAccount(context.Context, string, store.DeletionLog) error
	ListDeletionLogs(context.Context) ([]store.DeletionLog, error)
	GetUserSettings(context.Context, string) (store.UserSettings, error)
	SaveUserSettings(context.Context, store.UserSettings) error

	SaveRefreshSession(context.Context, string, string, time.Time) error
	ConsumeRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error

	InsertIdea(context.Context, store.Idea) error
	GetIdea(context.Context, string) (store.Idea, error)
	ListIdeas(context.Context) ([]store.Idea, error)
	UpdateIdeaStatus(context.Context, string, store.IdeaStatus, store.IdeaAction) (store.Idea, error)
	UpdateIdeaAdmin(context.Context, string, string, []store.ChecklistItem) error
	DeleteIdea(context.Context, string) error

	InsertLike(context.Context, store.Like) (bool, error)
	DeleteLike(context.Context, string, string) (bool, error)
	HasLike(context.Context, string, string) (bool, error)
	CountLikes(context.Context, string) (int, error)

	InsertComment(context.Context, store.Comment) error
	ListComments(context.Context, string) ([]store.Comment, error)
	InsertAdminComment(context.Context, store.AdminComment) error
	ListAdminComments(context.Context, string) ([]store.AdminComment, error)

	InsertTheme(context.Context, store.Theme) error
	GetTheme(context.Context, string) (store.Theme, error)
	ListThemes(context.Context) ([]store.Theme, error)
	GetActiveTheme(context.Context) (*store.Theme, error)
	UpdateTheme(context.Context, string, store.ThemePatch) (store.Theme, error)
	ActivateTheme(context.Context, string) error
	DeleteTheme(context.Context, string) error

	InsertEvent(context.Context, store.Event) error
	GetEvent(context.Context, string) (store.Event, error)
	ListEvents(context.Context, string) ([]store.Event, error)
	UpdateEvent(context.Context, store.Event) error
	SetEventReport(context.Context, string, string) error
	DeleteEvent(context.Context, string) error

	InsertNotification(context.Context, store.Notification) error
	ListNotifications(context.Context, string) ([]store.Notification, error)
	MarkNotificationRead(context.Context, string, string) error
	MarkAllNotificationsRead(context.Context, string) (int, error)
	CountUnreadNotifications(context.Context, string) (int, error)

	InsertContact(context.Context, store.Contact) error
	ListContacts(context.Context) ([]store.Contact, error)
	InsertBusinessContact(context.Context, store.BusinessContact) error
	ListBusinessContacts(context.Context) ([]store.BusinessContact, error)

	Stats(context.Context) (store.Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ DataStore = (*store.PostgresStore)(nil)
	_ DataStore = (*store.MongoStore)(nil)
	_ DataStore = (*store.MemoryStore)(nil)
)

// sessionStore holds hashed refresh tokens. Redis when configured, the
// primary store otherwise.
type sessionStore interface {
	SaveRefreshSession(context.Context, string, string, time.Time) error
	ConsumeRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
}

// userSessionRevoker is implemented by session stores that index tokens by user.
type userSessionRevoker interface {
	RevokeUserSessions(context.Context, string) error
}

type pinger interface {
	Ping(context.Context) error
}

// Deps are the collaborators of a Service. Only Store is required.
type Deps struct {
	Store    DataStore
	Sessions sessionStore
	Search   *search.Service
	Mailer   email.Mailer
	Hub      *realtime.Hub
	Metrics  *metrics.Metrics
	Export   *export.Service
	Limiter  *ratelimit.Limiter
	Logger   *logging.Logger
	// PasswordCost overrides the bcrypt cost when positive.
	PasswordCost int
}

type Service struct {
	cfg       config.Config
	store     DataStore
	sessions  sessionStore
	passwords *authpw.Service
	search    *search.Service
	mailer    email.Mailer
	hub       *realtime.Hub
	metrics   *metrics.Metrics
	export    *export.Service
	limiter   *ratelimit.Limiter
	logger    *logging.Logger
	now       func() time.Time
	bg        sync.WaitGroup
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Service{
		cfg:      cfg,
		store:    deps.Store,
		sessions: deps.Sessions,
		search:   deps.Search,
		mailer:   deps.Mailer,
		hub:      deps.Hub,
		metrics:  deps.Metrics,
		export:   deps.Export,
		limiter:  deps.Limiter,
		logger:   logger.Named("app"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.sessions == nil {
		s.sessions = deps.Store
	}
	if s.search == nil {
		s.search = search.NewService(nil, logger)
	}
	if s.mailer == nil {
		s.mailer = email.NewLogMailer(logger)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.export == nil {
		s.export = export.NewService(deps.Store, nil)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(cfg.RateLimitPerMinute)
	}
	s.passwords = authpw.NewService(deps.Store, s.limiter)
	if deps.PasswordCost > 0 {
		s.passwords.WithCost(deps.PasswordCost)
	}
	return s
}

// Bootstrap creates the configured admin account when it does not exist yet.
func (s *Service) Bootstrap(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.AdminEmail) == "" || s.cfg.AdminPassword == "" {
		return nil
	}
	_, err := s.EnsureAdmin(ctx, s.cfg.AdminEmail, s.cfg.AdminPassword, "Admin")
	return err
}

// EnsureAdmin signs up an admin account, or promotes the existing account
// with that email.
func (s *Service) EnsureAdmin(ctx context.Context, emailAddr, password, displayName string) (store.User, error) {
	existing, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(emailAddr)))
	switch {
	case err == nil:
		if existing.Role != store.RoleAdmin {
			if err := s.store.UpdateUserRole(ctx, existing.ID, store.RoleAdmin); err != nil {
				return store.User{}, fmt.Errorf("promote admin: %w", err)
			}
			existing.Role = store.RoleAdmin
			s.logger.Info(ctx, "promoted existing account to admin", zap.String("user.id", existing.ID))
		}
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return store.User{}, fmt.Errorf("lookup admin: %w", err)
	}

	user, err := s.passwords.SignUp(ctx, authpw.SignUpRequest{
		Email:       emailAddr,
		Password:    password,
		DisplayName: displayName,
		Role:        store.RoleAdmin,
	})
	if err != nil {
		return store.User{}, fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info(ctx, "created admin account", zap.String("user.id", user.ID))
	return user, nil
}

// Ping checks the health of service dependencies (database, etc.)
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ReadinessChecks pings every configured backend and returns the failures
// keyed by component name.
func (s *Service) ReadinessChecks(ctx context.Context) map[string]error {
	checks := map[string]error{"database": s.store.Ping(ctx)}
	if p, ok := s.sessions.(pinger); ok && any(s.sessions) != any(s.store) {
		checks["sessions"] = p.Ping(ctx)
	}
	return checks
}

// Wait blocks until background work (emails, indexing) has finished.
func (s *Service) Wait() {
	s.bg.Wait()
	s.search.Wait()
}

func (s *Service) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Service) Hub() *realtime.Hub {
	return s.hub
}

// goBackground runs fn detached from the request with its own timeout.
func (s *Service) goBackground(ctx context.Context, name string, fn func(ctx context.Context) error) {
	bgCtx := logging.WithRequestID(context.Background(), logging.RequestIDFromContext(ctx))
	bgCtx = logging.WithUserID(bgCtx, logging.UserIDFromContext(ctx))
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		runCtx, cancel := context.WithTimeout(bgCtx, backgroundTimeout)
		defer cancel()
		if err := fn(runCtx); err != nil {
			s.logger.Warn(runCtx, name+" failed", zap.Error(err))
		}
	}()
}

func (s *Service) allow(key string) bool {
	return s.limiter.Allow(key)
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func derefString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func stringPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
