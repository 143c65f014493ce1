package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"buildea/api/internal/auth"
	"buildea/api/internal/authpw"
	"buildea/api/internal/config"
	"buildea/api/internal/identity"
	"buildea/api/internal/logging"
	"buildea/api/internal/store"
)

type HTTPServer struct {
	service *Service
	cfg     config.Config
	echo    *echo.Echo
	logger  *logging.Logger
}

func NewHTTPServer(service *Service, cfg config.Config, logger *logging.Logger) *HTTPServer {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &HTTPServer{
		service: service,
		cfg:     cfg,
		echo:    echo.New(),
		logger:  logger.Named("http"),
	}
	s.setup()
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *HTTPServer) setup() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, requestID string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), requestID)))
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.logger.Error(c.Request().Context(), "panic recovered", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("http.method", v.Method),
				zap.String("http.route", v.RoutePath),
				zap.String("http.uri", v.URI),
				zap.Int("http.status", v.Status),
				zap.Duration("duration", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			s.logger.Info(c.Request().Context(), "request", fields...)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{s.cfg.CORSOrigin},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID, identity.HeaderName},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowCredentials: s.cfg.CORSOrigin != "*",
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(s.service.Metrics().Middleware())
	e.Use(s.visitorMiddleware)
	e.Use(s.sessionMiddleware)

	s.routes()
}

func (s *HTTPServer) routes() {
	e := s.echo
	e.GET("/api/health", s.health)
	e.HEAD("/api/health", s.health)
	e.GET("/api/ready", s.ready)
	e.GET("/metrics", echo.WrapHandler(s.service.Metrics().Handler()))
	e.GET("/api/visitor", s.visitor)

	authGroup := e.Group("/api/auth")
	authGroup.POST("/signup", s.signUp)
	authGroup.POST("/signin", s.signIn)
	authGroup.POST("/signout", s.signOut)
	authGroup.POST("/refresh", s.refresh)
	authGroup.GET("/session", s.currentSession)
	authGroup.PUT("/profile", s.updateProfile)
	authGroup.PUT("/password", s.changePassword)
	authGroup.DELETE("/account", s.deleteAccount)

	e.GET("/api/settings", s.getSettings)
	e.PUT("/api/settings", s.updateSettings)

	ideas := e.Group("/api/ideas")
	ideas.GET("", s.listIdeas)
	ideas.POST("", s.createIdea)
	ideas.GET("/:id", s.getIdea)
	ideas.DELETE("/:id", s.deleteIdea)
	ideas.PUT("/:id/status", s.updateIdeaStatus)
	ideas.PUT("/:id/admin", s.updateIdeaAdmin)
	ideas.GET("/:id/admin-comments", s.listAdminComments)
	ideas.POST("/:id/admin-comments", s.addAdminComment)
	ideas.GET("/:id/like", s.hasLiked)
	ideas.POST("/:id/like", s.likeIdea)
	ideas.DELETE("/:id/like", s.unlikeIdea)
	ideas.GET("/:id/comments", s.listComments)
	ideas.POST("/:id/comments", s.addComment)

	themes := e.Group("/api/themes")
	themes.GET("", s.listThemes)
	themes.GET("/active", s.activeTheme)
	themes.GET("/:id", s.getTheme)
	themes.POST("", s.createTheme)
	themes.PUT("/:id", s.updateTheme)
	themes.DELETE("/:id", s.deleteTheme)
	themes.POST("/:id/activate", s.activateTheme)

	events := e.Group("/api/events")
	events.GET("", s.listEvents)
	events.GET("/:id", s.getEvent)
	events.POST("", s.createEvent)
	events.PUT("/:id", s.updateEvent)
	events.DELETE("/:id", s.deleteEvent)
	events.POST("/:id/export", s.exportEvent)

	notifications := e.Group("/api/notifications")
	notifications.GET("", s.listNotifications)
	notifications.GET("/unread-count", s.unreadCount)
	notifications.POST("/read-all", s.markAllRead)
	notifications.POST("/:id/read", s.markRead)
	notifications.GET("/stream", s.notificationStream)

	e.POST("/api/contacts", s.submitContact)
	e.POST("/api/business-contacts", s.submitBusinessContact)

	admin := e.Group("/api/admin")
	admin.GET("/contacts", s.listContacts)
	admin.GET("/business-contacts", s.listBusinessContacts)
	admin.GET("/stats", s.adminStats)
	admin.GET("/users", s.listUsers)
	admin.PUT("/users/:id/role", s.updateUserRole)
	admin.POST("/notifications", s.sendNotification)
	admin.POST("/delete-user", s.adminDeleteUser)
}

// visitorMiddleware makes sure every request carries a visitor id: the cookie
// first, then the header, otherwise a fresh one that is set as a cookie.
func (s *HTTPServer) visitorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		visitorID := ""
		if cookie, err := c.Cookie(identity.CookieName); err == nil && identity.ValidVisitorID(cookie.Value) {
			visitorID = cookie.Value
		} else if header := strings.TrimSpace(c.Request().Header.Get(identity.HeaderName)); identity.ValidVisitorID(header) {
			visitorID = header
		}
		if visitorID == "" {
			generated, err := identity.NewVisitorID(time.Now())
			if err != nil {
				return err
			}
			visitorID = generated
			c.SetCookie(&http.Cookie{
				Name:     identity.CookieName,
				Value:    visitorID,
				Path:     "/",
				MaxAge:   identity.CookieMaxAge,
				HttpOnly: true,
				Secure:   s.cfg.IsProduction(),
				SameSite: http.SameSiteLaxMode,
			})
		}
		req := c.Request()
		ctx := identity.WithSession(req.Context(), identity.Session{VisitorID: visitorID})
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

// sessionMiddleware upgrades the visitor session when a valid bearer token is
// present. A bad token is rejected everywhere except the auth routes, which
// must stay reachable to sign in again.
func (s *HTTPServer) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request())
		if token == "" || c.Path() == "/api/admin/delete-user" {
			return next(c)
		}
		req := c.Request()
		session, err := s.service.SessionFromToken(req.Context(), token)
		if err != nil {
			if strings.HasPrefix(c.Path(), "/api/auth/") {
				return next(c)
			}
			return err
		}
		session.VisitorID = identity.FromContext(req.Context()).VisitorID
		ctx := identity.WithSession(req.Context(), session)
		ctx = logging.WithUserID(ctx, session.UserID)
		c.SetRequest(req.WithContext(ctx))
		return next(c)
	}
}

func (s *HTTPServer) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err), zap.String("http.route", c.Path()))
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorBody(code, message, details))
	}
	if err != nil {
		s.logger.Warn(c.Request().Context(), "write error response", zap.Error(err))
	}
}

func errorBody(code, message string, details any) map[string]any {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	return response
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", validationDetails(validationErrs)
	}
	var authErr *authpw.Error
	if errors.As(err, &authErr) {
		switch authErr.Code {
		case authpw.CodeWrongPassword, authpw.CodeUserNotFound:
			return http.StatusUnauthorized, authErr.Code, authErr.Message, nil
		case authpw.CodeTooManyRequests:
			return http.StatusTooManyRequests, authErr.Code, authErr.Message, nil
		case authpw.CodeEmailInUse:
			return http.StatusConflict, authErr.Code, authErr.Message, nil
		default:
			return http.StatusBadRequest, authErr.Code, authErr.Message, nil
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, store.ErrConflict) {
		return http.StatusConflict, "CONFLICT", "Conflict", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if m, ok := httpErr.Message.(string); ok && m != "" {
			msg = m
		}
		return httpErr.Code, httpCode(httpErr.Code), msg, nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	return "HTTP_ERROR"
}

// bind decodes the request into target; malformed input is a 400.
func bind(c echo.Context, target any) error {
	if err := c.Bind(target); err != nil {
		return domainError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
	}
	return nil
}

func requestSession(c echo.Context) identity.Session {
	return identity.FromContext(c.Request().Context())
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func (s *HTTPServer) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.ReadinessChecks(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}
	return c.JSON(statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) visitor(c echo.Context) error {
	sess := requestSession(c)
	return c.JSON(http.StatusOK, map[string]any{
		"visitorId":      sess.VisitorID,
		"likeIdentifier": sess.LikeIdentifier(),
		"authenticated":  sess.Authenticated(),
	})
}
