package app

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (s *HTTPServer) listNotifications(c echo.Context) error {
	items, err := s.service.ListNotifications(c.Request().Context(), requestSession(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"notifications": items})
}

func (s *HTTPServer) unreadCount(c echo.Context) error {
	count, err := s.service.UnreadCount(c.Request().Context(), requestSession(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"count": count})
}

func (s *HTTPServer) markRead(c echo.Context) error {
	if err := s.service.MarkNotificationRead(c.Request().Context(), requestSession(c), c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) markAllRead(c echo.Context) error {
	updated, err := s.service.MarkAllNotificationsRead(c.Request().Context(), requestSession(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true, "updated": updated})
}

// notificationStream upgrades to a websocket. Browsers cannot set headers on
// the upgrade request, so the access token may also come as a query param.
func (s *HTTPServer) notificationStream(c echo.Context) error {
	hub := s.service.Hub()
	if hub == nil {
		return domainError(http.StatusServiceUnavailable, "REALTIME_UNAVAILABLE", "Realtime notifications are not enabled", nil)
	}
	sess := requestSession(c)
	if !sess.Authenticated() {
		token := c.QueryParam("access_token")
		if token == "" {
			return unauthorized()
		}
		resolved, err := s.service.SessionFromToken(c.Request().Context(), token)
		if err != nil {
			return err
		}
		sess = resolved
	}
	// The upgrader has already answered the client when Serve fails.
	if err := hub.Serve(c.Response(), c.Request(), sess.UserID); err != nil {
		s.logger.Warn(c.Request().Context(), "websocket upgrade failed", zap.Error(err))
	}
	return nil
}
