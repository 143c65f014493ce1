package app

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *HTTPServer) submitContact(c echo.Context) error {
	var body ContactInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.SubmitContact(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payload)
}

func (s *HTTPServer) submitBusinessContact(c echo.Context) error {
	var body BusinessContactInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.SubmitBusinessContact(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payload)
}

func (s *HTTPServer) listContacts(c echo.Context) error {
	items, err := s.service.ListContacts(c.Request().Context(), requestSession(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"contacts": items})
}

func (s *HTTPServer) listBusinessContacts(c echo.Context) error {
	items, err := s.service.ListBusinessContacts(c.Request().Context(), requestSession(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"contacts": items})
}

func (s *HTTPServer) adminStats(c echo.Context) error {
	payload, err := s.service.AdminStats(c.Request().Context(), requestSession(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) listUsers(c echo.Context) error {
	items, err := s.service.ListUsers(c.Request().Context(), requestSession(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"users": items})
}

func (s *HTTPServer) updateUserRole(c echo.Context) error {
	var body UpdateRoleInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.UpdateUserRole(c.Request().Context(), requestSession(c), c.Param("id"), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) sendNotification(c echo.Context) error {
	var body CreateNotificationInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.SendNotification(c.Request().Context(), requestSession(c), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payload)
}

// adminDeleteUser is guarded by the static admin token, not a user session.
func (s *HTTPServer) adminDeleteUser(c echo.Context) error {
	token := bearerToken(c.Request())
	if token == "" {
		return unauthorized()
	}
	var body AdminDeleteUserRequest
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.AdminDeleteUser(c.Request().Context(), token, body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}
