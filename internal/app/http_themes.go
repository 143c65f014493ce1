package app

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *HTTPServer) listThemes(c echo.Context) error {
	items, err := s.service.ListThemes(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"themes": items})
}

// activeTheme answers {"theme": null} when no theme is running.
func (s *HTTPServer) activeTheme(c echo.Context) error {
	payload, err := s.service.GetActiveTheme(c.Request().Context())
	if err != nil {
		return err
	}
	if payload == nil {
		return c.JSON(http.StatusOK, map[string]any{"theme": nil})
	}
	return c.JSON(http.StatusOK, map[string]any{"theme": payload})
}

func (s *HTTPServer) getTheme(c echo.Context) error {
	payload, err := s.service.GetTheme(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) createTheme(c echo.Context) error {
	var body CreateThemeInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.CreateTheme(c.Request().Context(), requestSession(c), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payload)
}

func (s *HTTPServer) updateTheme(c echo.Context) error {
	var body UpdateThemeInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.UpdateTheme(c.Request().Context(), requestSession(c), c.Param("id"), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) deleteTheme(c echo.Context) error {
	if err := s.service.DeleteTheme(c.Request().Context(), requestSession(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) activateTheme(c echo.Context) error {
	payload, err := s.service.ActivateTheme(c.Request().Context(), requestSession(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) listEvents(c echo.Context) error {
	items, err := s.service.ListEvents(c.Request().Context(), c.QueryParam("themeId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"events": items})
}

func (s *HTTPServer) getEvent(c echo.Context) error {
	payload, err := s.service.GetEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) createEvent(c echo.Context) error {
	var body EventInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.CreateEvent(c.Request().Context(), requestSession(c), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payload)
}

func (s *HTTPServer) updateEvent(c echo.Context) error {
	var body EventInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.UpdateEvent(c.Request().Context(), requestSession(c), c.Param("id"), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) deleteEvent(c echo.Context) error {
	if err := s.service.DeleteEvent(c.Request().Context(), requestSession(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// exportEvent returns a download link when the report was uploaded to object
// storage, and the file itself otherwise.
func (s *HTTPServer) exportEvent(c echo.Context) error {
	report, err := s.service.ExportEventReport(c.Request().Context(), requestSession(c), c.Param("id"), c.QueryParam("format"))
	if err != nil {
		return err
	}
	if report.URL != "" {
		return c.JSON(http.StatusOK, map[string]any{
			"filename":  report.Filename,
			"mimeType":  report.MimeType,
			"url":       report.URL,
			"key":       report.Key,
			"expiresIn": int(report.ExpiresIn.Seconds()),
		})
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", report.Filename))
	return c.Blob(http.StatusOK, report.MimeType, report.Data)
}
