package app

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *HTTPServer) listIdeas(c echo.Context) error {
	var query ListIdeasInput
	if err := bind(c, &query); err != nil {
		return err
	}
	payload, err := s.service.ListIdeas(c.Request().Context(), requestSession(c), query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) createIdea(c echo.Context) error {
	var body CreateIdeaInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.CreateIdea(c.Request().Context(), requestSession(c), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payload)
}

func (s *HTTPServer) getIdea(c echo.Context) error {
	payload, err := s.service.GetIdea(c.Request().Context(), requestSession(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) deleteIdea(c echo.Context) error {
	if err := s.service.DeleteIdea(c.Request().Context(), requestSession(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) updateIdeaStatus(c echo.Context) error {
	var body UpdateStatusInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.UpdateIdeaStatus(c.Request().Context(), requestSession(c), c.Param("id"), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) updateIdeaAdmin(c echo.Context) error {
	var body UpdateIdeaAdminInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.UpdateIdeaAdmin(c.Request().Context(), requestSession(c), c.Param("id"), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) listAdminComments(c echo.Context) error {
	items, err := s.service.ListAdminComments(c.Request().Context(), requestSession(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"comments": items})
}

func (s *HTTPServer) addAdminComment(c echo.Context) error {
	var body AddAdminCommentInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.AddAdminComment(c.Request().Context(), requestSession(c), c.Param("id"), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payload)
}

func (s *HTTPServer) hasLiked(c echo.Context) error {
	payload, err := s.service.HasUserLiked(c.Request().Context(), requestSession(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) likeIdea(c echo.Context) error {
	payload, err := s.service.LikeIdea(c.Request().Context(), requestSession(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) unlikeIdea(c echo.Context) error {
	payload, err := s.service.UnlikeIdea(c.Request().Context(), requestSession(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) listComments(c echo.Context) error {
	items, err := s.service.ListComments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"comments": items})
}

func (s *HTTPServer) addComment(c echo.Context) error {
	var body AddCommentInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.AddComment(c.Request().Context(), requestSession(c), c.Param("id"), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, payload)
}
