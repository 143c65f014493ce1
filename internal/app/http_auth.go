package app

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *HTTPServer) signUp(c echo.Context) error {
	var body SignUpInput
	if err := bind(c, &body); err != nil {
		return err
	}
	result, err := s.service.SignUp(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authSessionPayload(result))
}

func (s *HTTPServer) signIn(c echo.Context) error {
	var body SignInInput
	if err := bind(c, &body); err != nil {
		return err
	}
	result, err := s.service.SignIn(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authSessionPayload(result))
}

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *HTTPServer) refresh(c echo.Context) error {
	var body refreshBody
	if err := bind(c, &body); err != nil {
		return err
	}
	result, err := s.service.Refresh(c.Request().Context(), body.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authSessionPayload(result))
}

// signOut always succeeds; an unknown refresh token is already signed out.
func (s *HTTPServer) signOut(c echo.Context) error {
	var body refreshBody
	_ = c.Bind(&body)
	if body.RefreshToken != "" {
		if err := s.service.SignOut(c.Request().Context(), body.RefreshToken); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) currentSession(c echo.Context) error {
	sess := requestSession(c)
	if !sess.Authenticated() {
		return c.JSON(http.StatusOK, map[string]any{
			"authenticated": false,
			"visitorId":     sess.VisitorID,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": true,
		"visitorId":     sess.VisitorID,
		"userId":        sess.UserID,
		"displayName":   sess.DisplayName,
		"email":         sess.Email,
		"role":          sess.EffectiveRole(),
	})
}

func (s *HTTPServer) updateProfile(c echo.Context) error {
	var body struct {
		DisplayName string `json:"displayName"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.UpdateProfile(c.Request().Context(), requestSession(c), body.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) changePassword(c echo.Context) error {
	var body ChangePasswordInput
	if err := bind(c, &body); err != nil {
		return err
	}
	if err := s.service.ChangePassword(c.Request().Context(), requestSession(c), body); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) deleteAccount(c echo.Context) error {
	var body DeleteAccountInput
	if err := bind(c, &body); err != nil {
		return err
	}
	if err := s.service.DeleteAccount(c.Request().Context(), requestSession(c), body); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) getSettings(c echo.Context) error {
	payload, err := s.service.GetSettings(c.Request().Context(), requestSession(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}

func (s *HTTPServer) updateSettings(c echo.Context) error {
	var body UpdateSettingsInput
	if err := bind(c, &body); err != nil {
		return err
	}
	payload, err := s.service.UpdateSettings(c.Request().Context(), requestSession(c), body)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, payload)
}
