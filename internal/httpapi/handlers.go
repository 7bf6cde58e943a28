package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/userauth"
	"github.com/MrEthical07/userauth/middleware"
	"github.com/labstack/echo/v4"
)

func (h *handler) index(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Welcome"})
}

func (h *handler) health(c echo.Context) error {
	if err := h.auth.Ping(c.Request().Context()); err != nil {
		return h.fail(c, "health", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *handler) register(c echo.Context) error {
	email := c.FormValue("email")
	_, err := h.auth.Register(c.Request().Context(), email, c.FormValue("password"))
	if errors.Is(err, userauth.ErrAlreadyExists) {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "Email already exists"})
	}
	if err != nil {
		return h.fail(c, "register", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"email": email, "message": "User successfully registered"})
}

func (h *handler) login(c echo.Context) error {
	email := c.FormValue("email")
	token, err := h.auth.Login(c.Request().Context(), email, c.FormValue("password"))
	if err != nil {
		return h.fail(c, "login", err)
	}
	c.SetCookie(h.sessionCookie(token))
	return c.JSON(http.StatusOK, echo.Map{"email": email, "message": "Login successful"})
}

func (h *handler) logout(c echo.Context) error {
	token, ok := middleware.SessionToken(c.Request(), h.cookieName)
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden)
	}

	ctx := c.Request().Context()
	user, err := h.auth.SessionUser(ctx, token)
	if err != nil {
		return h.fail(c, "logout", err)
	}
	if err := h.auth.Logout(ctx, user.ID); err != nil {
		return h.fail(c, "logout", err)
	}

	expired := h.sessionCookie("")
	expired.MaxAge = -1
	c.SetCookie(expired)
	return c.Redirect(http.StatusFound, "/")
}

func (h *handler) profile(c echo.Context) error {
	user, ok := middleware.UserFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusForbidden)
	}
	return c.JSON(http.StatusOK, echo.Map{"email": user.Email})
}

func (h *handler) requestReset(c echo.Context) error {
	email := c.FormValue("email")
	token, err := h.auth.RequestPasswordReset(c.Request().Context(), email)
	if err != nil {
		return h.fail(c, "request_password_reset", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"email": email, "reset_token": token})
}

func (h *handler) confirmReset(c echo.Context) error {
	email := c.FormValue("email")
	err := h.auth.ConfirmPasswordReset(c.Request().Context(), c.FormValue("reset_token"), c.FormValue("new_password"))
	if err != nil {
		return h.fail(c, "confirm_password_reset", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"email": email, "message": "Password updated successfully"})
}

func (h *handler) sessionCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// fail maps a Manager error to a status. Unknown emails and bad tokens answer
// 403 like an unauthenticated request.
func (h *handler) fail(c echo.Context, op string, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WarnContext(c.Request().Context(), "request failed",
			"op", op,
			"status", status,
			"error", err,
		)
	}
	return echo.NewHTTPError(status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, userauth.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, userauth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, userauth.ErrUnauthenticated),
		errors.Is(err, userauth.ErrNoSuchUser),
		errors.Is(err, userauth.ErrInvalidToken),
		errors.Is(err, userauth.ErrNotFound):
		return http.StatusForbidden
	case errors.Is(err, userauth.ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, userauth.ErrStoreUnavailable),
		errors.Is(err, userauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
