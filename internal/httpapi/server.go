package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/userauth"
	"github.com/MrEthical07/userauth/middleware"
	"github.com/labstack/echo/v4"
)

// Service is the subset of *userauth.Manager the routes need.
type Service interface {
	middleware.SessionResolver
	middleware.CredentialVerifier
	Register(ctx context.Context, email, password string) (userauth.PublicUser, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, userID string) error
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error
	Ping(ctx context.Context) error
}

type Options struct {
	// CookieName defaults to middleware.DefaultCookieName.
	CookieName   string
	SecureCookie bool
	Logger       *slog.Logger
	// BasicAuth lets /profile accept HTTP Basic email:password credentials.
	BasicAuth bool
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

type handler struct {
	auth         Service
	cookieName   string
	secureCookie bool
	logger       *slog.Logger
}

// New builds the echo instance with every route registered.
func New(auth Service, opts Options) *echo.Echo {
	h := &handler{
		auth:         auth,
		cookieName:   opts.CookieName,
		secureCookie: opts.SecureCookie,
		logger:       opts.Logger,
	}
	if h.cookieName == "" {
		h.cookieName = middleware.DefaultCookieName
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.logger = h.logger.With("component", "httpapi")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(h.requestContext)

	guardOpts := []middleware.Option{
		middleware.WithCookieName(h.cookieName),
		middleware.WithRejectStatus(http.StatusForbidden),
	}
	if opts.BasicAuth {
		guardOpts = append(guardOpts, middleware.WithBasicAuth(auth))
	}
	guard := echo.WrapMiddleware(middleware.Guard(auth, guardOpts...))

	e.GET("/", h.index)
	e.GET("/healthz", h.health)
	e.POST("/users", h.register)
	e.POST("/sessions", h.login)
	e.DELETE("/sessions", h.logout)
	e.GET("/profile", h.profile, guard)
	e.POST("/reset_password", h.requestReset)
	e.PUT("/reset_password", h.confirmReset)
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}
	return e
}

// requestContext forwards the caller's address and user agent to audit events.
func (h *handler) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		ctx := userauth.WithClientIP(r.Context(), c.RealIP())
		ctx = userauth.WithUserAgent(ctx, r.UserAgent())
		c.SetRequest(r.WithContext(ctx))
		return next(c)
	}
}
