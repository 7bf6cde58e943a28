package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/userauth"
)

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "session_id"

// SessionResolver is satisfied by *userauth.Manager.
type SessionResolver interface {
	SessionUser(ctx context.Context, sessionToken string) (userauth.PublicUser, error)
}

// CredentialVerifier is satisfied by *userauth.Manager.
type CredentialVerifier interface {
	Authenticate(ctx context.Context, email, password string) (userauth.PublicUser, error)
}

type userContextKey struct{}

// UserFromContext returns the identity stored by Guard.
func UserFromContext(ctx context.Context) (userauth.PublicUser, bool) {
	u, ok := ctx.Value(userContextKey{}).(userauth.PublicUser)
	return u, ok
}

// ContextWithUser stores u the way Guard does. Useful for handler tests.
func ContextWithUser(ctx context.Context, u userauth.PublicUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

type options struct {
	cookieName   string
	rejectStatus int
	basic        CredentialVerifier
}

// Option customises Guard.
type Option func(*options)

func WithCookieName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.cookieName = name
		}
	}
}

// WithRejectStatus sets the status for missing or unknown sessions.
// The default is 401.
func WithRejectStatus(code int) Option {
	return func(o *options) {
		o.rejectStatus = code
	}
}

// WithBasicAuth makes Guard accept "Authorization: Basic" credentials
// (base64 of email:password) from requests without a session. They are
// checked through verifier on every request.
func WithBasicAuth(verifier CredentialVerifier) Option {
	return func(o *options) {
		o.basic = verifier
	}
}

// Guard rejects requests without a resolvable session or, with WithBasicAuth,
// valid Basic credentials. Store outages answer 503 so clients can retry.
func Guard(resolver SessionResolver, opts ...Option) func(http.Handler) http.Handler {
	o := options{cookieName: DefaultCookieName, rejectStatus: http.StatusUnauthorized}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if resolver == nil {
				http.Error(w, http.StatusText(o.rejectStatus), o.rejectStatus)
				return
			}

			user, err := o.identify(r, resolver)
			if err != nil {
				if errors.Is(err, userauth.ErrStoreUnavailable) {
					http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
					return
				}
				if o.basic != nil && o.rejectStatus == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Basic realm="userauth", charset="UTF-8"`)
				}
				http.Error(w, http.StatusText(o.rejectStatus), o.rejectStatus)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// identify prefers a session and falls back to Basic credentials when enabled.
func (o *options) identify(r *http.Request, resolver SessionResolver) (userauth.PublicUser, error) {
	if token, ok := SessionToken(r, o.cookieName); ok {
		return resolver.SessionUser(r.Context(), token)
	}
	if o.basic != nil {
		if email, password, ok := BasicCredentials(r); ok {
			return o.basic.Authenticate(r.Context(), email, password)
		}
	}
	return userauth.PublicUser{}, userauth.ErrUnauthenticated
}

// BasicCredentials decodes an "Authorization: Basic" header into an email and
// password, split at the first colon. Malformed base64, a missing colon or an
// empty half report false.
func BasicCredentials(r *http.Request) (email, password string, ok bool) {
	email, password, ok = r.BasicAuth()
	if !ok || email == "" || password == "" {
		return "", "", false
	}
	return email, password, true
}

// SessionToken extracts the token from the named cookie, falling back to an
// Authorization bearer header.
func SessionToken(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
