package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.pilab.hu/stats/domain"
	serrors "go.pilab.hu/stats/errors"
	"go.pilab.hu/stats/internal/metrics"
)

// AccessTokenHeader is the header older clients send the bare token in.
const AccessTokenHeader = "access-token"

// SubjectKey is the echo context key of the authenticated subject.
const SubjectKey = "subject"

// TokenVerifier resolves a token to its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Authenticator guards routes with a bearer token.
type Authenticator struct {
	verifier TokenVerifier
	metrics  *metrics.Metrics
}

// NewAuthenticator creates a new Authenticator. m may be nil.
func NewAuthenticator(verifier TokenVerifier, m *metrics.Metrics) *Authenticator {
	return &Authenticator{verifier: verifier, metrics: m}
}

// Middleware rejects requests without a valid token and stores the
// token's subject in the request context.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := extractToken(c)
			if err == nil {
				var subject string
				if subject, err = a.verifier.Verify(token); err == nil {
					c.Set(SubjectKey, subject)
					req := c.Request()
					c.SetRequest(req.WithContext(domain.ContextWithSubject(req.Context(), subject)))
					return next(c)
				}
			}

			if a.metrics != nil {
				a.metrics.AuthFailed(string(serrors.Unauthenticated))
			}
			return err
		}
	}
}

// extractToken reads "Authorization: Bearer <token>" or, failing that,
// the access-token header.
func extractToken(c echo.Context) (string, error) {
	header := c.Request().Header

	if authHeader := header.Get(echo.HeaderAuthorization); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", serrors.NewUnauthenticated(nil, "invalid authorization header format: expected Bearer token")
		}
		return strings.TrimSpace(token), nil
	}

	if token := strings.TrimSpace(header.Get(AccessTokenHeader)); token != "" {
		return token, nil
	}

	return "", serrors.NewUnauthenticated(nil, "missing access token")
}
