package echo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	serrors "go.pilab.hu/stats/errors"
	"go.pilab.hu/stats/internal/metrics"
	"go.pilab.hu/stats/log"
	"go.pilab.hu/stats/middleware"
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerOptions configure NewServer.
type ServerOptions struct {
	Prefix        string
	Authenticator *middleware.Authenticator
	Store         Pinger
	Gatherer      prometheus.Gatherer
	Metrics       *metrics.Metrics
	Logger        log.Logger
	Debug         bool
}

// NewServer builds the echo instance serving statsAPI under the prefix,
// plus /healthz and /metrics.
func NewServer(statsAPI *StatsAPI, opts ServerOptions) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = opts.Debug
	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(middleware.AccessLog(logger, opts.Metrics))
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("1M"))

	e.GET("/healthz", healthHandler(opts.Store))
	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	prefix := "/" + strings.Trim(opts.Prefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	statsAPI.RegisterRoutes(e.Group(prefix), opts.Authenticator.Middleware())

	return e
}

func healthHandler(store Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if store != nil {
			if err := store.Ping(c.Request().Context()); err != nil {
				return serrors.NewStoreError(err, "store unreachable")
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ErrorHandler renders errors as {"error": kind, "detail": text}. Causes
// are logged, never sent.
func ErrorHandler(logger log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			writeJSON(c, httpErr.Code, &serrors.StatsError{
				Kind:   kindForStatus(httpErr.Code),
				Detail: fmt.Sprint(httpErr.Message),
			})
			return
		}

		statsErr := serrors.As(err)
		status := serrors.HTTPStatus(statsErr.Kind)
		if status >= http.StatusInternalServerError {
			logger.Error(c.Request().Context(), "request failed", err, log.Fields{
				"path": c.Request().URL.Path,
				"kind": string(statsErr.Kind),
			})
		}

		if status == http.StatusNotModified {
			_ = c.NoContent(status)
			return
		}
		writeJSON(c, status, statsErr)
	}
}

func writeJSON(c echo.Context, status int, body *serrors.StatsError) {
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, body)
}

func kindForStatus(code int) serrors.Kind {
	switch code {
	case http.StatusNotFound:
		return serrors.NotFound
	case http.StatusUnauthorized:
		return serrors.Unauthenticated
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return serrors.ValidationFailed
	default:
		return serrors.Kind(strings.ToLower(strings.ReplaceAll(http.StatusText(code), " ", "_")))
	}
}
