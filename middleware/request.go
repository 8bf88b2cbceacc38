package middleware

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.pilab.hu/stats/internal/metrics"
	"go.pilab.hu/stats/log"
)

// RequestID sets X-Request-ID on the response, reusing the client's value
// when present.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// AccessLog logs one line per request and records its latency.
func AccessLog(logger log.Logger, m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the final status first
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			elapsed := time.Since(start)

			if m != nil {
				m.HTTPRequestDuration.
					WithLabelValues(req.Method, c.Path(), strconv.Itoa(status)).
					Observe(elapsed.Seconds())
			}

			fields := log.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"status":     status,
				"latency_ms": elapsed.Milliseconds(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			}
			if status >= 500 {
				logger.Error(req.Context(), "request failed", err, fields)
			} else {
				logger.Info(req.Context(), "request handled", fields)
			}
			return nil
		}
	}
}
