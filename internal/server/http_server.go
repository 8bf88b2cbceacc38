package server

import (
	"net/http"
	"time"

	"go.pilab.hu/stats/config"
)

// NewHTTPServer wraps handler in an http.Server listening on the
// configured port. There is no write timeout because CSV exports are
// streamed for as long as the cursor yields rows.
func NewHTTPServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
