// Package server assembles the stats service from its configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	echoapi "go.pilab.hu/stats/api/echo"
	"go.pilab.hu/stats/auth"
	"go.pilab.hu/stats/config"
	"go.pilab.hu/stats/docs"
	"go.pilab.hu/stats/export"
	"go.pilab.hu/stats/internal/audit"
	"go.pilab.hu/stats/internal/metrics"
	"go.pilab.hu/stats/log"
	"go.pilab.hu/stats/middleware"
	"go.pilab.hu/stats/mongodb"
	"go.pilab.hu/stats/query"
	"go.pilab.hu/stats/schema"
	"go.pilab.hu/stats/tracing"
	"golang.org/x/crypto/bcrypt"
)

// App is a fully wired service instance.
type App struct {
	cfg    *config.ServerConfig
	logger log.Logger

	mongo    *mongodb.Client
	repo     *mongodb.StatsRepository
	redis    goredis.UniversalClient
	tracer   *sdktrace.TracerProvider
	registry *prometheus.Registry

	Echo *echo.Echo
	HTTP *http.Server
}

// New connects the store and builds the HTTP stack. The returned App
// owns every connection it opened and releases them in Shutdown.
func New(ctx context.Context, cfg *config.ServerConfig, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if logger == nil {
		logger = log.Nop()
	}
	app := &App{cfg: cfg, logger: logger}

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		return nil, fmt.Errorf("init tracer provider: %w", err)
	}
	app.tracer = tp

	client, err := mongodb.Connect(ctx, mongodb.ClientOptions{
		URI:     cfg.MongoURL(),
		AppName: cfg.OtelServiceName,
		Timeout: cfg.MongoTimeout,
	})
	if err != nil {
		_ = app.Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}
	app.mongo = client
	app.repo = mongodb.NewStatsRepository(client)
	app.redis = NewRedisClient(cfg)

	credentials, err := auth.NewCredentialChecker(cfg.APIUsername, cfg.APIPassword, bcrypt.DefaultCost)
	if err != nil {
		_ = app.Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(app.registry)

	vocabulary := NewFacetProvider(cfg, app.redis)
	tokens := auth.NewTokenService(cfg.APIUsername, cfg.APIPassword, auth.WithValidity(cfg.TokenValidity))

	var trail *audit.Logger
	if cfg.AuditLog {
		trail = audit.New(os.Stdout)
	}

	statsAPI := echoapi.NewStatsAPI(echoapi.Dependencies{
		Repository:    app.repo,
		Validator:     schema.NewValidator(vocabulary),
		Builder:       query.NewBuilder(logger),
		Exporter:      export.NewExporter(app.repo, vocabulary),
		Tokens:        tokens,
		Credentials:   credentials,
		Metrics:       m,
		Audit:         trail,
		Logger:        logger,
		DemoNamespace: cfg.DemoNamespace,
	})

	app.Echo = echoapi.NewServer(statsAPI, echoapi.ServerOptions{
		Prefix:        cfg.APIPrefix,
		Authenticator: middleware.NewAuthenticator(tokens, m),
		Store:         client,
		Gatherer:      app.registry,
		Metrics:       m,
		Logger:        logger,
		Debug:         cfg.Debug,
	})
	app.HTTP = NewHTTPServer(cfg, app.Echo)

	return app, nil
}

// SeedDemo resets the demo namespace to the bundled example data and
// makes sure the date index exists.
func (a *App) SeedDemo(ctx context.Context) error {
	n, err := docs.Seed(ctx, a.repo, a.cfg.DemoNamespace)
	if err != nil {
		return fmt.Errorf("seed %s: %w", a.cfg.DemoNamespace, err)
	}
	a.repo.EnsureIndexes(ctx, a.cfg.DemoNamespace)
	a.logger.Info(ctx, "Demo namespace seeded", log.Fields{"namespace": a.cfg.DemoNamespace, "records": n})
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down
// within the grace period.
func (a *App) Run(ctx context.Context, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "HTTP server starting", log.Fields{"address": a.HTTP.Addr, "prefix": a.cfg.APIPrefix})
		if err := a.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info(context.Background(), "Shutting down server...")
	case serveErr = <-errCh:
		if serveErr != nil {
			a.logger.Error(context.Background(), "HTTP server failed", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	return errors.Join(serveErr, a.Shutdown(shutdownCtx))
}

// Shutdown stops the HTTP server and closes the connections in reverse
// order of creation.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.HTTP != nil {
		if err := a.HTTP.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb close: %w", err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if len(errs) == 0 {
		a.logger.Info(ctx, "Server exited gracefully.")
	}
	return errors.Join(errs...)
}
