package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.pilab.hu/stats/config"
	"go.pilab.hu/stats/internal/server"
	"go.pilab.hu/stats/log"
	"golang.org/x/term"
)

const shutdownGrace = 30 * time.Second

type serveOptions struct {
	port             string
	dev              bool
	debug            bool
	mongoHost        string
	mongoUsername    string
	askMongoPassword bool
	apiUsername      string
	askAPIPassword   bool
}

func main() {
	if err := newRootCmd(&serveOptions{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats-service",
		Short: "Collect and export databrowser search statistics",
		Long: `stats-service stores search statistics of a databrowser in MongoDB
and exports them as CSV. Environment variables take precedence over
command line flags.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.port, "port", "p", "8080", "HTTP port (HTTP_PORT)")
	flags.BoolVar(&opts.dev, "dev", false, "seed the demo namespace with example data")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging (DEBUG)")
	flags.StringVar(&opts.mongoHost, "mongo-host", "localhost:27017", "MongoDB host and port (MONGO_HOST)")
	flags.StringVar(&opts.mongoUsername, "mongo-username", "mongo", "MongoDB user (MONGO_USERNAME)")
	flags.BoolVar(&opts.askMongoPassword, "ask-mongo-password", false, "prompt for the MongoDB password")
	flags.StringVar(&opts.apiUsername, "api-username", "stats", "API admin user (API_USERNAME)")
	flags.BoolVar(&opts.askAPIPassword, "ask-api-password", false, "prompt for the API admin password")

	return cmd
}

func serve(cmd *cobra.Command, opts *serveOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg, opts, readPassword); err != nil {
		return err
	}

	logger := log.NewZerologAdapter(log.ParseLevel(cfg.LogLevel, cfg.Debug), cfg.LogPretty)
	logger.Info(cmd.Context(), "Starting stats service...", log.Fields{
		"http_port":  cfg.HTTPPort,
		"api_prefix": cfg.APIPrefix,
		"mongo_host": cfg.MongoHost,
		"dev":        opts.dev,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "Failed to initialize service", err)
		return err
	}

	if opts.dev {
		if err := app.SeedDemo(ctx); err != nil {
			logger.Error(ctx, "Failed to seed demo namespace", err)
		}
	}

	return app.Run(ctx, shutdownGrace)
}

// applyFlags copies explicitly set flags into cfg unless the matching
// environment variable is present. Passwords are only ever read from the
// environment or an interactive prompt.
func applyFlags(cmd *cobra.Command, cfg *config.ServerConfig, opts *serveOptions, prompt func(string) (string, error)) error {
	flags := cmd.Flags()

	set := func(flag, env string, target *string, value string) {
		if _, ok := os.LookupEnv(env); ok || !flags.Changed(flag) {
			return
		}
		*target = value
	}
	set("port", "HTTP_PORT", &cfg.HTTPPort, opts.port)
	set("mongo-host", "MONGO_HOST", &cfg.MongoHost, opts.mongoHost)
	set("mongo-username", "MONGO_USERNAME", &cfg.MongoUsername, opts.mongoUsername)
	set("api-username", "API_USERNAME", &cfg.APIUsername, opts.apiUsername)

	if opts.debug {
		cfg.Debug = true
	}

	ask := func(enabled bool, env, label string, target *string) error {
		if _, ok := os.LookupEnv(env); ok || !enabled {
			return nil
		}
		value, err := prompt(label)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", label, err)
		}
		*target = value
		return nil
	}
	if err := ask(opts.askMongoPassword, "MONGO_PASSWORD", "MongoDB password", &cfg.MongoPassword); err != nil {
		return err
	}
	return ask(opts.askAPIPassword, "API_PASSWORD", "API password", &cfg.APIPassword)
}

func readPassword(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}
