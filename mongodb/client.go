package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

// ClientOptions configure the shared store connection.
type ClientOptions struct {
	URI     string
	AppName string
	// Timeout bounds connecting and server selection. Zero means 10s.
	Timeout time.Duration
}

// Client is the process-wide connection to MongoDB. It is safe for
// concurrent use, opened once at startup and closed once at shutdown.
type Client struct {
	client *mongo.Client
}

// Connect opens the connection and verifies it with a ping against the
// primary.
func Connect(ctx context.Context, opts ClientOptions) (*Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetMonitor(otelmongo.NewMonitor())
	if opts.AppName != "" {
		clientOptions.SetAppName(opts.AppName)
	}

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	c := &Client{client: client}
	if err := c.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	log.Info().Msg("MongoDB client initialized successfully.")
	return c, nil
}

// Database returns the database backing a namespace.
func (c *Client) Database(namespace string) *mongo.Database {
	return c.client.Database(namespace)
}

// Ping checks the primary, bounded to a short timeout. Used by health
// checks.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(pingCtx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	log.Info().Msg("Closing MongoDB connection.")
	if err := c.client.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing MongoDB connection")
		return err
	}
	return nil
}
