// Package testutil provides a MongoDB deployment for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// MongoImage is the image started when no external deployment is given.
const MongoImage = "mongo:7"

// MongoURI returns the URI of a MongoDB deployment for tests. It uses
// TEST_MONGO_URI when set, otherwise starts a container when
// TEST_INTEGRATION is set, and skips the test in all other cases.
func MongoURI(t *testing.T) string {
	t.Helper()

	if uri := os.Getenv("TEST_MONGO_URI"); uri != "" {
		return uri
	}
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Skipping MongoDB integration test: neither TEST_MONGO_URI nor TEST_INTEGRATION set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcmongo.Run(ctx, MongoImage)
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Warning: failed to terminate MongoDB container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to read MongoDB connection string: %v", err)
	}
	return uri
}

// Namespace returns a namespace name unique to this test run.
func Namespace(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}
