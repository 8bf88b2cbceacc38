// Package docs bundles the example search statistics served by the demo
// namespace.
package docs

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.pilab.hu/stats/domain"
)

//go:embed databrowser-stats.json
var databrowserStats []byte

// Seeder replaces the content of a namespace.
type Seeder interface {
	Seed(ctx context.Context, namespace string, records []*domain.FullRecord) (int, error)
}

// Load decodes the bundled records.
func Load() ([]*domain.FullRecord, error) {
	var records []*domain.FullRecord
	if err := json.Unmarshal(databrowserStats, &records); err != nil {
		return nil, fmt.Errorf("decode example statistics: %w", err)
	}
	return records, nil
}

// Seed resets namespace to the bundled records and returns their number.
func Seed(ctx context.Context, seeder Seeder, namespace string) (int, error) {
	records, err := Load()
	if err != nil {
		return 0, err
	}
	return seeder.Seed(ctx, namespace, records)
}
