// Package facets supplies the vocabulary of valid search facet names.
//
// The vocabulary is owned by the data catalog, not by this service, so
// every Provider here is a read-only view on some external source.
package facets

import (
	"context"
	"slices"
)

// Provider returns the ordered list of valid facet names.
type Provider interface {
	Facets(ctx context.Context) ([]string, error)
}

// DefaultFacets is the facet vocabulary of the freva databrowser flavour.
var DefaultFacets = []string{
	"project",
	"product",
	"institute",
	"model",
	"experiment",
	"time_frequency",
	"realm",
	"variable",
	"ensemble",
	"cmor_table",
	"fs_type",
	"grid_label",
	"grid_id",
	"format",
}

// Static is a fixed vocabulary.
type Static []string

// Facets returns a copy so callers cannot alter the vocabulary.
func (s Static) Facets(context.Context) ([]string, error) {
	return slices.Clone(s), nil
}

// Contains reports whether name is part of vocabulary.
func Contains(vocabulary []string, name string) bool {
	return slices.Contains(vocabulary, name)
}
