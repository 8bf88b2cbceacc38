package facets

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File reads the vocabulary from a YAML document of the form
//
//	facets:
//	  - project
//	  - model
//
// The file is read on every call; wrap it in Cached to avoid that.
type File struct {
	Path string
}

type fileDocument struct {
	Facets []string `yaml:"facets"`
}

func (f File) Facets(context.Context) ([]string, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read facet file: %w", err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode facet file %s: %w", f.Path, err)
	}
	if len(doc.Facets) == 0 {
		return nil, fmt.Errorf("facet file %s lists no facets", f.Path)
	}
	return doc.Facets, nil
}
