package facets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTP fetches the vocabulary from a databrowser overview endpoint that
// answers with {"attributes": {"<flavour>": ["project", ...]}}.
type HTTP struct {
	URL     string
	Flavour string
	Client  *http.Client
}

type overview struct {
	Attributes map[string][]string `json:"attributes"`
}

func (h HTTP) Facets(ctx context.Context) ([]string, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build facet request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch facets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch facets: unexpected status %d", resp.StatusCode)
	}

	var body overview
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode facets: %w", err)
	}
	facets, ok := body.Attributes[h.Flavour]
	if !ok || len(facets) == 0 {
		return nil, fmt.Errorf("no facets for flavour %q", h.Flavour)
	}
	return facets, nil
}
