package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"puzzle-gate-service/internal/domain"
)

// CatalogLoader reads the question bank from a JSON file shaped as
// {"<id>": {"question": "...", "solution": "..."}, ...}.
type CatalogLoader struct {
	path string
}

func NewCatalogLoader(path string) *CatalogLoader {
	return &CatalogLoader{path: path}
}

func (l *CatalogLoader) LoadCatalog(_ context.Context) (domain.Catalog, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var raw map[string]struct {
		Question string `json:"question"`
		Solution string `json:"solution"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}

	catalog := make(domain.Catalog, len(raw))
	for id, entry := range raw {
		catalog[id] = domain.Question{ID: id, Question: entry.Question, Solution: entry.Solution}
	}
	return catalog, nil
}
