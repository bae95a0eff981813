package seed

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/appvault/internal/domain"
	"github.com/MrSnakeDoc/appvault/internal/imageurl"
)

// Mapper converts a catalog file into records ready for a batch write.
type Mapper struct{}

// NewMapper creates a new mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// MapApps flattens config in file order. URLs are normalized, empty
// categories fall back to domain.DefaultCategory and entries without href
// are skipped. Unknown categories are an error.
func (m *Mapper) MapApps(config CatalogConfig) ([]domain.AppFields, error) {
	var apps []domain.AppFields

	for _, group := range config {
		for _, categoryName := range sortedKeys(group) {
			category := domain.Category(strings.TrimSpace(categoryName)).OrDefault()
			if !category.Valid() {
				return nil, fmt.Errorf("seed: unknown category %q", categoryName)
			}

			for _, entry := range group[categoryName] {
				for _, name := range sortedKeys(entry) {
					props := entry[name]
					if strings.TrimSpace(props.Href) == "" {
						continue
					}

					app := domain.AppFields{
						Name:        strings.TrimSpace(name),
						URL:         imageurl.NormalizeURL(props.Href),
						Description: strings.TrimSpace(props.Description),
						Category:    category,
						Image:       strings.TrimSpace(props.Image),
					}
					if err := app.Validate(); err != nil {
						return nil, fmt.Errorf("seed: %s: %w", name, err)
					}
					apps = append(apps, app)
				}
			}
		}
	}

	if len(apps) == 0 {
		return nil, fmt.Errorf("no valid apps found in seed catalog")
	}
	return apps, nil
}

// sortedKeys gives maps with several keys a stable order. Well-formed
// files have one key per map.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
