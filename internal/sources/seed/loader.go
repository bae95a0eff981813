// Package seed loads the default catalog written into an empty collection.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// templateVar matches {{NAME}} placeholders.
var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Loader reads a seed catalog from a YAML file, or the embedded default
// when no path is set.
type Loader struct {
	filePath string
}

// NewLoader creates a loader for filePath. An empty path selects the
// embedded catalog.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the catalog.
func (l *Loader) Load() (CatalogConfig, error) {
	data := defaultCatalog
	if l.filePath != "" {
		var err error
		data, err = os.ReadFile(l.filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
	}

	data = expandVariables(data, os.Getenv)

	var config CatalogConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}
	return config, nil
}

// expandVariables replaces {{NAME}} with lookup(NAME).
// Example: href: {{GANTT_URL}} -> href: https://gantt.example.com
func expandVariables(data []byte, lookup func(string) string) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := templateVar.FindSubmatch(m)[1]
		return []byte(lookup(string(name)))
	})
}
