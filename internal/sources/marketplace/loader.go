package marketplace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads the marketplace list from a YAML file
type Loader struct {
	filePath string
}

// NewLoader creates a new marketplace loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the marketplaces file. The file must declare at
// least one marketplace.
func (l *Loader) Load() ([]Marketplace, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read marketplaces file: %w", err)
	}

	// Expand ${VAR} so URLs can point at regional storefronts
	data = []byte(os.ExpandEnv(string(data)))

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse marketplaces yaml: %w", err)
	}
	if len(file.Marketplaces) == 0 {
		return nil, fmt.Errorf("no marketplaces declared in %s", l.filePath)
	}

	return file.Marketplaces, nil
}
