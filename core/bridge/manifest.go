package bridge

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestName is the descriptor each plugin directory must carry.
const ManifestName = "plugin.yaml"

// Manifest declares a plugin's command prefix. An empty prefix is legal and
// makes the plugin a catch-all: the router matches it against every payload.
type Manifest struct {
	Prefix      string `yaml:"prefix"`
	Description string `yaml:"description,omitempty"`
	// Source optionally names the plugin executable inside the directory.
	// When empty the bridge looks for <identifier>.<ext>.
	Source string `yaml:"source,omitempty"`
}

// loadManifest reads <dir>/plugin.yaml. A missing file surfaces as
// os.ErrNotExist so callers can treat the directory as not-a-plugin.
func loadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestName, err)
	}
	return &m, nil
}
