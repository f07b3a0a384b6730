package chatctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileStore reads disabled-plugin lists from the control plugin's data
// directory: <pluginDir>/PluginCTL/db/<chatID>.db, one file per chat holding
// a comma-separated list of plugin names. This is the original on-disk
// format and the control plugin itself keeps writing it.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at the plugin directory.
func NewFileStore(pluginDir string) *FileStore {
	return &FileStore{dir: filepath.Join(pluginDir, ControlPlugin, "db")}
}

// Disabled returns the chat's disabled list, or (nil, nil) when the chat has
// no record. An empty file yields a one-element list containing the empty
// string, matching the original split semantics.
func (s *FileStore) Disabled(chatID int64) ([]string, error) {
	path := filepath.Join(s.dir, strconv.FormatInt(chatID, 10)+".db")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read disabled list: %w", err)
	}

	return strings.Split(strings.TrimSpace(string(data)), ","), nil
}
