// Package bridge discovers handler plugins on disk, maps each to its command
// prefix, and keeps their loaded processes fresh: when a plugin's source file
// changes the running process is replaced before the next invocation.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Binding maps one command prefix to the plugin identifier that owns it.
type Binding struct {
	Prefix string
	Plugin string
}

// Table is the prefix→plugin mapping in directory-scan order.
type Table []Binding

// Equal reports structural equality, order included.
func (t Table) Equal(other Table) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// Lookup returns the plugin bound to prefix, if any.
func (t Table) Lookup(prefix string) (string, bool) {
	for _, b := range t {
		if b.Prefix == prefix {
			return b.Plugin, true
		}
	}
	return "", false
}

// Bridge owns plugin discovery and the per-plugin process handles.
type Bridge struct {
	dir    string
	apiURL string
	logger *slog.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// New creates a bridge over the given plugin directory. apiURL is handed to
// every plugin process so it can reach the bot API on its own.
func New(dir, apiURL string, logger *slog.Logger) *Bridge {
	return &Bridge{
		dir:     dir,
		apiURL:  apiURL,
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Resolve rescans the plugin directory and rebuilds the prefix table. Each
// subdirectory carrying a plugin.yaml yields one binding; the identifier is
// the directory name. Scanning is cheap and idempotent; the router calls it
// every dispatch cycle and keeps its cached table unless the result differs.
// On a duplicate prefix the later directory wins the earlier slot.
func (b *Bridge) Resolve() (Table, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("scan plugin dir: %w", err)
	}

	var table Table
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()

		m, err := loadManifest(filepath.Join(b.dir, id))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue // not a plugin directory
			}
			b.logger.Warn("skipping plugin with unreadable manifest", "plugin", id, "error", err)
			continue
		}

		replaced := false
		for i := range table {
			if table[i].Prefix == m.Prefix {
				table[i].Plugin = id
				replaced = true
				break
			}
		}
		if !replaced {
			table = append(table, Binding{Prefix: m.Prefix, Plugin: id})
		}
	}
	return table, nil
}

// Load returns the plugin's handle, hot-reloading first if the source file's
// modification time changed since the last load or the running process fell
// out of protocol sync. An unchanged plugin gets its already-running process
// back. A missing source file or a spawn failure
// is a load error; the caller skips this plugin and continues with the rest.
func (b *Bridge) Load(id string) (Handler, error) {
	srcPath, err := b.sourcePath(id)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		return nil, fmt.Errorf("stat plugin source: %w", err)
	}
	modTime := info.ModTime()

	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.handles[id]; ok {
		if h.modTime.Equal(modTime) && !h.desynced() {
			return h, nil
		}
		h.stop(b.logger)
		delete(b.handles, id)
		b.logger.Info("reloading plugin", "plugin", id, "source", srcPath)
	}

	h, err := startHandle(id, srcPath, b.apiURL, b.logger)
	if err != nil {
		return nil, fmt.Errorf("load plugin %q: %w", id, err)
	}
	h.modTime = modTime
	b.handles[id] = h
	return h, nil
}

// Shutdown stops every running plugin process.
func (b *Bridge) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, h := range b.handles {
		h.stop(b.logger)
		b.logger.Info("plugin stopped", "plugin", id)
	}
	b.handles = make(map[string]*Handle)
}

// sourcePath locates the plugin's source file: the manifest's source field
// when set, otherwise the single <id>.<ext> file in the plugin directory.
func (b *Bridge) sourcePath(id string) (string, error) {
	dir := filepath.Join(b.dir, id)

	m, err := loadManifest(dir)
	if err != nil {
		return "", fmt.Errorf("plugin %q: %w", id, err)
	}
	if m.Source != "" {
		return filepath.Join(dir, m.Source), nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, id+".*"))
	if err != nil {
		return "", fmt.Errorf("plugin %q: %w", id, err)
	}
	for _, match := range matches {
		if filepath.Base(match) != ManifestName {
			return match, nil
		}
	}
	return "", fmt.Errorf("plugin %q has no source file %s.*", id, id)
}
