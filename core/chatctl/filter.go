// Package chatctl narrows the active plugin set per chat using a per-chat
// disabled-plugin list kept in external storage.
package chatctl

import (
	"log/slog"

	"github.com/ferrybot/ferry/core/bridge"
)

const (
	// ControlPrefix and ControlPlugin are the reserved binding that turns
	// the per-chat override on: the filter only applies when the bridge
	// table maps ControlPrefix to ControlPlugin.
	ControlPrefix = "/pluginctl"
	ControlPlugin = "PluginCTL"

	// disabledNilName is the sentinel a binding with an empty (or single
	// space) prefix is compared under. Carried over verbatim from the
	// original storage format, where the empty prefix is written as "nil".
	disabledNilName = "nil"
)

// Store reads the per-chat disabled-plugin list. A chat without a record
// yields (nil, nil). Implementations must tolerate concurrent external
// edits; the filter rereads on every dispatch and caches nothing.
type Store interface {
	Disabled(chatID int64) ([]string, error)
}

// Filter applies the per-chat plugin override.
type Filter struct {
	store  Store
	logger *slog.Logger
}

// New creates a filter over the given store.
func New(store Store, logger *slog.Logger) *Filter {
	return &Filter{store: store, logger: logger}
}

// Apply returns the effective table for the chat. It never mutates the
// input; when nothing is filtered the input table is returned as-is.
//
// The override is skipped entirely for private chats and for tables that do
// not bind the control prefix to the control plugin. A store error keeps the
// full table active rather than silencing plugins on a read glitch.
func (f *Filter) Apply(table bridge.Table, chatID int64, chatType string) bridge.Table {
	if chatType == "private" {
		return table
	}
	if id, ok := table.Lookup(ControlPrefix); !ok || id != ControlPlugin {
		return table
	}

	disabled, err := f.store.Disabled(chatID)
	if err != nil {
		f.logger.Warn("disabled-plugin list unreadable", "chat_id", chatID, "error", err)
		return table
	}
	if disabled == nil {
		return table
	}

	off := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		off[name] = true
	}

	effective := make(bridge.Table, 0, len(table))
	for _, b := range table {
		name := b.Plugin
		if b.Prefix == "" || b.Prefix == " " {
			name = disabledNilName
		}
		if off[name] {
			continue
		}
		effective = append(effective, b)
	}
	return effective
}
