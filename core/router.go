package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/ferrybot/ferry/core/bridge"
	"github.com/ferrybot/ferry/core/chatctl"
	"github.com/ferrybot/ferry/core/runner"
)

// PluginSource is the bridge surface the router drives each dispatch cycle.
type PluginSource interface {
	Resolve() (bridge.Table, error)
	Load(id string) (bridge.Handler, error)
}

// Submitter is the execution pool surface.
type Submitter interface {
	Submit(t runner.Task) bool
}

// Router classifies a washed message, fans it out to every plugin whose
// prefix matches the payload, and hands the matches to the execution pool.
// It is driven only by the poll loop goroutine; the cached table and the
// bridge's reload state need no locking on this side.
//
// Matching is raw byte-prefix comparison, case-sensitive, and the empty
// prefix matches everything. A plugin registered as "/a" therefore also
// fires on "/abc"; prefixes should be chosen with that in mind.
type Router struct {
	plugins PluginSource
	filter  *chatctl.Filter
	pool    Submitter
	stats   *Stats
	deletor *Deletor
	logger  *slog.Logger

	table bridge.Table
}

// NewRouter wires a router. deletor may be nil; deletion directives in plugin
// responses are then ignored.
func NewRouter(plugins PluginSource, filter *chatctl.Filter, pool Submitter, stats *Stats, deletor *Deletor, logger *slog.Logger) *Router {
	return &Router{
		plugins: plugins,
		filter:  filter,
		pool:    pool,
		stats:   stats,
		deletor: deletor,
		logger:  logger,
	}
}

// Route dispatches one message and returns the plugin ids submitted.
//
// The bridge table is re-resolved every cycle but the cached copy is only
// replaced when the scan result actually differs, so plugin handles are not
// churned needlessly. A failed scan falls back to the cached table. One
// plugin failing to load is skipped with a log line; the remaining matches
// proceed. Every accepted submission bumps the response counter.
func (r *Router) Route(ctx context.Context, msg *Message) []string {
	if msg == nil {
		return nil
	}

	if table, err := r.plugins.Resolve(); err != nil {
		r.logger.Error("plugin scan failed", "error", err)
	} else if !table.Equal(r.table) {
		r.table = table
	}

	effective := r.filter.Apply(r.table, msg.ChatID, string(msg.ChatType))

	if !msg.Classify() {
		// No recognized kind: silent drop, not an error.
		return nil
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("encode message failed", "chat_id", msg.ChatID, "error", err)
		return nil
	}

	var dispatched []string
	for _, b := range effective {
		if !strings.HasPrefix(msg.Payload, b.Prefix) {
			continue
		}

		handler, err := r.plugins.Load(b.Plugin)
		if err != nil {
			r.logger.Error("plugin load failed",
				"plugin", b.Plugin, "chat_id", msg.ChatID, "kind", msg.Kind, "error", err)
			continue
		}

		accepted := r.pool.Submit(runner.Task{
			Plugin: b.Plugin,
			ChatID: msg.ChatID,
			Kind:   string(msg.Kind),
			Run: func(ctx context.Context) error {
				data, err := handler.Invoke(ctx, encoded)
				if err != nil {
					return err
				}
				return r.applyDirectives(data)
			},
		})
		if !accepted {
			continue
		}

		r.stats.CountResponse()
		dispatched = append(dispatched, b.Plugin)
	}
	return dispatched
}

// applyDirectives executes any host directives a plugin returned in its
// response data.
func (r *Router) applyDirectives(data json.RawMessage) error {
	if r.deletor == nil || len(data) == 0 {
		return nil
	}

	var d bridge.Directives
	if err := json.Unmarshal(data, &d); err != nil {
		// Plugin data that is not a directive object is fine to ignore.
		return nil
	}
	if d.DeleteAfter == nil {
		return nil
	}
	return r.deletor.Schedule(d.DeleteAfter.DelaySeconds, d.DeleteAfter.ChatID, d.DeleteAfter.MessageID)
}
