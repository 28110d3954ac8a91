// Package dispatch routes model tool calls to UI actions.
//
// The assistant drives the application through two functions: updating
// the active dork query and switching the visible tab. Dispatch never
// fails: malformed or unknown calls are logged, counted, and answered
// with a generic acknowledgement so the model side never stalls waiting
// for a result.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/discover-Austin/DorkNexus/internal/observe"
	"github.com/discover-Austin/DorkNexus/pkg/provider/live"
)

// Tab identifies one of the application's views.
type Tab string

// The tabs the assistant may navigate to.
const (
	TabBuilder   Tab = "builder"
	TabAI        Tab = "ai"
	TabTemplates Tab = "templates"
	TabPivot     Tab = "pivot"
	TabResearch  Tab = "research"
	TabVisuals   Tab = "visuals"
	TabVault     Tab = "vault"
)

// Tabs lists every valid tab in display order.
var Tabs = []Tab{TabBuilder, TabAI, TabTemplates, TabPivot, TabResearch, TabVisuals, TabVault}

// IsValid reports whether t names a known tab.
func (t Tab) IsValid() bool {
	for _, v := range Tabs {
		if t == v {
			return true
		}
	}
	return false
}

// Tool names understood by the dispatcher.
const (
	toolUpdateDork = "update_dork"
	toolChangeTab  = "change_tab"
)

// Dispatcher translates tool calls into callbacks.
// All exported methods are safe for concurrent use as long as the
// registered callbacks are.
type Dispatcher struct {
	onDork  func(dork string)
	onTab   func(tab Tab)
	metrics *observe.Metrics
}

// Option configures a Dispatcher during construction.
type Option func(*Dispatcher)

// WithMetrics overrides the metrics instance. Used in tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates a Dispatcher. onDork receives the new dork string when
// the model calls update_dork; onTab receives the target tab when it
// calls change_tab. Either callback may be nil.
func New(onDork func(string), onTab func(Tab), opts ...Option) *Dispatcher {
	d := &Dispatcher{
		onDork:  onDork,
		onTab:   onTab,
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Definitions returns the tool declarations advertised to the model at
// session setup.
func Definitions() []live.ToolDefinition {
	tabValues := make([]any, len(Tabs))
	for i, t := range Tabs {
		tabValues[i] = string(t)
	}
	return []live.ToolDefinition{
		{
			Name:        toolUpdateDork,
			Description: "Updates the Google dork query in the editor. Use this whenever the user asks to build, modify or refine a dork.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"dork": map[string]any{
						"type":        "string",
						"description": "The full Google dork query string.",
					},
				},
				"required": []any{"dork"},
			},
		},
		{
			Name:        toolChangeTab,
			Description: "Switches the visible application tab.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tab": map[string]any{
						"type":        "string",
						"enum":        tabValues,
						"description": "The tab to navigate to.",
					},
				},
				"required": []any{"tab"},
			},
		},
	}
}

// Dispatch executes one tool call and returns the result string sent
// back to the model. It never fails: problems degrade to a generic "ok"
// so every call receives exactly one answer.
func (d *Dispatcher) Dispatch(call live.ToolCall) string {
	ctx := context.Background()

	switch call.Name {
	case toolUpdateDork:
		var args struct {
			Dork string `json:"dork"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil || args.Dork == "" {
			slog.Warn("malformed update_dork call", "id", call.ID, "args", string(call.Args))
			d.metrics.RecordToolCall(ctx, call.Name, "error")
			return "ok"
		}
		if d.onDork != nil {
			d.onDork(args.Dork)
		}
		d.metrics.RecordToolCall(ctx, call.Name, "ok")
		return "Dork updated to: " + args.Dork

	case toolChangeTab:
		var args struct {
			Tab Tab `json:"tab"`
		}
		if err := json.Unmarshal(call.Args, &args); err != nil || !args.Tab.IsValid() {
			slog.Warn("malformed change_tab call", "id", call.ID, "args", string(call.Args))
			d.metrics.RecordToolCall(ctx, call.Name, "error")
			return "ok"
		}
		if d.onTab != nil {
			d.onTab(args.Tab)
		}
		d.metrics.RecordToolCall(ctx, call.Name, "ok")
		return "Navigated to " + string(args.Tab)

	default:
		slog.Warn("unknown tool call", "id", call.ID, "tool", call.Name)
		d.metrics.RecordToolCall(ctx, call.Name, "unknown")
		return "ok"
	}
}
