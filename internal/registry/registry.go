// Package registry merges the static Appmixer tools with the gateway tools
// advertised by the platform and dispatches tool calls to them.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/appmixer-mcp/internal/appmixer"
	"github.com/standardbeagle/appmixer-mcp/internal/logging"
	"github.com/standardbeagle/appmixer-mcp/internal/metrics"
)

// Kind tells how a descriptor is dispatched.
type Kind string

const (
	KindStatic  Kind = "static"
	KindGateway Kind = "gateway"
)

// Descriptor is a tool as exposed to MCP clients. It is plain data: static
// tools are dispatched by name, gateway tools by their Webhook and Function.
type Descriptor struct {
	Name        string          `json:"name"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Kind        Kind            `json:"kind"`
	Webhook     string          `json:"webhook,omitempty"`
	Function    string          `json:"function,omitempty"`
}

// Content is one item of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the outcome of a tool call.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult wraps text in a Result.
func TextResult(text string) *Result {
	return &Result{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult reports err as a failed tool call.
func ErrorResult(err error) *Result {
	r := TextResult(err.Error())
	r.IsError = true
	return r
}

// Text joins the text of all content items.
func (r *Result) Text() string {
	var sb strings.Builder
	for _, c := range r.Content {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// API is the subset of the Appmixer client the registry needs.
type API interface {
	Call(ctx context.Context, target, method string, body any) (any, error)
	GetFlows(ctx context.Context) ([]appmixer.Flow, error)
	GetFlow(ctx context.Context, id string) (*appmixer.Flow, error)
	DeleteFlow(ctx context.Context, id string) error
	StartFlow(ctx context.Context, id string) error
	StopFlow(ctx context.Context, id string) error
	TriggerComponent(ctx context.Context, flowID, componentID, method, body string) (any, error)
	GetLogs(ctx context.Context, flowID, query string) (*appmixer.Logs, error)
	GetGateways(ctx context.Context) ([]appmixer.Gateway, error)
}

var _ API = (*appmixer.Client)(nil)

// NotFoundError is returned when a tool name is absent from the registry
// even after a refresh.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tool %q not found", e.Name)
	if len(e.Available) > 0 {
		sb.WriteString("\n\nAvailable tools:\n")
		for _, name := range e.Available {
			fmt.Fprintf(&sb, "  - %s\n", name)
		}
	}
	return sb.String()
}

// Registry holds the latest tool snapshot.
type Registry struct {
	api     API
	logger  logging.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	snapshot []Descriptor
	byName   map[string]int
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates a Registry whose snapshot initially holds the static tools.
func New(api API, opts ...Option) *Registry {
	r := &Registry{api: api}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.Default()
	}
	r.logger = r.logger.With("component", "registry")
	r.replace(StaticDescriptors())
	return r
}

// ListTools returns the static tools followed by the gateway tools from a
// fresh fetch. A failed fetch is logged and contributes no gateway tools.
func (r *Registry) ListTools(ctx context.Context) []Descriptor {
	descs := r.build(ctx)
	r.replace(descs)
	return cloneDescriptors(descs)
}

// Snapshot returns the descriptors of the last ListTools without fetching.
func (r *Registry) Snapshot() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneDescriptors(r.snapshot)
}

// Lookup finds a descriptor in the current snapshot.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.snapshot[i], true
}

// Invoke calls the named tool. A name missing from the snapshot triggers one
// rebuild; if it is still missing Invoke returns *NotFoundError. Failures
// inside the tool are reported as an error Result, not as an error.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (*Result, error) {
	desc, ok := r.Lookup(name)
	if !ok {
		r.ListTools(ctx)
		desc, ok = r.Lookup(name)
	}
	if !ok {
		return nil, &NotFoundError{Name: name, Available: r.names()}
	}

	start := time.Now()
	var (
		text string
		err  error
	)
	switch desc.Kind {
	case KindGateway:
		text, err = r.callGateway(ctx, desc, args)
	default:
		text, err = r.callStatic(ctx, desc, args)
	}
	r.metrics.ObserveToolCall(desc.Name, string(desc.Kind), time.Since(start), err)

	if err != nil {
		r.logger.Warn("tool call failed", "tool", desc.Name, "kind", desc.Kind, "error", err)
		return ErrorResult(err), nil
	}
	r.logger.Debug("tool call complete", "tool", desc.Name, "kind", desc.Kind, "duration", time.Since(start))
	return TextResult(text), nil
}

func (r *Registry) callStatic(ctx context.Context, desc Descriptor, args map[string]any) (string, error) {
	h, ok := staticHandlers[desc.Name]
	if !ok {
		return "", fmt.Errorf("no handler for static tool %q", desc.Name)
	}
	return h(ctx, r.api, args)
}

// build composes a fresh descriptor list. Gateway names that collide with an
// earlier descriptor are skipped.
func (r *Registry) build(ctx context.Context) []Descriptor {
	descs := StaticDescriptors()
	seen := make(map[string]bool, len(descs))
	for _, d := range descs {
		seen[d.Name] = true
	}

	gateways, err := r.api.GetGateways(ctx)
	if err != nil {
		r.metrics.IncGatewayFetchFailure()
		r.logger.Warn("fetching gateways failed", "error", err)
		r.metrics.SetGatewayTools(0)
		return descs
	}

	count := 0
	for _, gw := range gateways {
		for _, tool := range gw.Tools {
			d := gatewayDescriptor(gw.Webhook, tool.Function)
			if d.Name == "" {
				r.logger.Warn("skipping unnamed gateway function", "webhook", gw.Webhook)
				continue
			}
			if seen[d.Name] {
				r.logger.Warn("skipping duplicate tool name", "tool", d.Name, "webhook", gw.Webhook)
				continue
			}
			seen[d.Name] = true
			descs = append(descs, d)
			count++
		}
	}
	r.metrics.SetGatewayTools(count)
	return descs
}

func (r *Registry) replace(descs []Descriptor) {
	byName := make(map[string]int, len(descs))
	for i, d := range descs {
		byName[d.Name] = i
	}
	r.mu.Lock()
	r.snapshot = descs
	r.byName = byName
	r.mu.Unlock()
}

func (r *Registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.snapshot))
	for _, d := range r.snapshot {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

func cloneDescriptors(descs []Descriptor) []Descriptor {
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	return out
}
