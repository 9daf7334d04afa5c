// ABOUTME: Thread-safe name-to-handler registry for local tool packs
// ABOUTME: Execution captures panics and unknown names as failed Results

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrToolCollision indicates a tool name is already registered.
var ErrToolCollision = errors.New("tool name collision")

// ErrPackAlreadyRegistered indicates a pack with the same ID exists.
var ErrPackAlreadyRegistered = errors.New("pack already registered")

// Handler executes one tool invocation with its parsed arguments.
type Handler func(ctx context.Context, args map[string]any) Result

// Tool is one registered tool: its definition plus its handler.
type Tool struct {
	Name        string
	Description string
	InputSchema string // JSON schema for the argument object
	Handler     Handler
}

// Pack is a named collection of tools registered together.
type Pack struct {
	ID    string
	Tools []*Tool
}

// registryEntry stores a tool with its owning pack ID.
type registryEntry struct {
	tool   *Tool
	packID string
}

// Registry maintains the set of registered packs and their tools.
type Registry struct {
	mu     sync.RWMutex
	packs  map[string]*Pack
	tools  map[string]*registryEntry // tool name -> entry
	logger *slog.Logger
}

// NewRegistry creates an empty Registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		packs:  make(map[string]*Pack),
		tools:  make(map[string]*registryEntry),
		logger: logger.With("component", "tools"),
	}
}

// RegisterPack validates and stores a pack and its tools.
// Returns ErrPackAlreadyRegistered or ErrToolCollision on conflict.
func (r *Registry) RegisterPack(pack *Pack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packs[pack.ID]; exists {
		return fmt.Errorf("%w: %s", ErrPackAlreadyRegistered, pack.ID)
	}

	for _, tool := range pack.Tools {
		if existing, exists := r.tools[tool.Name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'",
				ErrToolCollision, tool.Name, existing.packID)
		}
	}

	for _, tool := range pack.Tools {
		r.tools[tool.Name] = &registryEntry{tool: tool, packID: pack.ID}
	}
	r.packs[pack.ID] = pack

	r.logger.Info("tool pack registered",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.tools))

	return nil
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return entry.tool, true
}

// Tools returns every registered tool, for display and advertisement.
func (r *Registry) Tools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, 0, len(r.tools))
	for _, entry := range r.tools {
		out = append(out, entry.tool)
	}
	return out
}

// Execute runs the named tool with the given arguments. An unknown
// name or a panicking handler never escapes as a control-flow failure;
// both are reported as failed Results so the conversation proceeds.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result Result) {
	tool, ok := r.Lookup(name)
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", name)
		return Fail("Unknown tool: " + name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked", "tool", name, "panic", rec)
			result = Fail(fmt.Sprintf("tool %s failed: %v", name, rec))
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	return tool.Handler(ctx, args)
}
