// Package registry holds the set of tools exposed to the model and
// executes the model's tool calls against it.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/martz/miniagent/llm"
	"github.com/martz/miniagent/tools"
)

// Registry is a named collection of tools. Registration happens during
// startup; execution may come from any goroutine afterwards.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]tools.Tool
	logger *zap.Logger
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]tools.Tool),
		logger: logger,
	}
}

// Register adds a tool, replacing any previous tool of the same name
func (r *Registry) Register(tool tools.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get looks up a tool by name
func (r *Registry) Get(name string) (tools.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns registered tool names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas returns the tool definitions in the wire shape chat requests
// expect
func (r *Registry) Schemas() []map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	schemas := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		tool := r.tools[name]
		schemas = append(schemas, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name(),
				"description": tool.Description(),
				"parameters":  tool.Parameters(),
			},
		})
	}
	return schemas
}

// ExecuteToolCalls runs the model's tool calls sequentially in issue
// order and returns one tool reply per call. Unknown tools and panics
// become error text in the reply rather than aborting the turn: the
// model must always receive an answer for every call it made.
func (r *Registry) ExecuteToolCalls(ctx context.Context, calls []llm.ToolCall) []llm.Message {
	replies := make([]llm.Message, 0, len(calls))
	for _, call := range calls {
		replies = append(replies, r.executeOne(ctx, call))
	}
	return replies
}

func (r *Registry) executeOne(ctx context.Context, call llm.ToolCall) llm.Message {
	reply := llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: call.ID,
		Name:       call.Function.Name,
	}

	tool, ok := r.Get(call.Function.Name)
	if !ok {
		r.logger.Warn("model called unknown tool", zap.String("tool", call.Function.Name))
		reply.Content = llm.StringPtr(fmt.Sprintf("Tool '%s' not available", call.Function.Name))
		return reply
	}

	args := llm.DecodeToolArguments(call.Function.Arguments)

	result, err := r.runGuarded(ctx, tool, args)
	if err != nil {
		r.logger.Warn("tool execution failed",
			zap.String("tool", call.Function.Name), zap.Error(err))
		reply.Content = llm.StringPtr(fmt.Sprintf("Error executing %s: %v", call.Function.Name, err))
		return reply
	}

	reply.Content = llm.StringPtr(result)
	return reply
}

// runGuarded converts a panicking tool into an error result
func (r *Registry) runGuarded(ctx context.Context, tool tools.Tool, args map[string]interface{}) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	return tool.Execute(ctx, args)
}
