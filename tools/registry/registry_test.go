package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/martz/miniagent/llm"
)

type fakeTool struct {
	name    string
	execute func(ctx context.Context, args map[string]interface{}) (string, error)
}

func (t *fakeTool) Name() string                       { return t.name }
func (t *fakeTool) Description() string                { return "fake" }
func (t *fakeTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (t *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return t.execute(ctx, args)
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:   id,
		Type: "function",
		Function: llm.FunctionCall{
			Name:      name,
			Arguments: json.RawMessage(args),
		},
	}
}

func TestExecuteToolCalls(t *testing.T) {
	r := New(nil)
	r.Register(&fakeTool{name: "echo", execute: func(_ context.Context, args map[string]interface{}) (string, error) {
		return fmt.Sprintf("echo: %v", args["text"]), nil
	}})

	replies := r.ExecuteToolCalls(context.Background(), []llm.ToolCall{
		call("c1", "echo", `{"text": "hello"}`),
	})
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(replies))
	}
	if replies[0].Role != llm.RoleTool || replies[0].ToolCallID != "c1" {
		t.Fatalf("reply not addressed to the call: %+v", replies[0])
	}
	if got := llm.GetStringValue(replies[0].Content); got != "echo: hello" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestExecutePreservesIssueOrder(t *testing.T) {
	var order []string
	r := New(nil)
	r.Register(&fakeTool{name: "track", execute: func(_ context.Context, args map[string]interface{}) (string, error) {
		order = append(order, args["n"].(string))
		return "ok", nil
	}})

	calls := []llm.ToolCall{
		call("c1", "track", `{"n": "first"}`),
		call("c2", "track", `{"n": "second"}`),
		call("c3", "track", `{"n": "third"}`),
	}
	replies := r.ExecuteToolCalls(context.Background(), calls)
	if len(replies) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(replies))
	}
	for i, reply := range replies {
		if reply.ToolCallID != calls[i].ID {
			t.Fatalf("reply %d answers %s, want %s", i, reply.ToolCallID, calls[i].ID)
		}
	}
	if strings.Join(order, ",") != "first,second,third" {
		t.Fatalf("tools ran out of order: %v", order)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := New(nil)
	replies := r.ExecuteToolCalls(context.Background(), []llm.ToolCall{
		call("c1", "launch_rocket", `{}`),
	})
	if len(replies) != 1 {
		t.Fatalf("expected a reply for the unknown tool, got %d", len(replies))
	}
	if got := llm.GetStringValue(replies[0].Content); got != "Tool 'launch_rocket' not available" {
		t.Fatalf("unexpected unknown-tool message %q", got)
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	r := New(nil)
	r.Register(&fakeTool{name: "boom", execute: func(_ context.Context, _ map[string]interface{}) (string, error) {
		panic("kaboom")
	}})

	replies := r.ExecuteToolCalls(context.Background(), []llm.ToolCall{
		call("c1", "boom", `{}`),
	})
	if len(replies) != 1 {
		t.Fatalf("expected a reply, got %d", len(replies))
	}
	got := llm.GetStringValue(replies[0].Content)
	if !strings.Contains(got, "Error executing boom") || !strings.Contains(got, "kaboom") {
		t.Fatalf("panic not surfaced in reply: %q", got)
	}
}

func TestExecuteToolError(t *testing.T) {
	r := New(nil)
	r.Register(&fakeTool{name: "flaky", execute: func(_ context.Context, _ map[string]interface{}) (string, error) {
		return "", fmt.Errorf("backend unreachable")
	}})

	replies := r.ExecuteToolCalls(context.Background(), []llm.ToolCall{
		call("c1", "flaky", `{}`),
	})
	got := llm.GetStringValue(replies[0].Content)
	if !strings.Contains(got, "Error executing flaky") || !strings.Contains(got, "backend unreachable") {
		t.Fatalf("error not surfaced in reply: %q", got)
	}
}

func TestExecuteDoubleEncodedArguments(t *testing.T) {
	r := New(nil)
	r.Register(&fakeTool{name: "echo", execute: func(_ context.Context, args map[string]interface{}) (string, error) {
		return fmt.Sprintf("%v", args["text"]), nil
	}})

	replies := r.ExecuteToolCalls(context.Background(), []llm.ToolCall{
		call("c1", "echo", `"{\"text\": \"nested\"}"`),
	})
	if got := llm.GetStringValue(replies[0].Content); got != "nested" {
		t.Fatalf("double-encoded arguments not normalized: %q", got)
	}
}

func TestSchemas(t *testing.T) {
	r := New(nil)
	r.Register(&fakeTool{name: "beta", execute: nil})
	r.Register(&fakeTool{name: "alpha", execute: nil})

	schemas := r.Schemas()
	if len(schemas) != 2 {
		t.Fatalf("expected 2 schemas, got %d", len(schemas))
	}
	first := schemas[0]["function"].(map[string]interface{})
	if first["name"] != "alpha" {
		t.Fatalf("schemas not sorted by name: %v", first["name"])
	}
	if schemas[0]["type"] != "function" {
		t.Fatalf("schema missing wire type: %v", schemas[0]["type"])
	}
}
