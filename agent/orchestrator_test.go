package agent

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/martz/miniagent/llm"
	"github.com/martz/miniagent/memory"
	"github.com/martz/miniagent/tools"
	"github.com/martz/miniagent/tools/registry"
)

// scriptedClient replays a fixed sequence of chat responses and records
// every request it receives.
type scriptedClient struct {
	mu             sync.Mutex
	responses      []*llm.ChatResponse
	requests       []*llm.ChatRequest
	visionResponse *llm.ChatResponse
	supportsVision bool

	// block makes Chat park until closed; entered is closed once the
	// first Chat call is inside the turn lock.
	block     chan struct{}
	entered   chan struct{}
	enterOnce sync.Once
}

func (c *scriptedClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if c.block != nil {
		c.enterOnce.Do(func() { close(c.entered) })
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return assistantResp("out of script"), nil
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func (c *scriptedClient) ChatVision(ctx context.Context, req *llm.VisionRequest) (*llm.ChatResponse, error) {
	return c.visionResponse, nil
}

func (c *scriptedClient) SupportsVision() bool { return c.supportsVision }
func (c *scriptedClient) Close() error         { return nil }

func assistantResp(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{
			Message: llm.Message{Role: llm.RoleAssistant, Content: llm.StringPtr(content)},
		}},
	}
}

func toolCallResp(id, name, args string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{
			Message: llm.Message{
				Role:    llm.RoleAssistant,
				Content: llm.StringPtr(""),
				ToolCalls: []llm.ToolCall{{
					ID:   id,
					Type: "function",
					Function: llm.FunctionCall{
						Name:      name,
						Arguments: json.RawMessage(args),
					},
				}},
			},
		}},
	}
}

type echoTool struct{}

func (echoTool) Name() string                       { return "echo" }
func (echoTool) Description() string                { return "echoes" }
func (echoTool) Parameters() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (echoTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	if s, ok := args["text"].(string); ok {
		return "echo: " + s, nil
	}
	return "echo", nil
}

func newTestAgent(t *testing.T, client llm.Client, register ...tools.Tool) (*Orchestrator, *memory.Session) {
	t.Helper()

	store, err := memory.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	session := memory.NewSession(store, memory.NewSummarizer(client, nil),
		memory.WithCompressThreshold(1000))

	reg := registry.New(nil)
	for _, tool := range register {
		reg.Register(tool)
	}

	cfg := DefaultConfig()
	cfg.MaxIterations = 5
	return New(client, reg, session, cfg), session
}

func TestRunTurnDirectAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{assistantResp("hello there")}}
	o, session := newTestAgent(t, client)

	resp, err := o.RunTurn(context.Background(), "hi")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if resp.State != StateDone || resp.Content != "hello there" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Iterations != 1 {
		t.Fatalf("expected 1 iteration, got %d", resp.Iterations)
	}

	working := session.WorkingMemory()
	if len(working) != 2 || working[0].Role != llm.RoleUser || working[1].Role != llm.RoleAssistant {
		t.Fatalf("working memory malformed: %d messages", len(working))
	}
}

func TestRunTurnToolFlow(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolCallResp("c1", "echo", `{"text": "ping"}`),
		assistantResp("the tool said: echo: ping"),
	}}
	o, session := newTestAgent(t, client, echoTool{})

	resp, err := o.RunTurn(context.Background(), "run echo")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if resp.State != StateDone {
		t.Fatalf("expected done, got %s", resp.State)
	}
	if resp.Iterations != 2 {
		t.Fatalf("expected exactly 2 iterations, got %d", resp.Iterations)
	}
	if len(resp.ToolsUsed) != 1 || resp.ToolsUsed[0] != "echo" {
		t.Fatalf("tools used: %v", resp.ToolsUsed)
	}

	// user, assistant+call, tool reply, final assistant
	working := session.WorkingMemory()
	if len(working) != 4 {
		t.Fatalf("expected 4 messages in working memory, got %d", len(working))
	}
	if working[2].Role != llm.RoleTool || working[2].ToolCallID != "c1" {
		t.Fatalf("tool reply missing or misaddressed: %+v", working[2])
	}
}

func TestRunTurnUnknownToolRecovers(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolCallResp("c1", "no_such_tool", `{}`),
		assistantResp("sorry, I cannot do that"),
	}}
	o, session := newTestAgent(t, client)

	resp, err := o.RunTurn(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if resp.State != StateDone {
		t.Fatalf("expected recovery to done, got %s", resp.State)
	}

	working := session.WorkingMemory()
	found := false
	for _, msg := range working {
		if msg.Role == llm.RoleTool && strings.Contains(llm.GetStringValue(msg.Content), "not available") {
			found = true
		}
	}
	if !found {
		t.Fatalf("unknown-tool reply missing from working memory")
	}
}

func TestRunTurnIterationBound(t *testing.T) {
	var responses []*llm.ChatResponse
	for i := 0; i < 10; i++ {
		responses = append(responses, toolCallResp("c", "echo", `{}`))
	}
	client := &scriptedClient{responses: responses}
	o, _ := newTestAgent(t, client, echoTool{})

	resp, err := o.RunTurn(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if resp.State != StateAborted {
		t.Fatalf("expected aborted, got %s", resp.State)
	}
	if resp.Iterations != 5 {
		t.Fatalf("expected 5 iterations, got %d", resp.Iterations)
	}
	if !strings.Contains(resp.Content, "maximum tool-chain length") {
		t.Fatalf("abort message missing: %q", resp.Content)
	}
}

func TestRunTurnBusy(t *testing.T) {
	block := make(chan struct{})
	client := &scriptedClient{
		responses: []*llm.ChatResponse{assistantResp("done")},
		block:     block,
		entered:   make(chan struct{}),
	}
	o, _ := newTestAgent(t, client)

	finished := make(chan struct{})
	go func() {
		o.RunTurn(context.Background(), "first")
		close(finished)
	}()

	select {
	case <-client.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("first turn never reached the model")
	}

	_, err := o.RunTurn(context.Background(), "second")
	close(block)
	<-finished

	if err != ErrBusy {
		t.Fatalf("concurrent turn returned %v, want ErrBusy", err)
	}
}

func TestRunTurnRequestShape(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{assistantResp("hi")}}
	o, _ := newTestAgent(t, client, echoTool{})

	if _, err := o.RunTurn(context.Background(), "hello"); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	if len(client.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(client.requests))
	}
	req := client.requests[0]
	if req.Messages[0].Role != llm.RoleSystem {
		t.Fatalf("request does not start with the system prompt")
	}
	if req.Messages[1].Role != llm.RoleUser {
		t.Fatalf("history after system prompt starts with %s", req.Messages[1].Role)
	}
	if len(req.Tools) != 1 {
		t.Fatalf("tool schemas missing from request: %d", len(req.Tools))
	}
}

func TestRunTurnVisionEnrichment(t *testing.T) {
	capture := tools.NewScreenCaptureTool(tools.CapturerFunc(func(ctx context.Context) (string, error) {
		return "ZmFrZWpwZWc=", nil
	}))
	client := &scriptedClient{
		responses: []*llm.ChatResponse{
			toolCallResp("c1", "capture_screen", `{}`),
			assistantResp("you are looking at a terminal"),
		},
		visionResponse: assistantResp("a terminal window with a text editor"),
		supportsVision: true,
	}
	o, session := newTestAgent(t, client, capture)

	if _, err := o.RunTurn(context.Background(), "what's on my screen?"); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	found := false
	for _, msg := range session.WorkingMemory() {
		if msg.Role == llm.RoleTool && strings.Contains(llm.GetStringValue(msg.Content), "a terminal window") {
			found = true
		}
	}
	if !found {
		t.Fatalf("vision analysis missing from tool reply")
	}
}

func TestRunTurnVisionUnsupportedDegrades(t *testing.T) {
	capture := tools.NewScreenCaptureTool(tools.CapturerFunc(func(ctx context.Context) (string, error) {
		return "ZmFrZWpwZWc=", nil
	}))
	client := &scriptedClient{
		responses: []*llm.ChatResponse{
			toolCallResp("c1", "capture_screen", `{}`),
			assistantResp("I captured it but cannot see it"),
		},
		supportsVision: false,
	}
	o, session := newTestAgent(t, client, capture)

	if _, err := o.RunTurn(context.Background(), "what's on my screen?"); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	found := false
	for _, msg := range session.WorkingMemory() {
		if msg.Role == llm.RoleTool && strings.Contains(llm.GetStringValue(msg.Content), "no vision model") {
			found = true
		}
	}
	if !found {
		t.Fatalf("vision-unavailable note missing from tool reply")
	}
}
