// Package agent runs conversation turns: it drives the plan/tool-execute
// loop against the model, executes tool calls through the registry, and
// keeps working memory consistent with the tool-calling protocol.
package agent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/martz/miniagent/history"
	"github.com/martz/miniagent/llm"
	"github.com/martz/miniagent/memory"
	"github.com/martz/miniagent/tools"
	"github.com/martz/miniagent/tools/registry"
)

// Orchestrator owns the turn loop. One turn runs at a time; concurrent
// RunTurn calls fail fast with ErrBusy instead of queueing.
type Orchestrator struct {
	client   llm.Client
	registry *registry.Registry
	session  *memory.Session
	config   Config
	logger   *zap.Logger

	turnMu sync.Mutex

	// onState, when set, receives lifecycle transitions for the UI
	onState func(State)
}

// New creates an orchestrator
func New(client llm.Client, reg *registry.Registry, session *memory.Session, config Config) *Orchestrator {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultConfig().MaxIterations
	}
	if config.MaxRecent <= 0 {
		config.MaxRecent = DefaultConfig().MaxRecent
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = DefaultConfig().SystemPrompt
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Orchestrator{
		client:   client,
		registry: reg,
		session:  session,
		config:   config,
		logger:   config.Logger,
	}
}

// OnStateChange registers a listener for turn lifecycle transitions.
// Must be called before the first turn.
func (o *Orchestrator) OnStateChange(fn func(State)) {
	o.onState = fn
}

// RunTurn processes one user input to completion: it appends the input
// to working memory, then alternates model calls and tool execution
// until the model answers without tool calls or the iteration bound is
// hit.
func (o *Orchestrator) RunTurn(ctx context.Context, userInput string) (*Response, error) {
	if !o.turnMu.TryLock() {
		return nil, ErrBusy
	}
	defer o.turnMu.Unlock()

	o.setState(StatePlanning)
	o.session.AddToWorkingMemory(ctx, llm.Message{
		Role:    llm.RoleUser,
		Content: llm.StringPtr(userInput),
	})

	resp := &Response{State: StateAborted}

	for iteration := 0; iteration < o.config.MaxIterations; iteration++ {
		resp.Iterations = iteration + 1

		chatResp, err := o.client.Chat(ctx, o.buildRequest(iteration))
		if err != nil {
			return nil, fmt.Errorf("model call failed: %w", err)
		}

		assistantMsg := llm.FirstMessage(chatResp)
		o.session.AddToWorkingMemory(ctx, assistantMsg)

		if len(assistantMsg.ToolCalls) == 0 {
			o.setState(StateDone)
			resp.State = StateDone
			resp.Content = llm.GetStringValue(assistantMsg.Content)
			return resp, nil
		}

		o.setState(StateToolExecuting)
		replies := o.registry.ExecuteToolCalls(ctx, assistantMsg.ToolCalls)
		for i, reply := range replies {
			resp.ToolsUsed = append(resp.ToolsUsed, assistantMsg.ToolCalls[i].Function.Name)
			reply = o.enrichWithVision(ctx, userInput, reply)
			o.session.AddToWorkingMemory(ctx, reply)
		}
		o.setState(StatePlanning)
	}

	// Iteration bound hit. Leave an explicit assistant answer so the
	// history stays valid and the user sees why the turn stopped.
	o.logger.Warn("turn hit iteration bound",
		zap.Int("max_iterations", o.config.MaxIterations))
	o.session.AddToWorkingMemory(ctx, llm.Message{
		Role:    llm.RoleAssistant,
		Content: llm.StringPtr(maxIterationsMessage),
	})
	o.setState(StateAborted)
	resp.Content = maxIterationsMessage
	return resp, nil
}

// Reset archives the current session and starts a new one
func (o *Orchestrator) Reset(ctx context.Context) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()
	o.session.ClearSession(ctx)
}

// buildRequest assembles the model request: system prompt, sanitized
// enhanced history, and the tool schemas. Late iterations swap in a
// steering reminder so runaway tool chains converge.
func (o *Orchestrator) buildRequest(iteration int) *llm.ChatRequest {
	sanitized := history.Sanitize(o.session.GetEnhancedHistory(o.config.MaxRecent), o.config.MaxRecent)

	messages := make([]llm.Message, 0, len(sanitized)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: llm.StringPtr(o.config.SystemPrompt),
	})
	messages = append(messages, sanitized...)

	if iteration >= o.config.MaxIterations-2 && iteration > 0 {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: llm.StringPtr(steeringPrompt),
		})
	}

	return &llm.ChatRequest{
		Messages:    messages,
		Temperature: o.config.Temperature,
		Tools:       o.registry.Schemas(),
	}
}

// enrichWithVision routes an image-producing tool result through the
// vision model. Failures degrade to text in the tool reply; the turn
// never aborts over a vision problem.
func (o *Orchestrator) enrichWithVision(ctx context.Context, userInput string, reply llm.Message) llm.Message {
	tool, ok := o.registry.Get(reply.Name)
	if !ok {
		return reply
	}
	producer, ok := tool.(tools.ImageProducer)
	if !ok {
		return reply
	}
	image := producer.LastImageBase64()
	if image == "" {
		return reply
	}

	if !o.client.SupportsVision() {
		reply.Content = llm.StringPtr(llm.GetStringValue(reply.Content) +
			" Image analysis is unavailable: no vision model is configured.")
		return reply
	}

	visionResp, err := o.client.ChatVision(ctx, &llm.VisionRequest{
		ImageBase64: image,
		Prompt:      userInput,
	})
	if err != nil {
		o.logger.Warn("vision analysis failed", zap.Error(err))
		reply.Content = llm.StringPtr(fmt.Sprintf(
			"%s Image analysis failed: %v", llm.GetStringValue(reply.Content), err))
		return reply
	}

	analysis := llm.GetStringValue(llm.FirstMessage(visionResp).Content)
	reply.Content = llm.StringPtr(fmt.Sprintf(
		"%s\n\nScreen analysis:\n%s", llm.GetStringValue(reply.Content), analysis))
	return reply
}

func (o *Orchestrator) setState(s State) {
	if o.onState != nil {
		o.onState(s)
	}
}
