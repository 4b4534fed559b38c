package agent

import (
	"errors"

	"go.uber.org/zap"
)

// State describes where a turn is in its lifecycle
type State string

const (
	StatePlanning      State = "planning"
	StateToolExecuting State = "tool_executing"
	StateDone          State = "done"
	StateAborted       State = "aborted"
)

// ErrBusy is returned when a turn is requested while another is running
var ErrBusy = errors.New("agent is already processing a turn")

const defaultSystemPrompt = `You are a helpful desktop assistant with persistent memory. You remember facts about the user across conversations and can search the web, capture the screen, and add tasks to their notes.

Use your tools when they help. Store durable facts the user shares. Answer naturally and concisely.`

const steeringPrompt = `You have used many tool calls this turn. Answer the user now with what you have; do not call more tools unless strictly necessary.`

const maxIterationsMessage = "I reached the maximum tool-chain length for a single turn. Here is what I have so far; ask me to continue if you need more."

// Config controls a single orchestrator
type Config struct {
	// MaxIterations bounds the plan/tool-execute loop per turn
	MaxIterations int
	// MaxRecent bounds the sanitized history sent to the model
	MaxRecent int
	// SystemPrompt heads every model request
	SystemPrompt string
	// Temperature for planning requests
	Temperature float32

	Logger *zap.Logger
}

// DefaultConfig returns the stock orchestrator settings
func DefaultConfig() Config {
	return Config{
		MaxIterations: 10,
		MaxRecent:     30,
		SystemPrompt:  defaultSystemPrompt,
		Temperature:   0.7,
	}
}

// Response is the outcome of one conversation turn
type Response struct {
	Content    string
	State      State
	Iterations int
	ToolsUsed  []string
}
