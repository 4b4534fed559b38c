package llm

import (
	"context"
)

// Client defines the interface for model providers
type Client interface {
	// Chat sends a chat request and returns the response
	Chat(ctx context.Context, request *ChatRequest) (*ChatResponse, error)

	// ChatVision sends a captured image with a caption prompt and returns
	// the model's textual analysis. Implementations without a configured
	// vision model must report false from SupportsVision.
	ChatVision(ctx context.Context, request *VisionRequest) (*ChatResponse, error)

	// SupportsVision reports whether vision requests can be served
	SupportsVision() bool

	// Close cleans up any resources
	Close() error
}

// FirstMessage returns the message of the first choice, or an empty
// assistant message when the response carries no choices.
func FirstMessage(resp *ChatResponse) Message {
	if resp == nil || len(resp.Choices) == 0 {
		return Message{Role: RoleAssistant, Content: StringPtr("")}
	}
	return resp.Choices[0].Message
}

// SynthesizeAssistant builds a well-formed assistant response carrying the
// given content. Used when an upstream failure must degrade to conversation
// text instead of an error.
func SynthesizeAssistant(content string) *ChatResponse {
	return &ChatResponse{
		Choices: []Choice{{
			Message:      Message{Role: RoleAssistant, Content: StringPtr(content)},
			FinishReason: "error",
		}},
	}
}
