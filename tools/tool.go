// Package tools defines the tool interface exposed to the model and the
// built-in tools: memory access, task capture, web search, and screen
// capture.
package tools

import (
	"context"
	"fmt"
)

// Tool is one function the model may call. Parameters returns the JSON
// schema advertised to the model; Execute receives the decoded arguments
// and returns the text handed back as the tool reply.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ImageProducer is implemented by tools whose execution can yield an
// image alongside the text result. The image feeds the vision model when
// one is available.
type ImageProducer interface {
	// LastImageBase64 returns the base64-encoded JPEG from the most
	// recent execution, or "" when it produced none.
	LastImageBase64() string
}

// ToolError is a structured execution failure
type ToolError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewToolError creates a ToolError with the given code and message
func NewToolError(code, message string) *ToolError {
	return &ToolError{Code: code, Message: message}
}

// StringArg extracts a required string argument
func StringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", NewToolError("missing_argument", fmt.Sprintf("required argument '%s' not provided", key))
	}
	s, ok := v.(string)
	if !ok {
		return "", NewToolError("invalid_argument", fmt.Sprintf("argument '%s' must be a string", key))
	}
	return s, nil
}

// OptionalStringArg extracts a string argument, returning fallback when
// absent
func OptionalStringArg(args map[string]interface{}, key, fallback string) string {
	if s, ok := args[key].(string); ok {
		return s
	}
	return fallback
}

// FloatArg extracts a numeric argument, returning fallback when absent
// or malformed. JSON numbers decode as float64.
func FloatArg(args map[string]interface{}, key string, fallback float64) float64 {
	switch v := args[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

// StringSliceArg extracts a []string argument, tolerating the
// []interface{} shape JSON decoding produces
func StringSliceArg(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
