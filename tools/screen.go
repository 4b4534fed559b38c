package tools

import (
	"context"
	"fmt"
	"sync"
)

// Capturer grabs the current screen as a base64-encoded JPEG
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// CapturerFunc adapts a function to the Capturer interface
type CapturerFunc func(ctx context.Context) (string, error)

func (f CapturerFunc) Capture(ctx context.Context) (string, error) {
	return f(ctx)
}

// ScreenCaptureTool captures the screen for the vision model. It
// implements ImageProducer: the orchestrator picks up the captured image
// and routes it through vision analysis when the model supports it.
type ScreenCaptureTool struct {
	capturer Capturer

	mu        sync.Mutex
	lastImage string
}

// NewScreenCaptureTool creates the capture_screen tool
func NewScreenCaptureTool(capturer Capturer) *ScreenCaptureTool {
	return &ScreenCaptureTool{capturer: capturer}
}

func (t *ScreenCaptureTool) Name() string {
	return "capture_screen"
}

func (t *ScreenCaptureTool) Description() string {
	return "Capture the current screen so it can be analyzed. Use when the user asks what is on their screen or for help with something they are looking at."
}

func (t *ScreenCaptureTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ScreenCaptureTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	image, err := t.capturer.Capture(ctx)
	if err != nil {
		t.setLastImage("")
		return "", fmt.Errorf("screen capture failed: %w", err)
	}
	t.setLastImage(image)
	return "Screen captured.", nil
}

// LastImageBase64 implements ImageProducer
func (t *ScreenCaptureTool) LastImageBase64() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastImage
}

func (t *ScreenCaptureTool) setLastImage(image string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastImage = image
}
