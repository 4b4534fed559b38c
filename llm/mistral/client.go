package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/martz/miniagent/llm"
)

const (
	defaultBaseURL       = "https://api.mistral.ai/v1"
	defaultTimeout       = 30 * time.Second
	defaultVisionTimeout = 45 * time.Second
	defaultTextModel     = "mistral-medium-latest"
	defaultVisionModel   = "pixtral-12b-latest"

	visionPrompt = "I've captured my current screen. Please analyze what you see and help me " +
		"understand the content. Be specific about what applications, interfaces, or content you can identify."
)

// Client implements the llm.Client interface for the Mistral API
type Client struct {
	options      llm.ClientOptions
	httpClient   *http.Client
	visionClient *http.Client
}

// NewClient creates a new Mistral client
func NewClient(opts ...llm.ClientOption) (*Client, error) {
	options := llm.ClientOptions{
		BaseURL:       defaultBaseURL,
		Timeout:       defaultTimeout,
		VisionTimeout: defaultVisionTimeout,
		TextModel:     defaultTextModel,
		VisionModel:   defaultVisionModel,
		Headers:       make(map[string]string),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.APIKey == "" {
		options.APIKey = os.Getenv("MISTRAL_API_KEY")
		if options.APIKey == "" {
			return nil, fmt.Errorf("Mistral API key not provided")
		}
	}

	return &Client{
		options:      options,
		httpClient:   &http.Client{Timeout: options.Timeout},
		visionClient: &http.Client{Timeout: options.VisionTimeout},
	}, nil
}

// Chat sends a text chat request
func (c *Client) Chat(ctx context.Context, request *llm.ChatRequest) (*llm.ChatResponse, error) {
	if request.Model == "" {
		request.Model = c.options.TextModel
	}
	return c.post(ctx, c.httpClient, request)
}

// ChatVision sends a captured image for analysis. Tools are deliberately
// omitted from vision requests; the vision model only describes the image.
func (c *Client) ChatVision(ctx context.Context, request *llm.VisionRequest) (*llm.ChatResponse, error) {
	if !c.SupportsVision() {
		return nil, &llm.FatalError{Err: fmt.Errorf("no vision model configured")}
	}

	prompt := request.Prompt
	if prompt == "" {
		prompt = visionPrompt
	}
	maxTokens := request.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}

	body := map[string]interface{}{
		"model": c.options.VisionModel,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": prompt},
					{"type": "image_url", "image_url": map[string]string{
						"url": "data:image/jpeg;base64," + request.ImageBase64,
					}},
				},
			},
		},
		"max_tokens":  maxTokens,
		"temperature": 0.1,
	}
	return c.post(ctx, c.visionClient, body)
}

// SupportsVision reports whether a vision model is configured
func (c *Client) SupportsVision() bool {
	return c.options.VisionModel != ""
}

// Close cleans up resources
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	c.visionClient.CloseIdleConnections()
	return nil
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, payload interface{}) (*llm.ChatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &llm.FatalError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.options.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &llm.FatalError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+c.options.APIKey)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.options.Headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &llm.TransientError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llm.TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Message string            `json:"message"`
			Error   llm.ErrorResponse `json:"error"`
		}
		msg := string(respBody)
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			if errResp.Error.Message != "" {
				msg = errResp.Error.Message
			} else if errResp.Message != "" {
				msg = errResp.Message
			}
		}
		return nil, &llm.APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	response := &llm.ChatResponse{}
	if err := json.Unmarshal(respBody, response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return response, nil
}
