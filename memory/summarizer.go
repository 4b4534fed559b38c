package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/martz/miniagent/llm"
)

const summarizePrompt = `You are a conversation summarizer. Create a concise but comprehensive summary of the conversation below. Focus on key topics discussed, decisions made, tasks completed, and any important information exchanged. Keep the summary under 200 words.`

const extractPrompt = `You are a fact extractor. From the conversation below, extract durable facts about the user worth remembering across sessions: personal details, preferences, projects, people, places, and tools they use. Ignore small talk and transient requests.

Respond with ONLY a JSON array, no other text. Each element:
{"content": "the fact as one sentence", "memory_type": "fact|preference|task|project|person|location|tool", "importance": 0.0-1.0, "tags": ["tag1", "tag2"], "context": {}}

Return [] if nothing is worth storing.`

// Summarizer condenses conversation chunks through the model: a prose
// summary for the archive and structured facts for the long-term store.
type Summarizer struct {
	client llm.Client
	logger *zap.Logger
}

// NewSummarizer wires a summarizer to a model client
func NewSummarizer(client llm.Client, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{client: client, logger: logger}
}

// Summarize produces a prose summary of the given messages
func (s *Summarizer) Summarize(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := s.client.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: llm.StringPtr(summarizePrompt)},
			{Role: llm.RoleUser, Content: llm.StringPtr(formatMessages(messages))},
		},
		Temperature: 0.3,
		MaxTokens:   400,
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}

	summary := strings.TrimSpace(llm.GetStringValue(llm.FirstMessage(resp).Content))
	if summary == "" {
		return "", fmt.Errorf("summarization returned empty response")
	}
	return summary, nil
}

// extractedFact is the wire shape the extraction prompt asks for
type extractedFact struct {
	Content    string                 `json:"content"`
	MemoryType string                 `json:"memory_type"`
	Importance float64                `json:"importance"`
	Tags       []string               `json:"tags"`
	Context    map[string]interface{} `json:"context"`
}

// ExtractFacts asks the model for storable facts in the given messages.
// The model's reply is parsed tolerantly: the first JSON array found in
// the text is used, surrounding prose is ignored.
func (s *Summarizer) ExtractFacts(ctx context.Context, messages []llm.Message, sessionID string) ([]Entry, error) {
	resp, err := s.client.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: llm.StringPtr(extractPrompt)},
			{Role: llm.RoleUser, Content: llm.StringPtr(formatMessages(messages))},
		},
		Temperature: 0.1,
		MaxTokens:   800,
	})
	if err != nil {
		return nil, fmt.Errorf("fact extraction failed: %w", err)
	}

	text := llm.GetStringValue(llm.FirstMessage(resp).Content)
	raw, err := extractJSONArray(text)
	if err != nil {
		s.logger.Warn("fact extraction reply had no parseable array", zap.Error(err))
		return nil, nil
	}

	var extracted []extractedFact
	if err := json.Unmarshal(raw, &extracted); err != nil {
		s.logger.Warn("failed to parse extracted facts", zap.Error(err))
		return nil, nil
	}

	now := time.Now()
	entries := make([]Entry, 0, len(extracted))
	for _, f := range extracted {
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		if f.MemoryType == "" {
			f.MemoryType = "fact"
		}
		if f.Importance <= 0 {
			f.Importance = 0.5
		}
		context := make(map[string]string, len(f.Context))
		for k, v := range f.Context {
			context[k] = fmt.Sprint(v)
		}
		entries = append(entries, Entry{
			Content:       strings.TrimSpace(f.Content),
			Timestamp:     now,
			MemoryType:    f.MemoryType,
			Importance:    f.Importance,
			Tags:          f.Tags,
			Context:       context,
			SourceSession: sessionID,
		})
	}
	return entries, nil
}

// extractJSONArray finds the first top-level JSON array in text
func extractJSONArray(text string) (json.RawMessage, error) {
	start := strings.Index(text, "[")
	if start < 0 {
		return nil, fmt.Errorf("no JSON array in reply")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return json.RawMessage(text[start : i+1]), nil
			}
		}
	}
	return nil, fmt.Errorf("unterminated JSON array in reply")
}

// formatMessages renders a chunk as plain text for the prompts
func formatMessages(messages []llm.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		content := strings.TrimSpace(llm.GetStringValue(msg.Content))
		if content == "" {
			continue
		}
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		switch msg.Role {
		case llm.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", content)
		case llm.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", content)
		case llm.RoleTool:
			fmt.Fprintf(&b, "Tool (%s): %s\n", msg.Name, content)
		}
	}
	return b.String()
}
