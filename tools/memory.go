package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/martz/miniagent/memory"
)

// RememberFactTool stores a durable fact in long-term memory
type RememberFactTool struct {
	store   *memory.Store
	session *memory.Session
}

// NewRememberFactTool creates the remember_fact tool
func NewRememberFactTool(store *memory.Store, session *memory.Session) *RememberFactTool {
	return &RememberFactTool{store: store, session: session}
}

func (t *RememberFactTool) Name() string {
	return "remember_fact"
}

func (t *RememberFactTool) Description() string {
	return "Store an important fact about the user for future conversations. Use when the user shares personal details, preferences, projects, or other durable information."
}

func (t *RememberFactTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The fact to remember, as one clear sentence",
			},
			"memory_type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"fact", "preference", "task", "project", "person", "location", "tool"},
				"description": "Category of the fact",
			},
			"importance": map[string]interface{}{
				"type":        "number",
				"description": "How important this fact is, 0.0 to 1.0",
			},
			"tags": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Short tags for retrieval",
			},
		},
		"required": []string{"content"},
	}
}

func (t *RememberFactTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	content, err := StringArg(args, "content")
	if err != nil {
		return "", err
	}

	entry := memory.Entry{
		Content:       strings.TrimSpace(content),
		Timestamp:     time.Now(),
		MemoryType:    OptionalStringArg(args, "memory_type", "fact"),
		Importance:    FloatArg(args, "importance", 0.5),
		Tags:          StringSliceArg(args, "tags"),
		Context:       map[string]string{},
		SourceSession: t.session.SessionID(),
	}
	t.store.SaveFact(entry)
	return fmt.Sprintf("Remembered: %s", entry.Content), nil
}

// RecallTool searches long-term memory
type RecallTool struct {
	store *memory.Store
}

// NewRecallTool creates the recall_information tool
func NewRecallTool(store *memory.Store) *RecallTool {
	return &RecallTool{store: store}
}

func (t *RecallTool) Name() string {
	return "recall_information"
}

func (t *RecallTool) Description() string {
	return "Search stored memories for facts relevant to a query. Use when the user asks about something mentioned before or you need context about them."
}

func (t *RecallTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "What to look for",
			},
		},
		"required": []string{"query"},
	}
}

func (t *RecallTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, err := StringArg(args, "query")
	if err != nil {
		return "", err
	}
	results := t.store.SearchMemories(query, 10)
	return t.store.FormatSearchResults(query, results), nil
}

// UpdatePreferenceTool upserts a keyed user preference
type UpdatePreferenceTool struct {
	store *memory.Store
}

// NewUpdatePreferenceTool creates the update_preference tool
func NewUpdatePreferenceTool(store *memory.Store) *UpdatePreferenceTool {
	return &UpdatePreferenceTool{store: store}
}

func (t *UpdatePreferenceTool) Name() string {
	return "update_preference"
}

func (t *UpdatePreferenceTool) Description() string {
	return "Record or update a user preference under a stable key, for example 'editor' or 'coffee'. Later writes to the same key replace earlier ones."
}

func (t *UpdatePreferenceTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Stable preference key",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "The preference value",
			},
			"context": map[string]interface{}{
				"type":        "string",
				"description": "Optional note about where this came from",
			},
		},
		"required": []string{"key", "value"},
	}
}

func (t *UpdatePreferenceTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	key, err := StringArg(args, "key")
	if err != nil {
		return "", err
	}
	value, err := StringArg(args, "value")
	if err != nil {
		return "", err
	}
	t.store.UpdatePreference(key, value, OptionalStringArg(args, "context", ""))
	return fmt.Sprintf("Preference updated: %s = %s", key, value), nil
}

// MemoryStatsTool reports the state of both memory tiers
type MemoryStatsTool struct {
	session *memory.Session
}

// NewMemoryStatsTool creates the get_memory_stats tool
func NewMemoryStatsTool(session *memory.Session) *MemoryStatsTool {
	return &MemoryStatsTool{session: session}
}

func (t *MemoryStatsTool) Name() string {
	return "get_memory_stats"
}

func (t *MemoryStatsTool) Description() string {
	return "Report how many facts, summaries, and preferences are stored and the size of the current session."
}

func (t *MemoryStatsTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *MemoryStatsTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	stats := t.session.Stats()
	return fmt.Sprintf(
		"Memory stats:\n• Working memory: %d messages\n• Stored facts: %d\n• Summaries: %d\n• Preferences: %d\n• Session: %s",
		stats.WorkingMemorySize, stats.TotalFacts, stats.TotalSummaries, stats.PreferencesCount, stats.SessionID,
	), nil
}
