// Package memory implements the assistant's two memory tiers: a durable,
// file-backed long-term store of facts, preferences, and conversation
// summaries, and the in-process working memory for the live session.
package memory

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Entry is one stored fact. Entries are deduplicated by a hash of their
// content: re-observing a fact refreshes its timestamp and keeps the
// larger importance instead of creating a duplicate.
type Entry struct {
	Content       string            `json:"content"`
	Timestamp     time.Time         `json:"timestamp"`
	MemoryType    string            `json:"memory_type"` // fact, preference, task, project, person, location, tool
	Importance    float64           `json:"importance"`  // 0.0 to 1.0
	Tags          []string          `json:"tags"`
	Context       map[string]string `json:"context"`
	SourceSession string            `json:"source_session"`
}

// hash returns the content-identity of the entry
func (e Entry) hash() string {
	sum := md5.Sum([]byte(e.Content))
	return hex.EncodeToString(sum[:])
}

// Summary is one compressed conversation chunk. Immutable once written.
type Summary struct {
	SessionID    string    `json:"session_id"`
	Summary      string    `json:"summary"`
	MessageCount int       `json:"message_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// Preference is one keyed user preference with last-write-wins semantics
type Preference struct {
	Value     string    `json:"value"`
	Context   string    `json:"context"`
	UpdatedAt time.Time `json:"updated"`
}

// Stats summarizes the state of both memory tiers
type Stats struct {
	WorkingMemorySize int    `json:"working_memory_size"`
	TotalFacts        int    `json:"total_facts"`
	TotalSummaries    int    `json:"total_summaries"`
	PreferencesCount  int    `json:"preferences_count"`
	SessionID         string `json:"session_id"`
}
