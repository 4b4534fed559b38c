package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	factsFile       = "facts.json"
	summariesFile   = "summaries.json"
	preferencesFile = "preferences.json"

	contextFactLimit  = 8
	contextRecentDays = 30
)

// Store is the durable long-term memory: facts, conversation summaries,
// and user preferences, each persisted to its own flat JSON file under a
// single directory. The full state lives in memory and every mutation
// rewrites the affected file wholesale. There is a single writer per
// process; all access is serialized behind a mutex.
//
// Persistence failures are logged and swallowed: a failed write must never
// abort a conversation turn, and the in-memory copy stays authoritative
// until the next successful write.
type Store struct {
	mu sync.Mutex

	dir         string
	facts       []Entry
	summaries   []Summary
	preferences map[string]Preference

	scoring ScoringConfig
	logger  *zap.Logger
	now     func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithStoreLogger sets the logger for persistence diagnostics
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithScoring overrides the relevance scoring constants
func WithScoring(cfg ScoringConfig) StoreOption {
	return func(s *Store) {
		s.scoring = cfg
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// Open loads the store from dir, creating the directory if needed.
// Unreadable or corrupt files are logged and treated as empty.
func Open(dir string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		dir:         dir,
		preferences: make(map[string]Preference),
		scoring:     DefaultScoring(),
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}

	s.loadJSON(factsFile, &s.facts)
	s.loadJSON(summariesFile, &s.summaries)
	s.loadJSON(preferencesFile, &s.preferences)
	if s.preferences == nil {
		s.preferences = make(map[string]Preference)
	}

	return s, nil
}

// SaveFact stores a fact, deduplicating on content. A re-observed fact
// keeps the newer timestamp and the larger of the two importances.
func (s *Store) SaveFact(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := entry.hash()
	for i := range s.facts {
		if s.facts[i].hash() != h {
			continue
		}
		changed := false
		if entry.Importance > s.facts[i].Importance {
			s.facts[i].Importance = entry.Importance
			changed = true
		}
		if entry.Timestamp.After(s.facts[i].Timestamp) {
			s.facts[i].Timestamp = entry.Timestamp
			changed = true
		}
		if changed {
			s.persist(factsFile, s.facts)
		}
		return
	}

	s.facts = append(s.facts, entry)
	s.persist(factsFile, s.facts)
}

// SaveSummary appends a conversation summary for a compressed chunk
func (s *Store) SaveSummary(summary, sessionID string, messageCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries = append(s.summaries, Summary{
		SessionID:    sessionID,
		Summary:      summary,
		MessageCount: messageCount,
		Timestamp:    s.now(),
	})
	s.persist(summariesFile, s.summaries)
}

// UpdatePreference upserts a keyed preference, last write wins
func (s *Store) UpdatePreference(key, value, context string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preferences[key] = Preference{
		Value:     value,
		Context:   context,
		UpdatedAt: s.now(),
	}
	s.persist(preferencesFile, s.preferences)
}

// Facts returns a copy of all stored facts
func (s *Store) Facts() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts := make([]Entry, len(s.facts))
	copy(facts, s.facts)
	return facts
}

// Preferences returns a copy of all stored preferences
func (s *Store) Preferences() map[string]Preference {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := make(map[string]Preference, len(s.preferences))
	for k, v := range s.preferences {
		prefs[k] = v
	}
	return prefs
}

// Counts returns the number of facts, summaries, and preferences
func (s *Store) Counts() (facts, summaries, preferences int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.facts), len(s.summaries), len(s.preferences)
}

// GetContextForConversation assembles the context block injected into new
// conversations: recent or high-importance facts (deduplicated, capped),
// all preferences, and the most recent summaries. Returns "" when nothing
// qualifies.
func (s *Store) GetContextForConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parts []string

	relevant := s.relevantFacts()
	if len(relevant) > 0 {
		parts = append(parts, "=== STORED FACTS ===")
		for _, fact := range relevant {
			parts = append(parts, "• "+fact.Content)
		}
	}

	if len(s.preferences) > 0 {
		parts = append(parts, "\n=== USER PREFERENCES ===")
		for key, pref := range s.preferences {
			parts = append(parts, fmt.Sprintf("• %s: %s", key, pref.Value))
		}
	}

	if len(s.summaries) > 0 {
		start := len(s.summaries) - 2
		if start < 0 {
			start = 0
		}
		parts = append(parts, "\n=== RECENT CONTEXT ===")
		for _, summary := range s.summaries[start:] {
			text := summary.Summary
			if len(text) > 150 {
				text = text[:150] + "..."
			}
			parts = append(parts, "• "+text)
		}
	}

	return strings.Join(parts, "\n")
}

// relevantFacts merges recent facts with high-importance facts,
// deduplicated by content, newest-recent first. Caller holds the lock.
func (s *Store) relevantFacts() []Entry {
	cutoff := s.now().AddDate(0, 0, -contextRecentDays)

	var candidates []Entry
	for i := len(s.facts) - 1; i >= 0; i-- {
		if s.facts[i].Timestamp.After(cutoff) {
			candidates = append(candidates, s.facts[i])
		}
	}
	for i := len(s.facts) - 1; i >= 0; i-- {
		if s.facts[i].Importance > 0.5 {
			candidates = append(candidates, s.facts[i])
		}
	}

	seen := make(map[string]bool)
	var relevant []Entry
	for _, fact := range candidates {
		h := fact.hash()
		if seen[h] {
			continue
		}
		seen[h] = true
		relevant = append(relevant, fact)
		if len(relevant) >= contextFactLimit {
			break
		}
	}
	return relevant
}

// loadJSON reads one store file into v; missing or corrupt files leave v
// untouched and are logged.
func (s *Store) loadJSON(name string, v interface{}) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read memory file", zap.String("file", name), zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("failed to parse memory file", zap.String("file", name), zap.Error(err))
	}
}

// persist rewrites one store file wholesale. Caller holds the lock.
func (s *Store) persist(name string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Warn("failed to marshal memory file", zap.String("file", name), zap.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		s.logger.Warn("failed to write memory file", zap.String("file", name), zap.Error(err))
	}
}
