package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martz/miniagent/llm"
)

const (
	defaultCompressThreshold = 40
	defaultKeepRecent        = 15

	// Chunks below this size carry too little signal to summarize.
	minChunkSize = 3

	// Sessions shorter than this are discarded on clear without a flush.
	clearFlushMinimum = 5
)

const contextInjectionTemplate = `MEMORY CONTEXT (reference when relevant):
%s

Refer to stored facts naturally in conversation. Don't mention the memory system explicitly.`

// Session is the working memory of the live conversation. It holds the
// raw message list, compresses old chunks into the long-term store when
// the list grows past a threshold, and injects stored context into the
// history handed to the model.
type Session struct {
	mu        sync.Mutex
	store     *Store
	summarize *Summarizer
	working   []llm.Message
	sessionID string

	compressThreshold int
	keepRecent        int

	// flushMu serializes compression chunks so overlapping flushes
	// cannot interleave summaries.
	flushMu sync.Mutex

	logger *zap.Logger
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithCompressThreshold sets the working-memory size that triggers
// automatic compression
func WithCompressThreshold(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.compressThreshold = n
		}
	}
}

// WithKeepRecent sets how many recent messages survive compression
func WithKeepRecent(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.keepRecent = n
		}
	}
}

// WithSessionLogger sets the logger
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a working-memory session backed by the given store
// and summarizer
func NewSession(store *Store, summarizer *Summarizer, opts ...SessionOption) *Session {
	s := &Session{
		store:             store,
		summarize:         summarizer,
		sessionID:         newSessionID(),
		compressThreshold: defaultCompressThreshold,
		keepRecent:        defaultKeepRecent,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newSessionID builds a sortable session identifier
func newSessionID() string {
	return time.Now().Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// SessionID returns the current session identifier
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// AddToWorkingMemory appends a message and compresses the session when
// it crosses the threshold.
func (s *Session) AddToWorkingMemory(ctx context.Context, msg llm.Message) {
	s.mu.Lock()
	s.working = append(s.working, msg)
	over := len(s.working) > s.compressThreshold
	s.mu.Unlock()

	if over {
		s.Compress(ctx, s.keepRecent)
	}
}

// Compress summarizes everything older than the last keepRecent messages
// into the long-term store and truncates working memory. The truncation
// happens before the model calls, so a failed summarization still frees
// the space. Returns the number of messages compressed.
func (s *Session) Compress(ctx context.Context, keepRecent int) int {
	if keepRecent <= 0 {
		keepRecent = s.keepRecent
	}

	s.mu.Lock()
	if len(s.working) <= keepRecent {
		s.mu.Unlock()
		return 0
	}
	chunk := make([]llm.Message, len(s.working)-keepRecent)
	copy(chunk, s.working[:len(s.working)-keepRecent])
	s.working = append(s.working[:0], s.working[len(s.working)-keepRecent:]...)
	sessionID := s.sessionID
	s.mu.Unlock()

	s.processChunk(ctx, chunk, sessionID)
	return len(chunk)
}

// ClearSession archives a session worth keeping and starts a fresh one.
// Short sessions are discarded without a flush.
func (s *Session) ClearSession(ctx context.Context) {
	s.mu.Lock()
	chunk := s.working
	sessionID := s.sessionID
	s.working = nil
	s.sessionID = newSessionID()
	s.mu.Unlock()

	if len(chunk) > clearFlushMinimum {
		s.processChunk(ctx, chunk, sessionID)
	}
}

// GetEnhancedHistory returns the last maxRecent working-memory messages
// with the stored memory context injected as a system message directly
// before the first user message. maxRecent <= 0 means no bound.
func (s *Session) GetEnhancedHistory(maxRecent int) []llm.Message {
	s.mu.Lock()
	recent := s.working
	if maxRecent > 0 && len(recent) > maxRecent {
		recent = recent[len(recent)-maxRecent:]
	}
	working := make([]llm.Message, len(recent))
	copy(working, recent)
	s.mu.Unlock()

	memCtx := s.store.GetContextForConversation()
	if strings.TrimSpace(memCtx) == "" {
		return working
	}

	injection := llm.Message{
		Role:    llm.RoleSystem,
		Content: llm.StringPtr(fmt.Sprintf(contextInjectionTemplate, memCtx)),
	}

	for i, msg := range working {
		if msg.Role == llm.RoleUser {
			enhanced := make([]llm.Message, 0, len(working)+1)
			enhanced = append(enhanced, working[:i]...)
			enhanced = append(enhanced, injection)
			enhanced = append(enhanced, working[i:]...)
			return enhanced
		}
	}
	return append(working, injection)
}

// WorkingMemory returns a copy of the raw working memory
func (s *Session) WorkingMemory() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	working := make([]llm.Message, len(s.working))
	copy(working, s.working)
	return working
}

// Stats reports the state of both memory tiers
func (s *Session) Stats() Stats {
	facts, summaries, prefs := s.store.Counts()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		WorkingMemorySize: len(s.working),
		TotalFacts:        facts,
		TotalSummaries:    summaries,
		PreferencesCount:  prefs,
		SessionID:         s.sessionID,
	}
}

// processChunk summarizes one compressed chunk and extracts its facts.
// Both model calls may fail independently; each failure is logged and
// the other result is still stored.
func (s *Session) processChunk(ctx context.Context, chunk []llm.Message, sessionID string) {
	if len(chunk) < minChunkSize {
		return
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	summary, err := s.summarize.Summarize(ctx, chunk)
	if err != nil {
		s.logger.Warn("chunk summarization failed", zap.Error(err))
	} else {
		s.store.SaveSummary(summary, sessionID, len(chunk))
	}

	facts, err := s.summarize.ExtractFacts(ctx, chunk, sessionID)
	if err != nil {
		s.logger.Warn("chunk fact extraction failed", zap.Error(err))
		return
	}
	for _, fact := range facts {
		s.store.SaveFact(fact)
	}
}
