package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/martz/miniagent/llm"
)

// Logger writes sanitized session transcripts to disk, one JSON file per
// saved session. Write failures are logged and swallowed; saving a
// transcript must never break a conversation turn.
type Logger struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewLogger creates a session transcript logger rooted at dir
func NewLogger(dir string, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{dir: dir, logger: logger, now: time.Now}
}

// Save sanitizes messages and writes them as a timestamped session log.
// Returns the written path, or "" when nothing was written.
func (l *Logger) Save(messages []llm.Message, maxMessages int) string {
	if len(messages) == 0 {
		return ""
	}

	sanitized := Sanitize(messages, maxMessages)
	if len(sanitized) == 0 {
		return ""
	}

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		l.logger.Warn("failed to create session log directory", zap.Error(err))
		return ""
	}

	data, err := json.MarshalIndent(sanitized, "", "  ")
	if err != nil {
		l.logger.Warn("failed to marshal session log", zap.Error(err))
		return ""
	}

	path := filepath.Join(l.dir, fmt.Sprintf("chat_session_%s.json", l.now().Format("2006-01-02_15-04-05")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		l.logger.Warn("failed to write session log", zap.String("path", path), zap.Error(err))
		return ""
	}

	return path
}

// List returns saved session log filenames, newest first
func (l *Logger) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session log directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "chat_session_") {
			names = append(names, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}
