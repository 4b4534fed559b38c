// Package monitor runs standing watch tasks in the background: each task
// is a topic the user asked to keep an eye on, checked on an interval
// through web search and the model, with findings surfaced as
// notifications.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martz/miniagent/llm"
	"github.com/martz/miniagent/tools"
	"github.com/martz/miniagent/ui"
)

const (
	tasksFile    = "monitoring.json"
	findingsFile = "findings.json"

	defaultTick        = time.Minute
	defaultIntervalMin = 30
	maxStoredFindings  = 200
)

const checkPrompt = `You are a monitoring assistant. The user asked to watch the topic below. Given the search results, report anything new or notable in one or two sentences. If nothing stands out, respond with exactly NOTHING_NEW.`

// Task is one standing watch
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	IntervalMin int       `json:"interval_minutes"`
	LastRun     time.Time `json:"last_run"`
	Active      bool      `json:"active"`
}

// Finding is one notable result from a check
type Finding struct {
	TaskID    string    `json:"task_id"`
	Task      string    `json:"task"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Agent owns the watch list and the background check loop. Tasks and
// findings persist to flat JSON files alongside the memory store.
type Agent struct {
	mu       sync.Mutex
	dir      string
	tasks    []Task
	findings []Finding

	client   llm.Client
	searcher tools.Searcher
	notify   *ui.Queue
	logger   *zap.Logger

	tick time.Duration
	stop chan struct{}
	done chan struct{}
}

// Option configures the monitoring agent
type Option func(*Agent)

// WithTick overrides how often the loop looks for due tasks
func WithTick(d time.Duration) Option {
	return func(a *Agent) {
		if d > 0 {
			a.tick = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// New creates a monitoring agent rooted at dir
func New(dir string, client llm.Client, searcher tools.Searcher, notify *ui.Queue, opts ...Option) (*Agent, error) {
	a := &Agent{
		dir:      dir,
		client:   client,
		searcher: searcher,
		notify:   notify,
		logger:   zap.NewNop(),
		tick:     defaultTick,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create monitor directory: %w", err)
	}
	a.loadJSON(tasksFile, &a.tasks)
	a.loadJSON(findingsFile, &a.findings)
	return a, nil
}

// AddTask registers a new watch. A non-positive interval gets the
// default.
func (a *Agent) AddTask(description string, intervalMin int) Task {
	if intervalMin <= 0 {
		intervalMin = defaultIntervalMin
	}
	task := Task{
		ID:          uuid.NewString()[:8],
		Description: strings.TrimSpace(description),
		IntervalMin: intervalMin,
		Active:      true,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks = append(a.tasks, task)
	a.persist(tasksFile, a.tasks)
	return task
}

// RemoveTask deactivates a watch by ID
func (a *Agent) RemoveTask(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.tasks {
		if a.tasks[i].ID == id && a.tasks[i].Active {
			a.tasks[i].Active = false
			a.persist(tasksFile, a.tasks)
			return true
		}
	}
	return false
}

// Tasks returns the active watches
func (a *Agent) Tasks() []Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	var active []Task
	for _, t := range a.tasks {
		if t.Active {
			active = append(active, t)
		}
	}
	return active
}

// Findings returns the newest findings, most recent first
func (a *Agent) Findings(limit int) []Finding {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit <= 0 || limit > len(a.findings) {
		limit = len(a.findings)
	}
	out := make([]Finding, 0, limit)
	for i := len(a.findings) - 1; i >= len(a.findings)-limit; i-- {
		out = append(out, a.findings[i])
	}
	return out
}

// Start launches the background loop. Stop cleanly shuts it down;
// cancelling ctx does too.
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	if a.stop != nil {
		a.mu.Unlock()
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	stop, done := a.stop, a.done
	a.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(a.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				a.RunDue(ctx)
			}
		}
	}()
}

// Stop shuts the background loop down and waits for it
func (a *Agent) Stop() {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// RunDue checks every active task whose interval has elapsed. Exported
// so a check can also be forced from the UI.
func (a *Agent) RunDue(ctx context.Context) {
	now := time.Now()

	a.mu.Lock()
	var due []Task
	for i := range a.tasks {
		t := a.tasks[i]
		if t.Active && now.Sub(t.LastRun) >= time.Duration(t.IntervalMin)*time.Minute {
			a.tasks[i].LastRun = now
			due = append(due, t)
		}
	}
	if len(due) > 0 {
		a.persist(tasksFile, a.tasks)
	}
	a.mu.Unlock()

	for _, task := range due {
		a.check(ctx, task)
	}
}

// check runs one watch: search, summarize, record
func (a *Agent) check(ctx context.Context, task Task) {
	results, err := a.searcher.Search(ctx, task.Description, 5)
	if err != nil {
		a.logger.Warn("monitor search failed",
			zap.String("task", task.Description), zap.Error(err))
		return
	}
	if strings.TrimSpace(results) == "" {
		return
	}

	resp, err := a.client.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: llm.StringPtr(checkPrompt)},
			{Role: llm.RoleUser, Content: llm.StringPtr(
				fmt.Sprintf("Topic: %s\n\nSearch results:\n%s", task.Description, results))},
		},
		Temperature: 0.2,
		MaxTokens:   200,
	})
	if err != nil {
		a.logger.Warn("monitor summarization failed",
			zap.String("task", task.Description), zap.Error(err))
		return
	}

	summary := strings.TrimSpace(llm.GetStringValue(llm.FirstMessage(resp).Content))
	if summary == "" || strings.Contains(summary, "NOTHING_NEW") {
		return
	}

	finding := Finding{
		TaskID:    task.ID,
		Task:      task.Description,
		Summary:   summary,
		Timestamp: time.Now(),
	}

	a.mu.Lock()
	a.findings = append(a.findings, finding)
	if len(a.findings) > maxStoredFindings {
		a.findings = a.findings[len(a.findings)-maxStoredFindings:]
	}
	a.persist(findingsFile, a.findings)
	a.mu.Unlock()

	if a.notify != nil {
		a.notify.Emit(fmt.Sprintf("[%s] %s", task.Description, summary), ui.StyleFinding)
	}
}

func (a *Agent) loadJSON(name string, v interface{}) {
	data, err := os.ReadFile(filepath.Join(a.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Warn("failed to read monitor file", zap.String("file", name), zap.Error(err))
		}
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		a.logger.Warn("failed to parse monitor file", zap.String("file", name), zap.Error(err))
	}
}

// persist rewrites one monitor file. Caller holds the lock.
func (a *Agent) persist(name string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		a.logger.Warn("failed to marshal monitor file", zap.String("file", name), zap.Error(err))
		return
	}
	if err := os.WriteFile(filepath.Join(a.dir, name), data, 0644); err != nil {
		a.logger.Warn("failed to write monitor file", zap.String("file", name), zap.Error(err))
	}
}
