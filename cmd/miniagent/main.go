package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/martz/miniagent/agent"
	"github.com/martz/miniagent/config"
	"github.com/martz/miniagent/history"
	"github.com/martz/miniagent/internal/logging"
	"github.com/martz/miniagent/llm"
	"github.com/martz/miniagent/llm/mistral"
	"github.com/martz/miniagent/memory"
	"github.com/martz/miniagent/monitor"
	"github.com/martz/miniagent/tools"
	"github.com/martz/miniagent/tools/registry"
	"github.com/martz/miniagent/tui"
	"github.com/martz/miniagent/ui"
)

var (
	debug bool

	rootCmd = &cobra.Command{
		Use:   "miniagent",
		Short: "Desktop assistant with persistent memory",
		Long:  "miniagent - a conversational desktop assistant that remembers facts across sessions, watches topics in the background, and can search the web and look at your screen",
		RunE:  runTUI,
	}

	queryCmd = &cobra.Command{
		Use:   "query [message]",
		Short: "Send a one-shot message without entering the TUI",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQuery,
	}

	memoryCmd = &cobra.Command{
		Use:   "memory",
		Short: "Inspect long-term memory",
	}

	memoryStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show memory statistics",
		RunE:  runMemoryStats,
	}

	memorySearchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Search stored memories",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMemorySearch,
	}

	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "List saved session transcripts",
		RunE:  runSessions,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(sessionsCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memorySearchCmd)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds everything a command needs after wiring
type app struct {
	settings     *config.Settings
	logger       *zap.Logger
	client       llm.Client
	store        *memory.Store
	session      *memory.Session
	orchestrator *agent.Orchestrator
	monitor      *monitor.Agent
	sessions     *history.Logger
	notify       *ui.Queue
}

// buildApp wires the full stack. withModel controls whether a model
// client is required; memory inspection works offline.
func buildApp(withModel bool) (*app, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	if debug {
		settings.Debug = true
	}

	logger, err := logging.New(settings.LogFile, settings.Debug)
	if err != nil {
		return nil, err
	}

	store, err := memory.Open(settings.MemoryDir,
		memory.WithStoreLogger(logger),
		memory.WithScoring(memory.ScoringConfig{
			ExactMatch:     settings.Scoring.ExactMatch,
			WordOverlap:    settings.Scoring.WordOverlap,
			TagMatch:       settings.Scoring.TagMatch,
			ContextMatch:   settings.Scoring.ContextMatch,
			FuzzyMatch:     settings.Scoring.FuzzyMatch,
			FuzzyThreshold: settings.Scoring.FuzzyThreshold,
			MinScore:       settings.Scoring.MinScore,
		}),
	)
	if err != nil {
		return nil, err
	}

	a := &app{
		settings: settings,
		logger:   logger,
		store:    store,
		sessions: history.NewLogger(settings.SessionLogDir, logger),
		notify:   ui.NewQueue(64),
	}
	if !withModel {
		return a, nil
	}

	if settings.MistralAPIKey == "" {
		return nil, fmt.Errorf("no API key configured: set MISTRAL_API_KEY or mistral_api_key in the config file")
	}

	base, err := mistral.NewClient(
		llm.WithAPIKey(settings.MistralAPIKey),
		llm.WithTextModel(settings.TextModel),
		llm.WithVisionModel(settings.VisionModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	a.client = llm.NewRateLimited(base,
		llm.WithTextInterval(settings.TextInterval),
		llm.WithVisionInterval(settings.VisionInterval),
		llm.WithLogger(logger),
	)

	a.session = memory.NewSession(store, memory.NewSummarizer(a.client, logger),
		memory.WithCompressThreshold(settings.CompressThreshold),
		memory.WithKeepRecent(settings.KeepRecent),
		memory.WithSessionLogger(logger),
	)

	searcher := tools.NewDuckDuckGoSearcher()

	reg := registry.New(logger)
	reg.Register(tools.NewRememberFactTool(store, a.session))
	reg.Register(tools.NewRecallTool(store))
	reg.Register(tools.NewUpdatePreferenceTool(store))
	reg.Register(tools.NewMemoryStatsTool(a.session))
	reg.Register(tools.NewWebSearchTool(searcher))
	reg.Register(tools.NewAddTaskTool(notesTaskSink(settings.DataDir)))
	reg.Register(tools.NewScreenCaptureTool(tools.CapturerFunc(captureScreen)))

	cfg := agent.DefaultConfig()
	cfg.MaxIterations = settings.MaxIterations
	cfg.MaxRecent = settings.MaxRecent
	cfg.Logger = logger
	a.orchestrator = agent.New(a.client, reg, a.session, cfg)
	a.orchestrator.OnStateChange(func(s agent.State) {
		switch s {
		case agent.StatePlanning:
			a.notify.SetStatus("thinking")
		case agent.StateToolExecuting:
			a.notify.SetStatus("running tools")
		default:
			a.notify.SetStatus("")
		}
	})

	a.monitor, err = monitor.New(settings.MonitorDir, a.client, searcher, a.notify,
		monitor.WithTick(settings.MonitorTick),
		monitor.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
	a.logger.Sync()
}

func runTUI(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.monitor.Start(ctx)
	defer a.monitor.Stop()

	model := tui.New(tui.Deps{
		Orchestrator: a.orchestrator,
		Session:      a.session,
		Store:        a.store,
		Monitor:      a.monitor,
		Sessions:     a.sessions,
		Notify:       a.notify,
		MaxRecent:    a.settings.MaxRecent,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI failed: %w", err)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := buildApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	resp, err := a.orchestrator.RunTurn(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(resp.Content)

	a.sessions.Save(a.session.WorkingMemory(), a.settings.MaxRecent)
	return nil
}

func runMemoryStats(cmd *cobra.Command, args []string) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	facts, summaries, prefs := a.store.Counts()
	fmt.Printf("Facts:       %d\nSummaries:   %d\nPreferences: %d\n", facts, summaries, prefs)
	return nil
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	query := strings.Join(args, " ")
	results := a.store.SearchMemories(query, 10)
	fmt.Println(a.store.FormatSearchResults(query, results))
	return nil
}

func runSessions(cmd *cobra.Command, args []string) error {
	a, err := buildApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	names, err := a.sessions.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No saved sessions.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// notesTaskSink appends tasks to a markdown file in the data directory
func notesTaskSink(dataDir string) tools.TaskSink {
	return tools.TaskSinkFunc(func(ctx context.Context, task string) error {
		path := filepath.Join(dataDir, "tasks.md")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = fmt.Fprintf(f, "- [ ] %s\n", task)
		return err
	})
}

// captureScreen shells out to the platform screenshot tool and returns
// the image base64-encoded.
func captureScreen(ctx context.Context) (string, error) {
	tmp, err := os.CreateTemp("", "miniagent-screen-*.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to create capture file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	var capture *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		capture = exec.CommandContext(ctx, "screencapture", "-x", "-t", "jpg", path)
	case "linux":
		capture = exec.CommandContext(ctx, "import", "-window", "root", path)
	default:
		return "", fmt.Errorf("screen capture not supported on %s", runtime.GOOS)
	}
	if err := capture.Run(); err != nil {
		return "", fmt.Errorf("screenshot command failed: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read captured image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
