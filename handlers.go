package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"agentrelay/config"
	"agentrelay/mcp"
	"agentrelay/metrics"
	"agentrelay/model"
	"agentrelay/provider"
	"agentrelay/server"
	"agentrelay/storage"
	"agentrelay/stream"
	"agentrelay/tools"
	"agentrelay/ui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	config.InitLogging(cfg.DataDir())
	for _, key := range cfg.UnknownKeys() {
		config.Log.Warn().Str("key", key).Msg("ignoring unknown config key")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.Default()

	store, err := storage.NewSessionStore(cfg.DataDir())
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	cache := mcp.NewConnectionCache(mcp.NewHTTPDialer(), cfg.MCP.CacheTTL, mcp.WithMetrics(m))
	defer cache.Close()

	providers := provider.InitializeProviders(cfg)
	if len(providers) == 0 {
		config.Log.Warn().Msg("no provider could be initialized; chat requests will fail until the configuration is fixed")
	}

	srv := server.New(server.Options{
		Config:     cfg,
		Providers:  providers,
		LocalTools: tools.Builtins(nil),
		Servers:    mcp.ServersFromConfig(cfg),
		Connector:  cache,
		Store:      store,
		Metrics:    m,
	})
	return srv.ListenAndServe(ctx)
}

func runChat(ctx context.Context, configPath string, flags chatFlags, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	serverURL := cfg.Client.ServerURL
	if flags.serverURL != "" {
		serverURL = flags.serverURL
	}
	client := stream.NewClient(serverURL)
	client.OpenTimeout = cfg.Client.OpenTimeout

	if prompt := strings.TrimSpace(strings.Join(args, " ")); prompt != "" {
		config.InitLogging(cfg.DataDir())
		req := stream.ChatRequest{
			Model:     flags.model,
			Tools:     flags.tools,
			Stream:    !flags.buffered,
			SessionID: flags.sessionID,
		}
		return chatOnce(ctx, client, req, prompt, stdout, stderr)
	}

	// The alternate screen owns the terminal, so logs go to a file.
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir(), "client.log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open client log: %w", err)
	}
	defer logFile.Close()
	level := zerolog.InfoLevel
	if config.CheckDebug() {
		level = zerolog.DebugLevel
	}
	config.SetLogWriter(logFile, level)

	view := ui.NewChatView(client, ui.ChatOptions{
		Model:     flags.model,
		SessionID: flags.sessionID,
		Tools:     flags.tools,
		Buffered:  flags.buffered,
		Keys:      cfg.KeyBindings,
	})
	p := tea.NewProgram(view, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat client failed: %w", err)
	}
	if v, ok := final.(ui.ChatView); ok {
		fmt.Fprintf(stdout, "session %s\n", v.SessionID())
	}
	return nil
}

// chatOnce sends one prompt and writes the answer to stdout. Reasoning, tool
// activity and errors go to stderr.
func chatOnce(ctx context.Context, client *stream.Client, req stream.ChatRequest, prompt string, stdout, stderr io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	req.Messages = append(req.Messages, model.NewMessage(model.RoleUser, prompt))

	var failed bool
	err := client.Stream(ctx, req, func(ev stream.Event) {
		switch ev := ev.(type) {
		case stream.AnswerEvent:
			fmt.Fprint(stdout, ev.Text)
		case stream.ReasoningEvent:
			fmt.Fprint(stderr, ev.Text)
		case stream.ToolParamsEvent:
			fmt.Fprintf(stderr, "\n→ %s %v\n", ev.ToolName, ev.Params)
		case stream.ToolResponseEvent:
			fmt.Fprintf(stderr, "← %s\n", ev.ToolName)
		case stream.ErrorEvent:
			failed = ev.Code != stream.CodeMaxIterations
			fmt.Fprintf(stderr, "\nerror: %s: %s\n", ev.Code, ev.Message)
		case stream.DoneEvent:
			fmt.Fprintln(stdout)
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	if failed {
		return errors.New("the run ended with an error")
	}
	return nil
}

func runTools(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	config.InitLogging(cfg.DataDir())

	cache := mcp.NewConnectionCache(mcp.NewHTTPDialer(), cfg.MCP.CacheTTL)
	defer cache.Close()

	registry := tools.Build(ctx, tools.Builtins(nil), mcp.ServersFromConfig(cfg), cache)
	return writeTools(out, registry)
}

func writeTools(out io.Writer, registry *tools.Registry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tORIGIN\tDESCRIPTION")
	for _, def := range registry.Definitions() {
		origin := string(def.Origin)
		if def.Server != "" {
			origin += " (" + def.Server + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, origin, firstLine(def.Description))
	}
	return w.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
