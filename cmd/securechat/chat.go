package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/securechat-client/internal/api"
	"github.com/vovakirdan/securechat-client/internal/chat"
	"github.com/vovakirdan/securechat-client/internal/config"
	"github.com/vovakirdan/securechat-client/internal/log"
	"github.com/vovakirdan/securechat-client/internal/stream"
)

var chatCmd = &cobra.Command{
	Use:   "chat <username>",
	Short: "Join the chat as the given user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		return runChat(cfg, logger, args[0])
	},
}

// setup resolves config (file, env, flag overrides) and builds the logger.
func setup() (config.Config, *zerolog.Logger, error) {
	bootstrap := log.New("warn", os.Stderr)
	cfg, _, err := config.Load(bootstrap, flagConfig)
	if err != nil {
		return cfg, nil, err
	}
	cfg.UpdateFrom(config.Config{APIBase: flagAPIBase, LogLevel: flagLogLevel})
	return cfg, log.New(cfg.LogLevel, os.Stderr), nil
}

func runChat(cfg config.Config, logger *zerolog.Logger, username string) error {
	apiClient := api.NewClient(cfg.APIBase, logger)
	streamClient := stream.NewClient(cfg.APIBase, cfg.StreamRetry, logger)

	v := &view{out: os.Stdout}
	session := chat.NewSession(streamClient.Open, apiClient, logger, chat.Options{
		WindowSize:        cfg.WindowSize,
		HeartbeatInterval: cfg.HeartbeatInterval,
		OnChange:          func() { v.refresh() },
	})
	v.session = session

	session.Activate(username)
	defer session.Close()

	fmt.Printf("Connected as %s. Type to chat; /who, /clear, /quit.\n", username)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "/quit":
			return nil
		case "/who":
			v.printPresence()
			continue
		case "/clear":
			session.ClearError()
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := session.Send(ctx, line)
		cancel()
		if err != nil {
			// Detail is already in the session's last error; just keep
			// the composer usable.
			fmt.Fprintln(os.Stderr, errStyle.Render("send failed: "+err.Error()))
		}
	}
	return scanner.Err()
}

var (
	authorStyle = lipgloss.NewStyle().Bold(true)
	mineStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	systemStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// view prints new messages and state transitions as the session changes.
// It renders deltas only, remembering the id of the last message it showed.
// Length is no cursor here: once the window is full, eviction keeps it at a
// constant size while new messages keep arriving.
type view struct {
	mu      sync.Mutex
	out     io.Writer
	session *chat.Session
	lastID  string
	status  chat.Status
	lastErr string
}

func (v *view) refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if st := v.session.Status(); st != v.status {
		v.status = st
		fmt.Fprintln(v.out, statusStyle.Render("· "+string(st)))
	}
	if errMsg := v.session.LastError(); errMsg != v.lastErr {
		v.lastErr = errMsg
		if errMsg != "" {
			fmt.Fprintln(v.out, errStyle.Render("! "+errMsg))
		}
	}

	msgs := v.session.Messages()
	// Everything after the last shown message is new. When that message is
	// gone (window reset, or evicted before we caught up) reprint the whole
	// window rather than dropping anything.
	start := 0
	if v.lastID != "" {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].ID == v.lastID {
				start = i + 1
				break
			}
		}
	}
	for _, m := range msgs[start:] {
		fmt.Fprintln(v.out, renderMessage(m))
	}
	if len(msgs) > 0 {
		v.lastID = msgs[len(msgs)-1].ID
	} else {
		v.lastID = ""
	}
}

func (v *view) printPresence() {
	v.mu.Lock()
	defer v.mu.Unlock()
	entries := v.session.Presence()
	if len(entries) == 0 {
		fmt.Fprintln(v.out, systemStyle.Render("nobody around yet"))
		return
	}
	for _, e := range entries {
		fmt.Fprintf(v.out, "%s  last seen %s\n", authorStyle.Render(e.Name), clockTime(e.LastSeen))
	}
}

func renderMessage(m chat.Message) string {
	if m.Kind == chat.KindSystem {
		return systemStyle.Render(fmt.Sprintf("%s %s", clockTime(m.OccurredAt), m.Content))
	}
	style := authorStyle
	if m.Mine {
		style = mineStyle
	}
	return fmt.Sprintf("%s %s %s", clockTime(m.OccurredAt), style.Render(m.Author+":"), m.Content)
}

// clockTime shortens an ISO timestamp for display, falling back to the raw
// value when it does not parse.
func clockTime(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.Local().Format("15:04")
}
