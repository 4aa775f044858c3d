package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mrshanahan/notetaker/internal/config"
	"github.com/mrshanahan/notetaker/pkg/client"
	"github.com/mrshanahan/notetaker/pkg/reconcile"
)

type Options struct {
	Client     *client.Client
	Config     *config.Config
	ConfigPath string
	// LogPath receives slog output while the program owns the terminal.
	LogPath string
}

// DefaultLogPath is ~/.notes/notes-tui.log.
func DefaultLogPath() string {
	return filepath.Join(filepath.Dir(config.DefaultPath()), "notes-tui.log")
}

// Run shows the notes UI until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	if opts.LogPath != "" {
		restore, err := logToFile(opts.LogPath)
		if err != nil {
			return err
		}
		defer restore()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gw := reconcile.Remote(opts.Client)
	store := reconcile.NewStore(gw)
	ctrl := reconcile.NewController(store, gw)
	defer ctrl.Close()
	session := reconcile.NewSession(gw, store)
	defer session.Close()

	m := newModel(ctx, store, ctrl, session, opts.Config.User)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := store.Subscribe(func(c reconcile.Change) {
		p.Send(storeChangedMsg{change: c})
	})
	defer unsubscribe()
	session.OnError = func(err error) {
		p.Send(sessionErrMsg{err: err})
	}

	if opts.ConfigPath != "" {
		current := *opts.Config
		err := config.Watch(ctx, opts.ConfigPath, func(next *config.Config) {
			if current.SameIdentity(next) {
				return
			}
			if next.ServerURL != current.ServerURL {
				p.Send(noticeMsg("server_url changed; restart to use " + next.ServerURL))
				return
			}
			current = *next
			opts.Client.SetIdentity(next.Token, next.User)
			p.Send(identityMsg{owner: next.User})
		})
		if err != nil {
			slog.Warn("not watching config file", "path", opts.ConfigPath, "err", err)
		}
	}

	_, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}

func logToFile(path string) (restore func(), err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return func() {
		slog.SetDefault(prev)
		f.Close()
	}, nil
}
