package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mrshanahan/notetaker/internal/config"
	"github.com/mrshanahan/notetaker/pkg/client"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo is called from main with values stamped at build time.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

type rootOptions struct {
	configPath string
	serverURL  string
	verbose    bool
}

// NewRootCommand builds the notes command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Keep notes in sync with a notes gateway",
		Long: `notes talks to a notes gateway: it lists, adds, edits and removes notes,
streams changes made elsewhere as they happen, and offers an interactive
terminal UI that stays live with every other client of the same user.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to the client config file")
	cmd.PersistentFlags().StringVarP(&opts.serverURL, "server", "s", "", "Gateway URL (overrides server_url from the config file)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(
		newListCommand(opts),
		newAddCommand(opts),
		newEditCommand(opts),
		newRemoveCommand(opts),
		newWatchCommand(opts),
		newTUICommand(opts),
		newLoginCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// Execute runs the command tree against os.Args. Errors have already been
// printed by the time it returns.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, configError(o.configPath, err)
	}
	if o.serverURL != "" {
		cfg.ServerURL = o.serverURL
		if err := cfg.Validate(); err != nil {
			return nil, configError(o.configPath, err)
		}
	}
	return cfg, nil
}

func (o *rootOptions) newClient() (*client.Client, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	c := client.NewClient(cfg.ServerURL)
	c.SetIdentity(cfg.Token, cfg.User)
	slog.Debug("using gateway", "url", cfg.ServerURL, "user", cfg.User, "token", cfg.Token != "")
	return c, cfg, nil
}
