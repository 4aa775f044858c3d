package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrshanahan/notetaker/internal/config"
	"github.com/mrshanahan/notetaker/internal/printer"
	"github.com/mrshanahan/notetaker/internal/tui"
)

func newTUICommand(opts *rootOptions) *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive notes UI",
		Long: `Open a terminal UI with a note form above the live list of notes.

  enter    save the form (or, in the list, edit the highlighted note)
  tab      switch between the form and the list
  d        delete the highlighted note
  esc      stop editing
  ctrl+r   reload from the gateway
  ctrl+c   quit

Changing token or user in the config file while the UI is open reconnects
under the new identity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := opts.newClient()
			if err != nil {
				return err
			}
			err = tui.Run(cmd.Context(), tui.Options{
				Client:     c,
				Config:     cfg,
				ConfigPath: opts.configPath,
				LogPath:    logPath,
			})
			if err != nil {
				return reportError("run the UI", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logPath, "log", tui.DefaultLogPath(), "File receiving log output while the UI runs")
	return cmd
}

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var token, user string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the credentials used to talk to the gateway",
		Long: `Store an access token (and optionally a user name for gateways running
without authentication) in the config file. A running "notes tui" picks up
the change and reconnects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Read(opts.configPath)
			if err != nil {
				return configError(opts.configPath, err)
			}
			cfg.Token = token
			if cmd.Flags().Changed("user") {
				cfg.User = user
			}
			if opts.serverURL != "" {
				cfg.ServerURL = opts.serverURL
			}
			if err := cfg.Validate(); err != nil {
				return configError(opts.configPath, err)
			}
			if err := cfg.Save(opts.configPath); err != nil {
				return printer.Error("could not save credentials", err.Error(), nil)
			}
			printer.Success("saved credentials to %s\n", opts.configPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Access token issued by the identity provider")
	cmd.Flags().StringVar(&user, "user", "", "User name sent when the gateway has authentication disabled")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printer.Info("notes %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
