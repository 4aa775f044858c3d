package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrshanahan/notetaker/internal/printer"
	"github.com/mrshanahan/notetaker/pkg/notes"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notes, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.newClient()
			if err != nil {
				return err
			}
			list, err := c.ListNotes(cmd.Context())
			if err != nil {
				return reportError("list notes", err)
			}
			if asJSON {
				enc := json.NewEncoder(printer.Stdout)
				enc.SetIndent("", "  ")
				if list == nil {
					list = []*notes.Note{}
				}
				return enc.Encode(list)
			}
			if len(list) == 0 {
				printer.Info("no notes\n")
				return nil
			}
			for _, n := range list {
				printer.Note(*n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print notes as JSON")
	return cmd
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add TEXT...",
		Short: "Create a note",
		Example: `  notes add buy milk
  notes add "call the plumber about the sink"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if err := notes.ValidateText(text); err != nil {
				return reportError("create a note", err)
			}
			c, _, err := opts.newClient()
			if err != nil {
				return err
			}
			n, err := c.CreateNote(cmd.Context(), text)
			if err != nil {
				return reportError("create a note", err)
			}
			printer.Success("created %s\n", n.ID)
			return nil
		},
	}
}

func newEditCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit ID TEXT...",
		Short: "Replace the text of a note",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text := args[0], strings.Join(args[1:], " ")
			if err := notes.ValidateText(text); err != nil {
				return reportError("update the note", err)
			}
			c, _, err := opts.newClient()
			if err != nil {
				return err
			}
			n, err := c.UpdateNote(cmd.Context(), id, text)
			if err != nil {
				return reportError("update the note", err)
			}
			printer.Success("updated %s\n", n.ID)
			return nil
		},
	}
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID...",
		Aliases: []string{"delete"},
		Short:   "Delete notes",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := opts.newClient()
			if err != nil {
				return err
			}
			for _, id := range args {
				if _, err := c.DeleteNote(cmd.Context(), id); err != nil {
					return reportError("delete "+id, err)
				}
				printer.Success("deleted %s\n", id)
			}
			return nil
		},
	}
}
