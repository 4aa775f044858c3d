package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mrshanahan/notetaker/internal/printer"
	"github.com/mrshanahan/notetaker/pkg/notes"
	"github.com/mrshanahan/notetaker/pkg/reconcile"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var showList bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print notes as they are created, updated and deleted",
		Long: `Subscribe to the gateway's notification streams and print every change
made to this user's notes, by this or any other client. Dropped streams are
reconnected automatically. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := opts.newClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			gw := reconcile.Remote(c)
			store := reconcile.NewStore(gw)
			session := reconcile.NewSession(gw, store)
			defer session.Close()

			var fatal error
			session.OnError = func(err error) {
				if errors.Is(err, notes.ErrUnauthorized) {
					fatal = err
					return
				}
				printer.Warning("stream interrupted: %v\n", err)
			}
			unsubscribe := store.Subscribe(func(ch reconcile.Change) {
				printChange(ch, showList)
			})
			defer unsubscribe()

			if err := session.Start(ctx, cfg.User); err != nil {
				return reportError("subscribe", err)
			}
			slog.Debug("watching", "owner", cfg.User)

			select {
			case <-ctx.Done():
				return nil
			case <-session.Done():
				if fatal != nil {
					return reportError("subscribe", fatal)
				}
				return printer.Error("stopped watching", "The notification streams could not be re-established.", nil)
			}
		},
	}
	cmd.Flags().BoolVarP(&showList, "list", "l", false, "Print the full list whenever it is (re)loaded")
	return cmd
}

func printChange(ch reconcile.Change, showList bool) {
	switch ch.Kind {
	case reconcile.ChangeLoaded:
		printer.Step("synced %d notes\n", len(ch.Notes))
		if showList {
			for _, n := range ch.Notes {
				printer.Note(n)
			}
		}
	case reconcile.ChangeDeleted:
		printer.Event(notes.DeletedEvent("", ch.ID))
	case reconcile.ChangeCreated, reconcile.ChangeUpdated:
		for i := range ch.Notes {
			if ch.Notes[i].ID != ch.ID {
				continue
			}
			kind := notes.EventCreated
			if ch.Kind == reconcile.ChangeUpdated {
				kind = notes.EventUpdated
			}
			printer.Event(notes.Event{Kind: kind, ID: ch.ID, Note: &ch.Notes[i]})
			return
		}
	}
}
