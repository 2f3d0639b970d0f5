package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"memory-assistant/internal/session"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the note list every time it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := root.openSession(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			render := func(v session.View) {
				fmt.Fprintf(out, "--- %d note(s)\n", len(v.Notes))
				if v.FeedError != "" {
					fmt.Fprintln(out, v.FeedError)
				}
				_ = writeNotes(out, v.Notes, "text")
			}

			views := make(chan session.View, 1)
			unsubscribe := a.Session.OnChange(func(v session.View) {
				select {
				case views <- v:
				default:
					// Drop the stale pending view in favour of this one.
					select {
					case <-views:
					default:
					}
					views <- v
				}
			})
			defer unsubscribe()

			render(a.Session.View())
			for {
				select {
				case <-ctx.Done():
					return nil
				case v := <-views:
					render(v)
				}
			}
		},
	}
}
