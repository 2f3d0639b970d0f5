package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"memory-assistant/internal/session"
)

func newDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session.Delete(cmd.Context(), args[0]); err != nil {
				return errors.New(session.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note deleted: %s\n", args[0])
			return nil
		},
	}
}
