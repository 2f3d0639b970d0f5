package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"memory-assistant/internal/session"
)

func newAddCmd(root *rootOptions) *cobra.Command {
	var draft session.Draft

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a new note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			note, err := a.Session.SubmitDraft(cmd.Context(), &draft)
			if err != nil {
				return errors.New(session.UserMessage(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Note saved: %s\n", note.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&draft.Content, "content", "", "Note text")
	cmd.Flags().StringVar(&draft.Link, "link", "", "Optional link")
	return cmd
}
