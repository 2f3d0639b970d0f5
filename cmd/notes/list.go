package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"memory-assistant/internal/model"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var asJSON, asYAML bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON && asYAML {
				return errors.New("--json and --yaml are mutually exclusive")
			}
			a, err := root.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			format := "text"
			switch {
			case asJSON:
				format = "json"
			case asYAML:
				format = "yaml"
			}
			return writeNotes(cmd.OutOrStdout(), a.Session.View().Notes, format)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Output in YAML format")
	return cmd
}

func writeNotes(w io.Writer, notes []model.Note, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(notes)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(notes); err != nil {
			return err
		}
		return encoder.Close()
	}

	if len(notes) == 0 {
		_, err := fmt.Fprintln(w, "No notes yet.")
		return err
	}
	for _, n := range notes {
		if _, err := fmt.Fprintf(w, "%s  %s  %s\n", n.ID, displayTime(n.CreatedAt), n.Content); err != nil {
			return err
		}
		if n.Link != "" {
			if _, err := fmt.Fprintf(w, "    %s\n", n.Link); err != nil {
				return err
			}
		}
	}
	return nil
}

func displayTime(raw string) string {
	t, ok := model.ParseTimestamp(raw)
	if !ok {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
