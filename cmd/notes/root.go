package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"memory-assistant/internal/app"
	"memory-assistant/internal/config"
)

const startupTimeout = 30 * time.Second

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Capture and review personal notes",
		Long: `notes signs in (anonymously, or with NOTES_AUTH_TOKEN as a fallback) and
works on your personal note collection. Configuration comes from the
environment or a .env file; use STORE_BACKEND=sqlite with IDENTITY_STATE_FILE
to keep notes between runs.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newDeleteCmd(opts),
		newWatchCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, err
	}
	if o.verbose {
		cfg.LogLevel = logrus.DebugLevel
	}
	// Keep stdout for command output.
	cfg.GinMode = "debug"
	app.ConfigureLogging(cfg)
	return cfg, nil
}

// openSession assembles and starts a session and waits for the first
// snapshot of the user's notes.
func (o *rootOptions) openSession(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := a.Session.Start(startCtx); err != nil {
		_ = a.Close()
		return nil, err
	}
	if _, err := a.Session.AwaitSync(startCtx); err != nil {
		_ = a.Close()
		return nil, errors.Wrap(err, "loading notes")
	}
	return a, nil
}
