// Package app wires the rostersync CLI: configuration loading, logger
// setup, and the command tree. Dependencies are constructed per invocation
// and passed down explicitly.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rosterlab/rostersync/internal/config"
	"github.com/rosterlab/rostersync/pkg/logging"
)

// App carries the per-invocation state shared by the commands.
type App struct {
	version string
	commit  string

	configFile string
	config     *config.Config
}

// Execute runs the CLI with the given arguments.
func Execute(ctx context.Context, version, commit string, args []string) error {
	a := &App{version: version, commit: commit}

	root := a.rootCommand()
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

const rootDescription = `rostersync keeps a downstream learning platform in agreement with the
authoritative student information system: student and staff accounts,
classrooms, and classroom enrollment.`

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rostersync",
		Short:         "Reconcile the school roster with the learning platform",
		Long:          rootDescription,
		Version:       fmt.Sprintf("%s (commit %s)", a.version, a.commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configFile)
			if err != nil {
				return err
			}
			a.config = cfg

			logger := logging.NewConsole()
			if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
				logger = logger.Level(level)
			}
			logging.SetDefault(logger)
			cmd.SetContext(logging.WithLogger(cmd.Context(), &logger))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a YAML config file")

	root.AddCommand(a.syncCommand())
	root.AddCommand(a.checkBatchCommand())
	return root
}
