// Package cli provides the command-line interface for fbparser.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sergeygrin4/fb-job-parser-service/internal/config"
)

// Version is set via ldflags at build time.
var Version = "dev"

type rootOptions struct {
	configPath string
	once       bool
	dryRun     bool
}

// NewRootCommand builds the command tree. Running the root command starts the
// polling service.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "fbparser",
		Short:         "Forward job posts from Facebook groups to the jobs API",
		Long:          "fbparser polls the configured groups, keeps posts that look like job offers and delivers each one to the mini-app API exactly once per process.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to TOML config (environment overrides always apply)")
	root.Flags().BoolVar(&opts.once, "once", false, "run a single cycle and exit")
	root.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log posts instead of delivering them")

	root.AddCommand(
		newDeliveriesCommand(opts),
		newPruneCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line against os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fbparser %s\n", Version)
		},
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
