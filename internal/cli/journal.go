package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sergeygrin4/fb-job-parser-service/internal/config"
	"github.com/sergeygrin4/fb-job-parser-service/internal/storage"
	_ "github.com/sergeygrin4/fb-job-parser-service/internal/storage/sqlite"
	"github.com/sergeygrin4/fb-job-parser-service/internal/targets/miniapp"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

func newDeliveriesCommand(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "deliveries",
		Short: "List recent deliveries from the journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJournal(cmd.Context(), opts, func(_ *config.Config, j *storage.Journal) error {
				recent, err := j.Recent(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("list deliveries: %w", err)
				}

				switch format {
				case "json":
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(recent)
				case "table", "":
					return printDeliveries(cmd.OutOrStdout(), recent)
				default:
					return fmt.Errorf("unknown format %q (want table or json)", format)
				}
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of deliveries to show")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	return cmd
}

func newPruneCommand(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal rows older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJournal(cmd.Context(), opts, func(cfg *config.Config, j *storage.Journal) error {
				age := olderThan
				if age == 0 {
					age = config.Duration(cfg.Storage.Retain)
				}
				removed, err := j.Prune(cmd.Context(), age)
				if err != nil {
					return fmt.Errorf("prune journal: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d deliveries older than %s\n", removed, age)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff (defaults to storage.retain)")
	return cmd
}

func withJournal(ctx context.Context, opts *rootOptions, fn func(*config.Config, *storage.Journal) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Storage.Path == "" {
		return &types.ConfigError{Field: "storage.path", Reason: "journal is disabled"}
	}

	store, err := storage.New(ctx, "sqlite", cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { _ = store.Close(ctx) }()

	return fn(cfg, storage.NewJournal(store.Deliveries(), miniapp.ExternalID))
}

func printDeliveries(w io.Writer, deliveries []storage.Delivery) error {
	if len(deliveries) == 0 {
		_, err := fmt.Fprintln(w, "No deliveries recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DELIVERED\tOUTCOME\tSOURCE\tURL\tTEXT")
	for _, d := range deliveries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.DeliveredAt.Local().Format("2006-01-02 15:04"),
			d.Outcome,
			d.SourceName,
			d.URL,
			preview(d.Text, 50),
		)
	}
	return tw.Flush()
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-1]) + "…"
}
