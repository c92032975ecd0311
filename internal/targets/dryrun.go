package targets

import (
	"context"
	"log/slog"

	"github.com/sergeygrin4/fb-job-parser-service/internal/targets/miniapp"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

// DryRun logs the payload that would be sent and reports every post as accepted.
type DryRun struct {
	builder *miniapp.Target
	logger  *slog.Logger
}

func NewDryRun(source string, logger *slog.Logger) *DryRun {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRun{
		builder: miniapp.New(miniapp.Config{Source: source, Logger: logger}),
		logger:  logger,
	}
}

func (d *DryRun) Name() string {
	return "dry-run"
}

func (d *DryRun) Deliver(ctx context.Context, post types.Post) (types.DeliveryOutcome, error) {
	p := d.builder.BuildPayload(post)
	d.logger.Info("Dry run delivery",
		"external_id", p.ExternalID,
		"source_name", p.SourceName,
		"url", p.URL,
		"text_len", len(p.Text),
	)
	return types.OutcomeAccepted, nil
}
