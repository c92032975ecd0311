package platforms

import (
	"context"
	"log/slog"
	"time"
)

type Alerter interface {
	Name() string
	Alert(ctx context.Context, text string) error
}

type ReporterConfig struct {
	API         *APIPlatform
	StatusKey   string
	AlertSource string
	Mirrors     []Alerter
	Logger      *slog.Logger
}

// Reporter publishes liveness and operator alerts. Every call is best-effort:
// failures are logged and never returned.
type Reporter struct {
	api         *APIPlatform
	statusKey   string
	alertSource string
	mirrors     []Alerter
	logger      *slog.Logger
}

func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reporter{
		api:         cfg.API,
		statusKey:   cfg.StatusKey,
		alertSource: cfg.AlertSource,
		mirrors:     cfg.Mirrors,
		logger:      cfg.Logger,
	}
}

func (r *Reporter) Liveness(ctx context.Context, at time.Time) {
	if r.api == nil {
		return
	}
	value := at.UTC().Format(time.RFC3339)
	if err := r.api.PostStatus(ctx, r.statusKey, value); err != nil {
		r.logger.Warn("Failed to report liveness", "key", r.statusKey, "error", err)
		return
	}
	r.logger.Debug("Liveness reported", "key", r.statusKey, "value", value)
}

func (r *Reporter) Alert(ctx context.Context, text string) {
	if r.api != nil {
		if err := r.api.PostAlert(ctx, text, r.alertSource); err != nil {
			r.logger.Warn("Failed to send alert", "error", err)
		}
	}
	for _, m := range r.mirrors {
		if err := m.Alert(ctx, text); err != nil {
			r.logger.Warn("Failed to mirror alert", "mirror", m.Name(), "error", err)
		}
	}
}
