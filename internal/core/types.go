package core

import (
	"context"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

type SourceLister interface {
	ListSources(ctx context.Context) ([]types.Source, error)
}

type CredentialSource interface {
	Current(ctx context.Context) types.Credentials
}

type Normalizer interface {
	Normalize(raw types.RawItem, src types.Source) (types.Post, bool)
}

type RelevanceChecker interface {
	Check(post types.Post) error
}

type Target interface {
	Name() string
	Deliver(ctx context.Context, post types.Post) (types.DeliveryOutcome, error)
}

type Reporter interface {
	Liveness(ctx context.Context, at time.Time)
	Alert(ctx context.Context, text string)
}

// Journal keeps an audit trail of confirmed deliveries.
type Journal interface {
	RecordDelivery(ctx context.Context, fingerprint string, post types.Post, outcome types.DeliveryOutcome) error
}

type nopReporter struct{}

func (nopReporter) Liveness(context.Context, time.Time) {}

func (nopReporter) Alert(context.Context, string) {}
