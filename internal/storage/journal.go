package storage

import (
	"context"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

// Journal records confirmed deliveries in a DeliveryStore.
type Journal struct {
	store      DeliveryStore
	externalID func(types.Post) string
	now        func() time.Time
}

func NewJournal(store DeliveryStore, externalID func(types.Post) string) *Journal {
	return &Journal{store: store, externalID: externalID, now: time.Now}
}

func (j *Journal) RecordDelivery(ctx context.Context, fingerprint string, post types.Post, outcome types.DeliveryOutcome) error {
	d := Delivery{
		Fingerprint:   fingerprint,
		SourceAddress: post.SourceAddress,
		SourceName:    post.SourceName,
		URL:           post.URL,
		Text:          post.Text,
		AuthorURL:     post.AuthorURL,
		Outcome:       outcome.String(),
		PostedAt:      post.CreatedAt,
		DeliveredAt:   j.now().UTC(),
	}
	if j.externalID != nil {
		d.ExternalID = j.externalID(post)
	}
	return j.store.Record(ctx, d)
}

// Fingerprints returns everything delivered within window, newest first.
func (j *Journal) Fingerprints(ctx context.Context, window time.Duration) ([]string, error) {
	return j.store.Fingerprints(ctx, j.now().Add(-window).UTC())
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	return j.store.ListRecent(ctx, limit)
}

func (j *Journal) Prune(ctx context.Context, age time.Duration) (int64, error) {
	return j.store.DeleteOlderThan(ctx, age)
}
