package storage

import (
	"context"
	"time"
)

type Storage interface {
	Deliveries() DeliveryStore
	Close(ctx context.Context) error
}

// Delivery is one post the downstream API confirmed, either as new or as a duplicate.
type Delivery struct {
	Fingerprint   string    `json:"fingerprint"`
	ExternalID    string    `json:"external_id"`
	SourceAddress string    `json:"source_address"`
	SourceName    string    `json:"source_name"`
	URL           string    `json:"url"`
	Text          string    `json:"text"`
	AuthorURL     string    `json:"author_url,omitempty"`
	Outcome       string    `json:"outcome"`
	PostedAt      time.Time `json:"posted_at"`
	DeliveredAt   time.Time `json:"delivered_at"`
}

type DeliveryStore interface {
	Record(ctx context.Context, d Delivery) error
	Fingerprints(ctx context.Context, since time.Time) ([]string, error)
	ListRecent(ctx context.Context, limit int) ([]Delivery, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
