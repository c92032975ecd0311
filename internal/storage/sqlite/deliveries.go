package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/storage"
)

type deliveryStore struct {
	db *sql.DB
}

func newDeliveryStore(db *sql.DB) storage.DeliveryStore {
	return &deliveryStore{db: db}
}

func (s *deliveryStore) Record(ctx context.Context, d storage.Delivery) error {
	query := `
		INSERT INTO deliveries (fingerprint, external_id, source_address, source_name, url, text, author_url, outcome, posted_at, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`

	postedAt := sql.NullTime{Valid: !d.PostedAt.IsZero(), Time: d.PostedAt.UTC()}
	deliveredAt := d.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		d.Fingerprint, d.ExternalID, d.SourceAddress, d.SourceName, d.URL, d.Text, d.AuthorURL,
		d.Outcome, postedAt, deliveredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return nil
}

func (s *deliveryStore) Fingerprints(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint FROM deliveries WHERE delivered_at >= ? ORDER BY delivered_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	fps := make([]string, 0)
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}

func (s *deliveryStore) ListRecent(ctx context.Context, limit int) ([]storage.Delivery, error) {
	query := `
		SELECT fingerprint, external_id, source_address, source_name, url, text, author_url, outcome, posted_at, delivered_at
		FROM deliveries
		ORDER BY delivered_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]storage.Delivery, 0, limit)
	for rows.Next() {
		var d storage.Delivery
		var postedAt sql.NullTime

		err := rows.Scan(
			&d.Fingerprint,
			&d.ExternalID,
			&d.SourceAddress,
			&d.SourceName,
			&d.URL,
			&d.Text,
			&d.AuthorURL,
			&d.Outcome,
			&postedAt,
			&d.DeliveredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		if postedAt.Valid {
			d.PostedAt = postedAt.Time
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return deliveries, nil
}

func (s *deliveryStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).UTC()

	result, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE delivered_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old deliveries: %w", err)
	}
	return result.RowsAffected()
}
