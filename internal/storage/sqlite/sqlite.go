package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/sergeygrin4/fb-job-parser-service/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	storage.RegisterFactory("sqlite", func(ctx context.Context, path string) (storage.Storage, error) {
		return New(ctx, path)
	})
}

type SQLiteStorage struct {
	conn       *sql.DB
	deliveries storage.DeliveryStore
}

func New(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	slog.Info("Initializing SQLite storage", "path", dbPath)

	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_busy_timeout=5000", dbPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &SQLiteStorage{
		conn:       conn,
		deliveries: newDeliveryStore(conn),
	}, nil
}

func runMigrations(conn *sql.DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Debug("Migrations completed successfully")
	return nil
}

func (s *SQLiteStorage) Deliveries() storage.DeliveryStore {
	return s.deliveries
}

func (s *SQLiteStorage) Close(ctx context.Context) error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
