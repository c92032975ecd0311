package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/storage"
	_ "github.com/sergeygrin4/fb-job-parser-service/internal/storage/sqlite"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

type StorageConfig struct {
	Path       string
	Retain     time.Duration
	ExternalID func(types.Post) string
	Logger     *slog.Logger
}

// StorageComponent opens the delivery journal and prunes rows past retention on start.
type StorageComponent struct {
	config  StorageConfig
	store   storage.Storage
	journal *storage.Journal
	logger  *slog.Logger
}

func NewStorageComponent(cfg StorageConfig) *StorageComponent {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StorageComponent{config: cfg, logger: cfg.Logger}
}

func (c *StorageComponent) Name() string {
	return StorageComponentName
}

func (c *StorageComponent) Dependencies() []string {
	return []string{}
}

func (c *StorageComponent) Validate() error {
	if c.config.Path == "" {
		return fmt.Errorf("storage: database path is required")
	}
	return nil
}

func (c *StorageComponent) Initialize(ctx context.Context) error {
	store, err := storage.New(ctx, "sqlite", c.config.Path)
	if err != nil {
		return fmt.Errorf("storage: failed to initialize store: %w", err)
	}

	c.store = store
	c.journal = storage.NewJournal(store.Deliveries(), c.config.ExternalID)

	if c.config.Retain > 0 {
		removed, err := c.journal.Prune(ctx, c.config.Retain)
		if err != nil {
			c.logger.Warn("Failed to prune delivery journal", "error", err)
		} else if removed > 0 {
			c.logger.Info("Pruned delivery journal", "removed", removed, "retain", c.config.Retain)
		}
	}
	return nil
}

func (c *StorageComponent) Close(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Close(ctx)
}

func (c *StorageComponent) Journal() *storage.Journal {
	return c.journal
}
