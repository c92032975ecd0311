package components

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sergeygrin4/fb-job-parser-service/internal/server/status"
)

type ServerConfig struct {
	Name     string
	Addr     string
	FeedSize int
}

// ServerComponent runs the status server. When a storage component is attached the
// server also publishes the delivery feed.
type ServerComponent struct {
	config   ServerConfig
	cycles   status.CycleReporter
	gatherer prometheus.Gatherer
	storage  *StorageComponent
	server   *status.Server
	logger   *slog.Logger
}

func NewServerComponent(cfg ServerConfig, cycles status.CycleReporter, gatherer prometheus.Gatherer, storage *StorageComponent, logger *slog.Logger) *ServerComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServerComponent{
		config:   cfg,
		cycles:   cycles,
		gatherer: gatherer,
		storage:  storage,
		logger:   logger,
	}
}

func (c *ServerComponent) Name() string {
	return ServerComponentName
}

func (c *ServerComponent) Dependencies() []string {
	if c.storage != nil {
		return []string{StorageComponentName}
	}
	return []string{}
}

func (c *ServerComponent) Validate() error {
	if c.config.Addr == "" {
		return fmt.Errorf("server: listen address is required")
	}
	if c.cycles == nil {
		return fmt.Errorf("server: cycle reporter is required")
	}
	return nil
}

func (c *ServerComponent) Initialize(ctx context.Context) error {
	var deliveries status.DeliveryLister
	if c.storage != nil && c.storage.Journal() != nil {
		deliveries = c.storage.Journal()
	}

	c.server = status.New(status.Config{
		Name:     c.config.Name,
		Addr:     c.config.Addr,
		FeedSize: c.config.FeedSize,
		Logger:   c.logger,
	}, c.cycles, deliveries, c.gatherer)

	if err := c.server.Start(ctx); err != nil {
		return fmt.Errorf("server: failed to start status server: %w", err)
	}
	return nil
}

func (c *ServerComponent) Close(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

func (c *ServerComponent) Server() *status.Server {
	return c.server
}
