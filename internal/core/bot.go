package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

// Cycler is the unit of work the Bot schedules.
type Cycler interface {
	Initialize(ctx context.Context) error
	RunCycle(ctx context.Context) types.CycleResult
	Shutdown(ctx context.Context) error
}

type Bot struct {
	name       string
	pipeline   Cycler
	interval   time.Duration
	runOnce    bool
	logger     *slog.Logger
	mu         sync.RWMutex
	running    bool
	stopOnce   sync.Once
	doneOnce   sync.Once
	stopCh     chan struct{}
	done       chan struct{}
	shutdownFn func() error
}

type BotConfig struct {
	Name       string
	Pipeline   Cycler
	Interval   time.Duration
	RunOnce    bool
	Logger     *slog.Logger
	ShutdownFn func() error
}

func NewBot(config BotConfig) *Bot {
	if config.Interval == 0 {
		config.Interval = 5 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Bot{
		name:       config.Name,
		pipeline:   config.Pipeline,
		interval:   config.Interval,
		runOnce:    config.RunOnce,
		logger:     config.Logger,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		shutdownFn: config.ShutdownFn,
	}
}

// Start initializes the pipeline and runs cycles until ctx is canceled or Stop is
// called. In run-once mode it returns after a single cycle.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return fmt.Errorf("bot already running")
	}
	b.running = true
	b.mu.Unlock()
	defer b.markStopped()

	if err := b.pipeline.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if b.runOnce {
		b.pipeline.RunCycle(ctx)
		return nil
	}

	return b.runContinuousMode(ctx)
}

// runContinuousMode waits a full interval after each cycle finishes, so cycles never
// overlap however long one takes.
func (b *Bot) runContinuousMode(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.stopCh:
			return nil
		case <-timer.C:
		}

		result := b.pipeline.RunCycle(ctx)
		b.logger.Debug("Next cycle scheduled", "bot", b.name, "in", b.interval, "last_cycle", result.ID)
		timer.Reset(b.interval)
	}
}

// Stop ends the loop, waits for an in-flight cycle to finish or ctx to expire, then
// releases pipeline resources.
func (b *Bot) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() { close(b.stopCh) })

	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()

	if running {
		select {
		case <-b.done:
		case <-ctx.Done():
			b.logger.Warn("Timed out waiting for cycle to finish", "bot", b.name)
		}
	}

	var errs []error
	if err := b.pipeline.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pipeline shutdown failed: %w", err))
	}
	if b.shutdownFn != nil {
		if err := b.shutdownFn(); err != nil {
			errs = append(errs, fmt.Errorf("custom shutdown failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *Bot) Name() string {
	return b.name
}

func (b *Bot) markStopped() {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
	b.doneOnce.Do(func() { close(b.done) })
}
