package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/config"
	"github.com/sergeygrin4/fb-job-parser-service/internal/loader"
)

const shutdownTimeout = 30 * time.Second

func runService(ctx context.Context, opts *rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.once {
		cfg.Bot.RunOnce = true
	}
	if opts.dryRun {
		cfg.Bot.DryRun = true
	}

	logger := newLogger(cfg.Log)
	logger.Info("Configuration loaded", "path", opts.configPath, "fetcher", cfg.Fetcher.Type,
		"interval", cfg.Bot.Interval, "keywords", len(cfg.Filters.Keywords), "dry_run", cfg.Bot.DryRun)

	st, err := loader.NewLoader(cfg, logger).Initialize(ctx)
	if err != nil {
		return err
	}

	bot := st.Bot
	logger.Info("Starting bot", "bot", bot.Name(), "run_once", cfg.Bot.RunOnce)

	errChan := make(chan error, 1)
	go func() {
		errChan <- bot.Start(ctx)
	}()

	var runErr error
	select {
	case runErr = <-errChan:
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
	case <-ctx.Done():
		logger.Info("Initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := bot.Stop(shutdownCtx); err != nil {
		return errors.Join(runErr, fmt.Errorf("shutdown error: %w", err))
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("Bot stopped successfully")
	return nil
}
