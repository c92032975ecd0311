package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/sergeygrin4/fb-job-parser-service/internal/config"
	"github.com/sergeygrin4/fb-job-parser-service/internal/platforms"
)

// PlatformComponent builds the optional alert mirrors declared under [platforms].
type PlatformComponent struct {
	config   map[string]config.PlatformConfig
	discords []*platforms.DiscordPlatform
	alerters []platforms.Alerter
	logger   *slog.Logger
}

func NewPlatformComponent(cfg map[string]config.PlatformConfig, logger *slog.Logger) *PlatformComponent {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlatformComponent{config: cfg, logger: logger}
}

func (c *PlatformComponent) Name() string {
	return PlatformComponentName
}

func (c *PlatformComponent) Dependencies() []string {
	return []string{}
}

func (c *PlatformComponent) Validate() error {
	for name, cfg := range c.config {
		if !cfg.Enabled {
			continue
		}
		kind := cfg.Type
		if kind == "" {
			kind = name
		}
		if kind != "discord" {
			return fmt.Errorf("platforms: unsupported platform type %q for %s", kind, name)
		}
	}
	return nil
}

func (c *PlatformComponent) Initialize(ctx context.Context) error {
	names := make([]string, 0, len(c.config))
	for name := range c.config {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := c.config[name]
		if !cfg.Enabled {
			continue
		}

		discord, err := platforms.NewDiscordPlatform(platforms.DiscordConfig{
			BotToken:  config.GetString(cfg.Settings, "bot_token", ""),
			ChannelID: config.GetString(cfg.Settings, "channel_id", ""),
			Sleep:     config.Duration(cfg.Sleep),
		})
		if err != nil {
			return fmt.Errorf("failed to create discord platform %s: %w", name, err)
		}
		if err := discord.Initialize(ctx); err != nil {
			return fmt.Errorf("discord platform %s initialization failed: %w", name, err)
		}

		c.discords = append(c.discords, discord)
		c.alerters = append(c.alerters, discord)
		c.logger.Info("Alert mirror enabled", "platform", name)
	}
	return nil
}

func (c *PlatformComponent) Close(ctx context.Context) error {
	var errs []error
	for _, d := range c.discords {
		if err := d.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *PlatformComponent) Alerters() []platforms.Alerter {
	return c.alerters
}
