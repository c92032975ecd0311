package loader

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/components"
	"github.com/sergeygrin4/fb-job-parser-service/internal/config"
	"github.com/sergeygrin4/fb-job-parser-service/internal/core"
	"github.com/sergeygrin4/fb-job-parser-service/internal/credentials"
	"github.com/sergeygrin4/fb-job-parser-service/internal/metrics"
	"github.com/sergeygrin4/fb-job-parser-service/internal/platforms"
	"github.com/sergeygrin4/fb-job-parser-service/internal/processors"
	"github.com/sergeygrin4/fb-job-parser-service/internal/processors/filters"
	"github.com/sergeygrin4/fb-job-parser-service/internal/sources"
	"github.com/sergeygrin4/fb-job-parser-service/internal/sources/actor"
	"github.com/sergeygrin4/fb-job-parser-service/internal/sources/feed"
	"github.com/sergeygrin4/fb-job-parser-service/internal/sources/script"
	"github.com/sergeygrin4/fb-job-parser-service/internal/state"
	"github.com/sergeygrin4/fb-job-parser-service/internal/targets"
	"github.com/sergeygrin4/fb-job-parser-service/internal/targets/miniapp"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

const shutdownTimeout = 30 * time.Second

type Loader struct {
	config *config.Config
	logger *slog.Logger
	client *http.Client
}

func NewLoader(cfg *config.Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		config: cfg,
		logger: logger,
		client: &http.Client{},
	}
}

// Initialize brings up the components, assembles the pipeline around them and
// returns the state with a bot ready to start. Components that were already
// initialized are closed again when a later step fails.
func (l *Loader) Initialize(ctx context.Context) (*state.State, error) {
	promRegistry := metrics.NewRegistry()
	registry := components.NewRegistry(l.logger)
	appState := state.NewState(l.config, registry, promRegistry)

	l.logger.Info("Initializing all components")

	if l.journalEnabled() {
		storageComp := components.NewStorageComponent(components.StorageConfig{
			Path:       l.config.Storage.Path,
			Retain:     config.Duration(l.config.Storage.Retain),
			ExternalID: miniapp.ExternalID,
			Logger:     l.logger,
		})
		if err := registry.Register(storageComp); err != nil {
			return nil, fmt.Errorf("failed to register storage component: %w", err)
		}
	}

	if err := registry.Register(components.NewPlatformComponent(l.config.Platforms, l.logger)); err != nil {
		return nil, fmt.Errorf("failed to register platform component: %w", err)
	}

	if err := registry.InitializeAll(ctx); err != nil {
		l.closeQuietly(registry)
		return nil, fmt.Errorf("component initialization failed: %w", err)
	}

	pipeline, err := l.buildPipeline(ctx, appState, metrics.New(promRegistry))
	if err != nil {
		l.closeQuietly(registry)
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	appState.Pipeline = pipeline

	if l.config.Server.Addr != "" {
		serverComp := components.NewServerComponent(components.ServerConfig{
			Name:     l.config.Bot.Name,
			Addr:     l.config.Server.Addr,
			FeedSize: l.config.Server.FeedSize,
		}, pipeline, promRegistry, appState.Storage(), l.logger)
		if err := registry.Register(serverComp); err != nil {
			l.closeQuietly(registry)
			return nil, fmt.Errorf("failed to register server component: %w", err)
		}
		if err := registry.InitializeAll(ctx); err != nil {
			l.closeQuietly(registry)
			return nil, fmt.Errorf("component initialization failed: %w", err)
		}
	}

	l.logger.Info("All components initialized successfully")

	appState.Bot = core.NewBot(core.BotConfig{
		Name:     l.config.Bot.Name,
		Pipeline: pipeline,
		Interval: config.Duration(l.config.Bot.Interval),
		RunOnce:  l.config.Bot.RunOnce,
		Logger:   l.logger,
		ShutdownFn: func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return registry.CloseAll(shutdownCtx)
		},
	})

	return appState, nil
}

func (l *Loader) journalEnabled() bool {
	return l.config.Storage.Path != "" && !l.config.Bot.DryRun
}

func (l *Loader) closeQuietly(registry *components.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := registry.CloseAll(ctx); err != nil {
		l.logger.Warn("Error closing components", "error", err)
	}
}

func (l *Loader) buildPipeline(ctx context.Context, appState *state.State, m *metrics.Metrics) (*core.Pipeline, error) {
	cfg := l.config

	fetcher, err := l.createFetcher(cfg.Fetcher)
	if err != nil {
		return nil, err
	}

	var alerters []platforms.Alerter
	if c, ok := appState.Registry.Get(components.PlatformComponentName); ok {
		alerters = c.(*components.PlatformComponent).Alerters()
	}

	// Status and alerts still reach the operator API in dry-run mode; only
	// deliveries are swapped out.
	api := platforms.NewAPIPlatform(platforms.APIConfig{
		BaseURL:    cfg.API.BaseURL,
		APIKey:     cfg.API.APIKey,
		Timeout:    config.Duration(cfg.Timeouts.Report),
		HTTPClient: l.client,
	})

	reporter := platforms.NewReporter(platforms.ReporterConfig{
		API:         api,
		StatusKey:   cfg.Reporting.StatusKey,
		AlertSource: cfg.Reporting.AlertSource,
		Mirrors:     alerters,
		Logger:      l.logger,
	})

	dedupe := filters.NewDedupeStore()

	pipelineCfg := core.PipelineConfig{
		Registry: sources.NewRegistry(sources.RegistryConfig{
			BaseURL:         cfg.API.BaseURL,
			Path:            cfg.Registry.Path,
			Kind:            cfg.Registry.Kind,
			Host:            cfg.Registry.Host,
			AddressTemplate: cfg.Registry.AddressTemplate,
			APIKey:          cfg.API.APIKey,
			Timeout:         config.Duration(cfg.Timeouts.Registry),
			HTTPClient:      l.client,
			Logger:          l.logger,
		}),
		Credentials: credentials.NewProvider(credentials.Config{
			BaseURL:    cfg.API.BaseURL,
			SecretKey:  cfg.Credentials.SecretKey,
			Token:      cfg.Credentials.Token,
			Static:     cfg.Credentials.Static,
			Timeout:    config.Duration(cfg.Timeouts.Secret),
			HTTPClient: l.client,
			Logger:     l.logger,
		}),
		Fetcher:    fetcher,
		Normalizer: processors.NewNormalizer(processors.DefaultAliases),
		Relevance: filters.NewRelevance(
			filters.NewKeywordFilter(cfg.Filters.Keywords),
			filters.NewRecencyFilter(cfg.Filters.TodayOnly, time.Now),
		),
		Target:   l.createTarget(),
		Reporter: reporter,
		Metrics:  m,
		Dedupe:   dedupe,
		FetchOptions: types.FetchOptions{
			MaxItems: cfg.Fetcher.MaxItems,
			Window:   config.Duration(cfg.Fetcher.Window),
		},
		FetchTimeout:      config.Duration(cfg.Timeouts.Fetch),
		MaxPostsPerSource: cfg.Pipeline.MaxPostsPerSource,
		Workers:           cfg.Pipeline.Workers,
		SourcePause:       config.Duration(cfg.Pipeline.SourcePause),
		SuppressFor:       config.Duration(cfg.Pipeline.SuppressFor),
		QuietDeliveries:   cfg.Pipeline.QuietDeliveryFailures,
		Logger:            l.logger,
	}

	if storageComp := appState.Storage(); storageComp != nil {
		journal := storageComp.Journal()
		pipelineCfg.Journal = journal

		if cfg.Storage.WarmStart {
			fps, err := journal.Fingerprints(ctx, config.Duration(cfg.Storage.Retain))
			if err != nil {
				return nil, fmt.Errorf("failed to warm dedupe store: %w", err)
			}
			for _, fp := range fps {
				dedupe.Record(fp)
			}
			l.logger.Info("Dedupe store warmed from journal", "fingerprints", len(fps))
		}
	}

	return core.NewPipeline(pipelineCfg), nil
}

func (l *Loader) createFetcher(cfg config.FetcherConfig) (types.Fetcher, error) {
	settings := cfg.Settings

	switch cfg.Type {
	case "script":
		return script.New(script.Config{
			ScriptPath:  config.GetString(settings, "script_path", ""),
			ScriptName:  config.GetString(settings, "script_name", "facebook"),
			HTTPTimeout: config.GetDuration(settings, "http_timeout", 30*time.Second),
			Settings:    settings,
			Logger:      l.logger,
		}), nil

	case "actor":
		endpoint := config.GetString(settings, "endpoint", "")
		if endpoint == "" {
			return nil, &types.ConfigError{Field: "fetcher.settings.endpoint", Reason: "is required for actor fetcher"}
		}
		return actor.New(actor.Config{
			Endpoint:     endpoint,
			Token:        config.GetString(settings, "token", ""),
			CookieDomain: config.GetString(settings, "cookie_domain", ".facebook.com"),
			HTTPClient:   l.client,
			Logger:       l.logger,
		}), nil

	case "feed":
		template := config.GetString(settings, "url_template", "")
		if template == "" {
			return nil, &types.ConfigError{Field: "fetcher.settings.url_template", Reason: "is required for feed fetcher"}
		}
		return feed.New(feed.Config{
			URLTemplate: template,
			SendCookies: config.GetBool(settings, "send_cookies", false),
			UserAgent:   config.GetString(settings, "user_agent", ""),
			HTTPClient:  l.client,
			Logger:      l.logger,
		}), nil

	default:
		return nil, &types.ConfigError{Field: "fetcher.type", Reason: fmt.Sprintf("unsupported fetcher type: %s", cfg.Type)}
	}
}

func (l *Loader) createTarget() core.Target {
	if l.config.Bot.DryRun {
		return targets.NewDryRun(l.config.Pipeline.Source, l.logger)
	}
	return miniapp.New(miniapp.Config{
		BaseURL:    l.config.API.BaseURL,
		APIKey:     l.config.API.APIKey,
		Source:     l.config.Pipeline.Source,
		Timeout:    config.Duration(l.config.Timeouts.Delivery),
		HTTPClient: l.client,
		Logger:     l.logger,
	})
}
