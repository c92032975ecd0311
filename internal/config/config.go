package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

var DefaultKeywords = []string{
	"вакансия", "работа", "job", "hiring", "remote", "developer", "программист", "amazon",
}

type Config struct {
	Bot         BotConfig                 `toml:"bot"`
	Log         LogConfig                 `toml:"log"`
	API         APIConfig                 `toml:"api"`
	Registry    RegistryConfig            `toml:"registry"`
	Credentials CredentialsConfig         `toml:"credentials"`
	Fetcher     FetcherConfig             `toml:"fetcher"`
	Filters     FiltersConfig             `toml:"filters"`
	Pipeline    PipelineConfig            `toml:"pipeline"`
	Timeouts    TimeoutsConfig            `toml:"timeouts"`
	Reporting   ReportingConfig           `toml:"reporting"`
	Storage     StorageConfig             `toml:"storage"`
	Server      ServerConfig              `toml:"server"`
	Platforms   map[string]PlatformConfig `toml:"platforms"`
}

type BotConfig struct {
	Name     string `toml:"name"`
	Interval string `toml:"interval"`
	RunOnce  bool   `toml:"run_once"`
	DryRun   bool   `toml:"dry_run"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type APIConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type RegistryConfig struct {
	Path            string `toml:"path"`
	Kind            string `toml:"kind"`
	Host            string `toml:"host"`
	AddressTemplate string `toml:"address_template"`
}

type CredentialsConfig struct {
	SecretKey string `toml:"secret_key"`
	Token     string `toml:"token"`
	Static    string `toml:"static"`
}

type FetcherConfig struct {
	Type     string                 `toml:"type"`
	MaxItems int                    `toml:"max_items"`
	Window   string                 `toml:"window"`
	Settings map[string]interface{} `toml:"settings"`
}

type FiltersConfig struct {
	Keywords  []string `toml:"keywords"`
	TodayOnly bool     `toml:"today_only"`
}

type PipelineConfig struct {
	Source                string `toml:"source"`
	Workers               int    `toml:"workers"`
	SourcePause           string `toml:"source_pause"`
	MaxPostsPerSource     int    `toml:"max_posts_per_source"`
	SuppressFor           string `toml:"suppress_for"`
	QuietDeliveryFailures bool   `toml:"quiet_delivery_failures"`
}

type TimeoutsConfig struct {
	Registry string `toml:"registry"`
	Secret   string `toml:"secret"`
	Fetch    string `toml:"fetch"`
	Delivery string `toml:"delivery"`
	Report   string `toml:"report"`
}

type ReportingConfig struct {
	StatusKey   string `toml:"status_key"`
	AlertSource string `toml:"alert_source"`
}

type StorageConfig struct {
	Path      string `toml:"path"`
	Retain    string `toml:"retain"`
	WarmStart bool   `toml:"warm_start"`
}

type ServerConfig struct {
	Addr     string `toml:"addr"`
	FeedSize int    `toml:"feed_size"`
}

type PlatformConfig struct {
	Type     string                 `toml:"type"`
	Enabled  bool                   `toml:"enabled"`
	Sleep    string                 `toml:"sleep"`
	Settings map[string]interface{} `toml:"settings"`
}

// Load reads the optional TOML file at path, then applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func applyEnv(config *Config) error {
	if v, ok := os.LookupEnv("API_BASE_URL"); ok {
		config.API.BaseURL = v
	}
	if v, ok := os.LookupEnv("API_SECRET"); ok {
		config.API.APIKey = v
	}
	if v, ok := os.LookupEnv("JOB_KEYWORDS"); ok {
		config.Filters.Keywords = ParseKeywords(v)
	}
	if v, ok := os.LookupEnv("CHECK_INTERVAL_MINUTES"); ok {
		minutes, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || minutes <= 0 {
			return &types.ConfigError{Field: "CHECK_INTERVAL_MINUTES", Reason: fmt.Sprintf("expected positive integer, got %q", v)}
		}
		config.Bot.Interval = fmt.Sprintf("%dm", minutes)
	}
	if v, ok := os.LookupEnv("MAX_POSTS_PER_GROUP"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return &types.ConfigError{Field: "MAX_POSTS_PER_GROUP", Reason: fmt.Sprintf("expected positive integer, got %q", v)}
		}
		config.Fetcher.MaxItems = n
		config.Pipeline.MaxPostsPerSource = n
	}
	if v, ok := os.LookupEnv("FACEBOOK_COOKIES"); ok {
		config.Credentials.Static = v
	}
	if v, ok := os.LookupEnv("SECRETS_TOKEN"); ok {
		config.Credentials.Token = v
	}
	if v, ok := os.LookupEnv("RECENCY_TODAY_ONLY"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &types.ConfigError{Field: "RECENCY_TODAY_ONLY", Reason: err.Error()}
		}
		config.Filters.TodayOnly = b
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		config.Log.Level = v
	}
	return nil
}

// ParseKeywords splits a comma separated list, lower-casing and dropping blanks.
func ParseKeywords(s string) []string {
	keywords := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		kw := strings.ToLower(strings.TrimSpace(part))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

func validateConfig(config *Config) error {
	config.API.BaseURL = strings.TrimRight(strings.TrimSpace(config.API.BaseURL), "/")
	if config.API.BaseURL == "" {
		return &types.ConfigError{Field: "api.base_url", Reason: "is required (or set API_BASE_URL)"}
	}

	if config.Bot.Name == "" {
		config.Bot.Name = "fbparser"
	}

	if config.Bot.Interval == "" {
		config.Bot.Interval = "5m"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}

	if config.Log.Format == "" {
		config.Log.Format = "text"
	}

	if config.Registry.Path == "" {
		config.Registry.Path = "/sources"
	}

	if config.Registry.Kind == "" {
		config.Registry.Kind = "facebook"
	}

	if config.Registry.Host == "" {
		config.Registry.Host = "www.facebook.com"
	}

	if config.Registry.AddressTemplate == "" {
		config.Registry.AddressTemplate = "https://{host}/groups/{id}"
	}

	if config.Credentials.SecretKey == "" {
		config.Credentials.SecretKey = "facebook_cookies"
	}

	if config.Fetcher.Type == "" {
		config.Fetcher.Type = "script"
	}

	if config.Fetcher.MaxItems <= 0 {
		config.Fetcher.MaxItems = 20
	}

	if config.Fetcher.Window == "" {
		config.Fetcher.Window = "24h"
	}

	if config.Fetcher.Settings == nil {
		config.Fetcher.Settings = make(map[string]interface{})
	}

	if config.Filters.Keywords == nil {
		config.Filters.Keywords = append([]string(nil), DefaultKeywords...)
	} else {
		config.Filters.Keywords = ParseKeywords(strings.Join(config.Filters.Keywords, ","))
	}

	if config.Pipeline.Source == "" {
		config.Pipeline.Source = "facebook"
	}

	if config.Pipeline.Workers <= 0 {
		config.Pipeline.Workers = 1
	}

	if config.Pipeline.SourcePause == "" {
		config.Pipeline.SourcePause = "2s"
	}

	if config.Pipeline.MaxPostsPerSource <= 0 {
		config.Pipeline.MaxPostsPerSource = config.Fetcher.MaxItems
	}

	if config.Pipeline.SuppressFor == "" {
		config.Pipeline.SuppressFor = "1h"
	}

	if config.Timeouts.Registry == "" {
		config.Timeouts.Registry = "15s"
	}

	if config.Timeouts.Secret == "" {
		config.Timeouts.Secret = "10s"
	}

	if config.Timeouts.Fetch == "" {
		config.Timeouts.Fetch = "2m"
	}

	if config.Timeouts.Delivery == "" {
		config.Timeouts.Delivery = "15s"
	}

	if config.Timeouts.Report == "" {
		config.Timeouts.Report = "10s"
	}

	if config.Reporting.StatusKey == "" {
		config.Reporting.StatusKey = "fb_parser_last_ok"
	}

	if config.Reporting.AlertSource == "" {
		config.Reporting.AlertSource = "fb_parser"
	}

	if config.Storage.Retain == "" {
		config.Storage.Retain = "720h"
	}

	if config.Server.FeedSize <= 0 {
		config.Server.FeedSize = 50
	}

	durations := map[string]string{
		"bot.interval":          config.Bot.Interval,
		"fetcher.window":        config.Fetcher.Window,
		"pipeline.source_pause": config.Pipeline.SourcePause,
		"pipeline.suppress_for": config.Pipeline.SuppressFor,
		"timeouts.registry":     config.Timeouts.Registry,
		"timeouts.secret":       config.Timeouts.Secret,
		"timeouts.fetch":        config.Timeouts.Fetch,
		"timeouts.delivery":     config.Timeouts.Delivery,
		"timeouts.report":       config.Timeouts.Report,
		"storage.retain":        config.Storage.Retain,
	}
	for field, value := range durations {
		if _, err := parseDuration(field, value); err != nil {
			return err
		}
	}

	if interval, _ := time.ParseDuration(config.Bot.Interval); interval <= 0 {
		return &types.ConfigError{Field: "bot.interval", Reason: "must be positive"}
	}

	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &types.ConfigError{Field: field, Reason: err.Error()}
	}
	if d < 0 {
		return 0, &types.ConfigError{Field: field, Reason: "must not be negative"}
	}
	return d, nil
}

// Duration returns a validated duration field; validateConfig has already rejected bad values.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}
