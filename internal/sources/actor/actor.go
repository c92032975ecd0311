// Package actor fetches group posts through an external scraping service that takes
// start URLs and session cookies and answers with a dataset of post records.
package actor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

const Name = "actor"

type Config struct {
	Endpoint     string
	Token        string
	CookieDomain string
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

type Fetcher struct {
	endpoint     string
	token        string
	cookieDomain string
	client       *http.Client
	logger       *slog.Logger
}

func New(cfg Config) *Fetcher {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CookieDomain == "" {
		cfg.CookieDomain = ".facebook.com"
	}
	return &Fetcher{
		endpoint:     cfg.Endpoint,
		token:        cfg.Token,
		cookieDomain: cfg.CookieDomain,
		client:       cfg.HTTPClient,
		logger:       cfg.Logger.With("fetcher", Name),
	}
}

func (f *Fetcher) Name() string {
	return Name
}

func (f *Fetcher) Initialize(ctx context.Context) error {
	if f.endpoint == "" {
		return &types.ConfigError{Field: "fetcher.settings.endpoint", Reason: "required for the actor fetcher"}
	}
	return nil
}

func (f *Fetcher) Shutdown(ctx context.Context) error {
	return nil
}

type startURL struct {
	URL string `json:"url"`
}

type cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

type runInput struct {
	StartURLs []startURL `json:"startUrls"`
	Cookies   []cookie   `json:"cookies"`
	MaxItems  int        `json:"maxItems,omitempty"`
	Window    string     `json:"window,omitempty"`
}

func (f *Fetcher) buildInput(src types.Source, creds types.Credentials, opts types.FetchOptions) runInput {
	input := runInput{
		StartURLs: []startURL{{URL: src.CanonicalAddress}},
		Cookies:   []cookie{},
		MaxItems:  opts.MaxItems,
	}
	if opts.Window > 0 {
		input.Window = opts.Window.String()
	}

	names := make([]string, 0, len(creds.Cookies))
	for name := range creds.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		input.Cookies = append(input.Cookies, cookie{Name: name, Value: creds.Cookies[name], Domain: f.cookieDomain})
	}
	return input
}

func (f *Fetcher) Fetch(ctx context.Context, src types.Source, creds types.Credentials, opts types.FetchOptions) ([]types.RawItem, error) {
	body, err := json.Marshal(f.buildInput(src, creds, opts))
	if err != nil {
		return nil, types.NewPermanentError(Name, fmt.Sprintf("failed to encode run input: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewPermanentError(Name, fmt.Sprintf("invalid endpoint: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	started := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, types.NewTransientError(Name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, types.NewTransientError(Name, fmt.Errorf("failed to read response: %w", err))
	}

	if err := classifyStatus(resp.StatusCode, payload); err != nil {
		return nil, err
	}

	items, err := decodeItems(payload)
	if err != nil {
		return nil, types.NewTransientError(Name, err)
	}

	f.logger.Debug("Scraping service returned dataset",
		"source", src.CanonicalAddress,
		"items", len(items),
		"took", time.Since(started),
	)
	return items, nil
}

func classifyStatus(code int, payload []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}

	snippet := string(payload)
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	msg := fmt.Sprintf("scraping service returned %d: %s", code, snippet)

	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return types.NewPermanentError(Name, msg)
	default:
		// 408, 429, 5xx and anything unexpected are worth another try next cycle.
		return &types.FetchError{Kind: types.Transient, Source: Name, Message: msg}
	}
}

// decodeItems accepts either a bare JSON array or an object wrapping it in "items".
func decodeItems(payload []byte) ([]types.RawItem, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return []types.RawItem{}, nil
	}

	var items []types.RawItem
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode dataset: %w", err)
		}
	} else {
		var wrapped struct {
			Items []types.RawItem `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode dataset: %w", err)
		}
		items = wrapped.Items
	}

	if items == nil {
		items = []types.RawItem{}
	}
	return items, nil
}
