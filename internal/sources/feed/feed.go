// Package feed reads group posts from an RSS or Atom bridge that republishes a group
// as a feed.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/sergeygrin4/fb-job-parser-service/internal/sources"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

const Name = "feed"

type Config struct {
	// URLTemplate may reference {address} (query-escaped) and {id}.
	URLTemplate string
	SendCookies bool
	UserAgent   string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type Fetcher struct {
	template    string
	sendCookies bool
	userAgent   string
	client      *http.Client
	parser      *gofeed.Parser
	logger      *slog.Logger
}

func New(cfg Config) *Fetcher {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "fbparser/1.0"
	}
	return &Fetcher{
		template:    cfg.URLTemplate,
		sendCookies: cfg.SendCookies,
		userAgent:   cfg.UserAgent,
		client:      cfg.HTTPClient,
		parser:      gofeed.NewParser(),
		logger:      cfg.Logger.With("fetcher", Name),
	}
}

func (f *Fetcher) Name() string {
	return Name
}

func (f *Fetcher) Initialize(ctx context.Context) error {
	if f.template == "" {
		return &types.ConfigError{Field: "fetcher.settings.url_template", Reason: "required for the feed fetcher"}
	}
	if !strings.Contains(f.template, "{address}") && !strings.Contains(f.template, "{id}") {
		return &types.ConfigError{Field: "fetcher.settings.url_template", Reason: "must reference {address} or {id}"}
	}
	f.logger.Info("Feed fetcher initializing", "template", f.template)
	return nil
}

func (f *Fetcher) Shutdown(ctx context.Context) error {
	return nil
}

func (f *Fetcher) FeedURL(src types.Source) string {
	r := strings.NewReplacer(
		"{address}", url.QueryEscape(src.CanonicalAddress),
		"{id}", url.PathEscape(sources.GroupID(src.CanonicalAddress)),
	)
	return r.Replace(f.template)
}

func (f *Fetcher) Fetch(ctx context.Context, src types.Source, creds types.Credentials, opts types.FetchOptions) ([]types.RawItem, error) {
	feedURL := f.FeedURL(src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, types.NewPermanentError(Name, fmt.Sprintf("invalid feed url %q: %v", feedURL, err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	if f.sendCookies && creds.Raw != "" {
		req.Header.Set("Cookie", creds.Raw)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, types.NewTransientError(Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		msg := fmt.Sprintf("feed bridge returned %d for %s", resp.StatusCode, src.CanonicalAddress)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, types.NewPermanentError(Name, msg)
		}
		return nil, &types.FetchError{Kind: types.Transient, Source: Name, Message: msg}
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, types.NewTransientError(Name, fmt.Errorf("failed to parse feed: %w", err))
	}

	limit := len(parsed.Items)
	if opts.MaxItems > 0 && opts.MaxItems < limit {
		limit = opts.MaxItems
	}

	items := make([]types.RawItem, 0, limit)
	for _, entry := range parsed.Items[:limit] {
		items = append(items, convert(entry))
	}

	f.logger.Debug("Feed fetched", "source", src.CanonicalAddress, "entries", len(parsed.Items), "kept", len(items))
	return items, nil
}

func convert(entry *gofeed.Item) types.RawItem {
	raw := types.RawItem{
		"title": entry.Title,
		"link":  entry.Link,
	}

	content := entry.Content
	if content == "" {
		content = entry.Description
	}
	if content != "" {
		raw["content"] = content
	}

	switch {
	case entry.PublishedParsed != nil:
		raw["published"] = entry.PublishedParsed.UTC().Format(time.RFC3339)
	case entry.UpdatedParsed != nil:
		raw["published"] = entry.UpdatedParsed.UTC().Format(time.RFC3339)
	case entry.Published != "":
		raw["published"] = entry.Published
	}

	// Feed authors are display names or emails, never profile urls, so they stay out
	// of the author url aliases.
	if entry.Author != nil {
		author := entry.Author.Name
		if author == "" {
			author = entry.Author.Email
		}
		if author != "" {
			raw["author_name"] = author
		}
	}

	return raw
}
