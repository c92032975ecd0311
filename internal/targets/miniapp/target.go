package miniapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
	"github.com/sergeygrin4/fb-job-parser-service/internal/utils/hash"
)

const maxErrorBody = 512

type Config struct {
	BaseURL    string
	APIKey     string
	Source     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Target posts normalized items to the ingestion endpoint, which is idempotent by external_id.
type Target struct {
	url     string
	apiKey  string
	source  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

type Payload struct {
	Source     string  `json:"source"`
	SourceName string  `json:"source_name"`
	ExternalID string  `json:"external_id"`
	URL        string  `json:"url"`
	Text       string  `json:"text"`
	Author     string  `json:"author"`
	CreatedAt  *string `json:"created_at"`
}

type response struct {
	Status string `json:"status"`
}

func New(cfg Config) *Target {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Source == "" {
		cfg.Source = "facebook"
	}

	return &Target{
		url:     strings.TrimRight(cfg.BaseURL, "/") + "/post",
		apiKey:  cfg.APIKey,
		source:  cfg.Source,
		timeout: cfg.Timeout,
		client:  cfg.HTTPClient,
		logger:  cfg.Logger,
	}
}

func (t *Target) Name() string {
	return "miniapp"
}

// ExternalID picks the idempotency key: url, then the UTC timestamp, then the fingerprint.
func ExternalID(post types.Post) string {
	if post.URL != "" {
		return post.URL
	}
	if post.HasTimestamp() {
		return formatTime(post.CreatedAt)
	}
	return hash.Fingerprint(post.Text, post.URL)
}

func (t *Target) BuildPayload(post types.Post) Payload {
	p := Payload{
		Source:     t.source,
		SourceName: post.SourceName,
		ExternalID: ExternalID(post),
		URL:        post.URL,
		Text:       post.Text,
		Author:     post.AuthorURL,
	}
	if post.HasTimestamp() {
		created := formatTime(post.CreatedAt)
		p.CreatedAt = &created
	}
	return p
}

// Deliver returns OutcomeDuplicate when the endpoint already knows the item.
// Every non-200 answer and every transport failure is a *types.DeliveryError.
func (t *Target) Deliver(ctx context.Context, post types.Post) (types.DeliveryOutcome, error) {
	payload := t.BuildPayload(post)

	body, err := json.Marshal(payload)
	if err != nil {
		return types.OutcomeAccepted, &types.DeliveryError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return types.OutcomeAccepted, &types.DeliveryError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("X-API-KEY", t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return types.OutcomeAccepted, &types.DeliveryError{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return types.OutcomeAccepted, &types.DeliveryError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(respBody), maxErrorBody),
		}
	}

	var r response
	if err := json.Unmarshal(respBody, &r); err != nil {
		t.logger.Debug("Delivery response not JSON, treating as accepted", "external_id", payload.ExternalID)
		return types.OutcomeAccepted, nil
	}

	if strings.EqualFold(r.Status, "duplicate") {
		t.logger.Info("Post already known downstream", "external_id", payload.ExternalID)
		return types.OutcomeDuplicate, nil
	}

	t.logger.Info("Post delivered", "external_id", payload.ExternalID, "source", post.SourceName)
	return types.OutcomeAccepted, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
