package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type APIConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// APIPlatform talks to the status and alert endpoints of the ingestion service.
type APIPlatform struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

func NewAPIPlatform(cfg APIConfig) *APIPlatform {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &APIPlatform{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  cfg.HTTPClient,
	}
}

func (p *APIPlatform) PostStatus(ctx context.Context, key, value string) error {
	return p.post(ctx, "/status/"+url.PathEscape(key), map[string]string{"value": value})
}

func (p *APIPlatform) PostAlert(ctx context.Context, text, source string) error {
	return p.post(ctx, "/alert", map[string]string{"text": text, "source": source})
}

func (p *APIPlatform) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("X-API-KEY", p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return nil
}
