package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

const (
	OriginSecret = "secret"
	OriginStatic = "static"
	OriginNone   = "none"
)

type Config struct {
	BaseURL    string
	SecretKey  string
	Token      string
	Static     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Provider resolves the cookies handed to fetchers. It is queried once per cycle
// and keeps no state between calls.
type Provider struct {
	secretURL string
	token     string
	static    string
	timeout   time.Duration
	client    *http.Client
	logger    *slog.Logger
}

func NewProvider(cfg Config) *Provider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	secretURL := ""
	if cfg.BaseURL != "" && cfg.SecretKey != "" {
		secretURL = strings.TrimRight(cfg.BaseURL, "/") + "/secrets/" + url.PathEscape(cfg.SecretKey)
	}

	return &Provider{
		secretURL: secretURL,
		token:     cfg.Token,
		static:    cfg.Static,
		timeout:   cfg.Timeout,
		client:    cfg.HTTPClient,
		logger:    cfg.Logger,
	}
}

// Current prefers the secret endpoint and falls back to the static value on any failure.
// Empty credentials are a valid result.
func (p *Provider) Current(ctx context.Context) types.Credentials {
	if p.token != "" && p.secretURL != "" {
		value, err := p.fetchSecret(ctx)
		if err == nil {
			return newCredentials(value, OriginSecret)
		}
		p.logger.Warn("Secret fetch failed, using static credentials", "error", err)
	}

	if strings.TrimSpace(p.static) != "" {
		return newCredentials(p.static, OriginStatic)
	}

	return types.Credentials{Cookies: map[string]string{}, Origin: OriginNone}
}

func (p *Provider) fetchSecret(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.secretURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("secret endpoint returned status %d", resp.StatusCode)
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	if strings.TrimSpace(payload.Value) == "" {
		return "", fmt.Errorf("secret is empty")
	}

	return payload.Value, nil
}

func newCredentials(raw, origin string) types.Credentials {
	return types.Credentials{
		Raw:     strings.TrimSpace(raw),
		Cookies: ParseCookies(raw),
		Origin:  origin,
	}
}

// ParseCookies parses a "k1=v1; k2=v2" header value. Parts without '=' are ignored.
func ParseCookies(raw string) map[string]string {
	cookies := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		cookies[k] = strings.TrimSpace(v)
	}
	return cookies
}
