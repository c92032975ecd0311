package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
	"github.com/sergeygrin4/fb-job-parser-service/internal/utils"
)

type RegistryConfig struct {
	BaseURL         string
	Path            string
	Kind            string
	Host            string
	AddressTemplate string
	APIKey          string
	Timeout         time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

type Registry struct {
	url      string
	kind     string
	host     string
	template string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.AddressTemplate == "" {
		cfg.AddressTemplate = "https://{host}/groups/{id}"
	}

	return &Registry{
		url:      strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"),
		kind:     strings.ToLower(cfg.Kind),
		host:     cfg.Host,
		template: cfg.AddressTemplate,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		client:   cfg.HTTPClient,
		logger:   cfg.Logger,
	}
}

type registryResponse struct {
	Sources []sourceEntry `json:"sources"`
	Groups  []groupEntry  `json:"groups"`
}

type sourceEntry struct {
	Identifier flexString `json:"identifier"`
	Kind       string     `json:"kind"`
	Enabled    bool       `json:"enabled"`
	Name       string     `json:"name"`
}

type groupEntry struct {
	GroupID   flexString `json:"group_id"`
	GroupName string     `json:"group_name"`
	Enabled   bool       `json:"enabled"`
}

// flexString accepts ids sent either as JSON strings or numbers. null decodes to an
// empty id, which canonicalization drops.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be string or number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// ListSources returns the enabled sources of this pipeline's kind. On any failure it
// returns an empty list together with a transient FetchError for the caller to log.
func (r *Registry) ListSources(ctx context.Context) ([]types.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return []types.Source{}, types.NewTransientError("registry", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-API-KEY", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return []types.Source{}, types.NewTransientError("registry", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return []types.Source{}, types.NewTransientError("registry", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return []types.Source{}, types.NewTransientError("registry", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload registryResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return []types.Source{}, types.NewTransientError("registry", fmt.Errorf("malformed response: %w", err))
	}

	return r.buildSources(payload), nil
}

func (r *Registry) buildSources(payload registryResponse) []types.Source {
	candidates := make([]types.Source, 0, len(payload.Sources)+len(payload.Groups))

	for _, entry := range payload.Sources {
		candidates = append(candidates, types.Source{
			Identifier: string(entry.Identifier),
			Name:       entry.Name,
			Kind:       strings.ToLower(strings.TrimSpace(entry.Kind)),
			Enabled:    entry.Enabled,
		})
	}

	for _, entry := range payload.Groups {
		candidates = append(candidates, types.Source{
			Identifier: string(entry.GroupID),
			Name:       entry.GroupName,
			Kind:       r.kind,
			Enabled:    entry.Enabled,
		})
	}

	selected := utils.FilterArray(candidates, func(s types.Source) bool {
		if !s.Enabled {
			return false
		}
		if s.Kind != r.kind {
			r.logger.Debug("Skipping source of another kind", "identifier", s.Identifier, "kind", s.Kind)
			return false
		}
		return true
	})

	for i := range selected {
		selected[i].CanonicalAddress = Canonicalize(selected[i].Identifier, r.template, r.host)
	}

	selected = utils.FilterArray(selected, func(s types.Source) bool {
		if s.CanonicalAddress == "" {
			r.logger.Warn("Skipping source with unusable identifier", "identifier", s.Identifier)
			return false
		}
		return true
	})

	return utils.UniqueBy(selected, func(s types.Source) string { return s.CanonicalAddress })
}
