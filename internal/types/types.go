package types

import (
	"context"
	"time"
)

type Source struct {
	Identifier       string
	CanonicalAddress string
	Name             string
	Kind             string
	Enabled          bool
}

// DisplayName falls back to the canonical address when the registry sent no name.
func (s Source) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.CanonicalAddress
}

type RawItem map[string]any

type Post struct {
	Text          string
	URL           string
	AuthorURL     string
	CreatedAt     time.Time
	SourceAddress string
	SourceName    string
}

func (p Post) HasTimestamp() bool {
	return !p.CreatedAt.IsZero()
}

type Credentials struct {
	Raw     string
	Cookies map[string]string
	Origin  string
}

func (c Credentials) IsEmpty() bool {
	return c.Raw == "" && len(c.Cookies) == 0
}

type FetchOptions struct {
	MaxItems int
	Window   time.Duration
}

type Fetcher interface {
	Name() string
	Initialize(ctx context.Context) error
	Fetch(ctx context.Context, src Source, creds Credentials, opts FetchOptions) ([]RawItem, error)
	Shutdown(ctx context.Context) error
}

type DeliveryOutcome int

const (
	OutcomeAccepted DeliveryOutcome = iota
	OutcomeDuplicate
)

func (o DeliveryOutcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

type SourceResult struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Fetched      int    `json:"fetched"`
	Skipped      int    `json:"skipped"`
	FilteredIn   int    `json:"filtered_in"`
	Deduplicated int    `json:"deduplicated"`
	Delivered    int    `json:"delivered"`
	Duplicates   int    `json:"downstream_duplicates"`
	Failed       int    `json:"failed"`
	Suppressed   bool   `json:"suppressed,omitempty"`
	Error        string `json:"error,omitempty"`
}

type CycleResult struct {
	ID                   string         `json:"id"`
	StartedAt            time.Time      `json:"started_at"`
	FinishedAt           time.Time      `json:"finished_at"`
	Sources              int            `json:"sources"`
	Fetched              int            `json:"fetched"`
	Skipped              int            `json:"skipped"`
	FilteredIn           int            `json:"filtered_in"`
	Deduplicated         int            `json:"deduplicated"`
	Delivered            int            `json:"delivered"`
	DownstreamDuplicates int            `json:"downstream_duplicates"`
	Failed               int            `json:"failed"`
	SourceErrors         int            `json:"source_errors"`
	Suppressed           bool           `json:"suppressed,omitempty"`
	RegistryError        string         `json:"registry_error,omitempty"`
	Panic                string         `json:"panic,omitempty"`
	PerSource            []SourceResult `json:"per_source"`
}

func (r *CycleResult) Merge(sr SourceResult) {
	r.Fetched += sr.Fetched
	r.Skipped += sr.Skipped
	r.FilteredIn += sr.FilteredIn
	r.Deduplicated += sr.Deduplicated
	r.Delivered += sr.Delivered
	r.DownstreamDuplicates += sr.Duplicates
	r.Failed += sr.Failed
	if sr.Error != "" {
		r.SourceErrors++
	}
	if sr.Suppressed {
		r.Suppressed = true
	}
	r.PerSource = append(r.PerSource, sr)
}

func (r CycleResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
