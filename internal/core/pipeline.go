package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sergeygrin4/fb-job-parser-service/internal/metrics"
	"github.com/sergeygrin4/fb-job-parser-service/internal/processors/filters"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
	"github.com/sergeygrin4/fb-job-parser-service/internal/utils/hash"
)

type PipelineConfig struct {
	Registry    SourceLister
	Credentials CredentialSource
	Fetcher     types.Fetcher
	Normalizer  Normalizer
	Relevance   RelevanceChecker
	Target      Target
	Reporter    Reporter
	Journal     Journal
	Metrics     *metrics.Metrics
	Dedupe      *filters.DedupeStore

	FetchOptions      types.FetchOptions
	FetchTimeout      time.Duration
	MaxPostsPerSource int
	Workers           int
	SourcePause       time.Duration
	SuppressFor       time.Duration
	QuietDeliveries   bool

	Logger *slog.Logger
	Clock  func() time.Time
}

// Pipeline owns all state that survives between cycles: the dedupe store, the
// suppression state and the last result.
type Pipeline struct {
	registry    SourceLister
	credentials CredentialSource
	fetcher     types.Fetcher
	normalizer  Normalizer
	relevance   RelevanceChecker
	target      Target
	reporter    Reporter
	journal     Journal
	metrics     *metrics.Metrics
	dedupe      *filters.DedupeStore

	fetchOpts       types.FetchOptions
	fetchTimeout    time.Duration
	maxPosts        int
	workers         int
	limiter         *rate.Limiter
	suppression     *suppressor
	quietDeliveries bool

	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	last    types.CycleResult
	hasLast bool
	cycleMu sync.Mutex
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Reporter == nil {
		cfg.Reporter = nopReporter{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}
	if cfg.Dedupe == nil {
		cfg.Dedupe = filters.NewDedupeStore()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 2 * time.Minute
	}
	if cfg.SuppressFor == 0 {
		cfg.SuppressFor = time.Hour
	}

	limit := rate.Inf
	if cfg.SourcePause > 0 {
		limit = rate.Every(cfg.SourcePause)
	}

	return &Pipeline{
		registry:        cfg.Registry,
		credentials:     cfg.Credentials,
		fetcher:         cfg.Fetcher,
		normalizer:      cfg.Normalizer,
		relevance:       cfg.Relevance,
		target:          cfg.Target,
		reporter:        cfg.Reporter,
		journal:         cfg.Journal,
		metrics:         cfg.Metrics,
		dedupe:          cfg.Dedupe,
		fetchOpts:       cfg.FetchOptions,
		fetchTimeout:    cfg.FetchTimeout,
		maxPosts:        cfg.MaxPostsPerSource,
		workers:         cfg.Workers,
		limiter:         rate.NewLimiter(limit, 1),
		suppression:     newSuppressor(cfg.SuppressFor),
		quietDeliveries: cfg.QuietDeliveries,
		logger:          cfg.Logger,
		now:             cfg.Clock,
	}
}

func (p *Pipeline) Initialize(ctx context.Context) error {
	if p.fetcher == nil {
		return fmt.Errorf("pipeline has no fetcher")
	}
	if err := p.fetcher.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize fetcher %s: %w", p.fetcher.Name(), err)
	}
	p.logger.Info("Pipeline initialized", "fetcher", p.fetcher.Name(), "target", p.target.Name(), "workers", p.workers)
	return nil
}

func (p *Pipeline) Shutdown(ctx context.Context) error {
	if p.fetcher == nil {
		return nil
	}
	return p.fetcher.Shutdown(ctx)
}

func (p *Pipeline) Dedupe() *filters.DedupeStore {
	return p.dedupe
}

// LastResult returns the most recent finished cycle.
func (p *Pipeline) LastResult() (types.CycleResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.hasLast
}

// RunCycle executes exactly one poll cycle. It never panics and never returns an error:
// failures are contained per item, per source and per cycle, and reflected in the result.
func (p *Pipeline) RunCycle(ctx context.Context) (result types.CycleResult) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	result.ID = uuid.NewString()
	result.StartedAt = p.now().UTC()
	result.PerSource = []types.SourceResult{}
	logger := p.logger.With("cycle_id", result.ID)

	defer func() {
		if r := recover(); r != nil {
			result.Panic = fmt.Sprint(r)
			logger.Error("Cycle panicked", "panic", r, "stack", string(debug.Stack()))
			p.alert(ctx, fmt.Sprintf("fb parser cycle crashed: %v", r))
		}
		result.FinishedAt = p.now().UTC()
		p.finish(ctx, &result, logger)
	}()

	logger.Info("Cycle started")

	sources, err := p.registry.ListSources(ctx)
	if err != nil {
		result.RegistryError = err.Error()
		logger.Warn("Source registry unavailable, continuing with no sources", "error", err)
	}
	result.Sources = len(sources)

	if len(sources) == 0 {
		logger.Info("No sources to poll")
		return result
	}

	creds := p.credentials.Current(ctx)
	credFP := hash.String(creds.Raw)
	logger.Debug("Credentials resolved", "origin", creds.Origin, "empty", creds.IsEmpty())

	if active, lifted := p.suppression.active(p.fetcher.Name(), credFP); lifted {
		logger.Info("Credentials changed, resuming fetches", "fetcher", p.fetcher.Name())
	} else if active {
		logger.Warn("Fetching suppressed after permanent failure", "fetcher", p.fetcher.Name(),
			"until", p.suppression.until(p.fetcher.Name()).Format(time.RFC3339))
		result.Suppressed = true
		return result
	}

	results := make([]types.SourceResult, len(sources))
	launched := 0

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, src := range sources {
		if ctx.Err() != nil {
			logger.Info("Cycle canceled between sources", "remaining", len(sources)-i)
			break
		}
		launched++
		i, src := i, src
		g.Go(func() error {
			results[i] = p.runSource(ctx, src, creds, credFP, logger)
			return nil
		})
	}
	_ = g.Wait()

	for _, sr := range results[:launched] {
		result.Merge(sr)
	}

	return result
}

func (p *Pipeline) runSource(ctx context.Context, src types.Source, creds types.Credentials, credFP string, logger *slog.Logger) (sr types.SourceResult) {
	sr.Address = src.CanonicalAddress
	sr.Name = src.DisplayName()
	logger = logger.With("source", src.CanonicalAddress)

	defer func() {
		if r := recover(); r != nil {
			sr.Error = fmt.Sprintf("panic: %v", r)
			logger.Error("Source processing panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := p.limiter.Wait(ctx); err != nil {
		sr.Error = err.Error()
		return sr
	}

	if active, _ := p.suppression.active(p.fetcher.Name(), credFP); active {
		sr.Suppressed = true
		return sr
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	raws, err := p.fetcher.Fetch(fetchCtx, src, creds, p.fetchOpts)
	cancel()
	if err != nil {
		sr.Error = err.Error()
		p.handleFetchError(ctx, src, credFP, err, logger)
		return sr
	}

	if p.fetchOpts.MaxItems > 0 && len(raws) > p.fetchOpts.MaxItems {
		raws = raws[:p.fetchOpts.MaxItems]
	}
	sr.Fetched = len(raws)

	var lastDeliveryErr error
	for _, raw := range raws {
		if ctx.Err() != nil {
			logger.Info("Source canceled between items")
			break
		}
		if p.maxPosts > 0 && sr.Delivered+sr.Duplicates >= p.maxPosts {
			logger.Info("Per-source delivery cap reached", "cap", p.maxPosts)
			break
		}
		if err := p.processItem(ctx, raw, src, &sr, logger); err != nil {
			lastDeliveryErr = err
		}
	}

	logger.Info("Source processed",
		"name", sr.Name,
		"fetched", sr.Fetched,
		"skipped", sr.Skipped,
		"filtered_in", sr.FilteredIn,
		"deduplicated", sr.Deduplicated,
		"delivered", sr.Delivered,
		"failed", sr.Failed,
	)

	if sr.Failed > 0 && !p.quietDeliveries {
		p.alert(ctx, fmt.Sprintf("fb parser: %d deliveries from %s failed: %v", sr.Failed, sr.Name, lastDeliveryErr))
	}

	return sr
}

func (p *Pipeline) processItem(ctx context.Context, raw types.RawItem, src types.Source, sr *types.SourceResult, logger *slog.Logger) error {
	post, ok := p.normalizer.Normalize(raw, src)
	if !ok {
		sr.Skipped++
		return nil
	}

	if err := p.relevance.Check(post); err != nil {
		logger.Debug("Post filtered", "reason", err, "url", post.URL)
		return nil
	}
	sr.FilteredIn++

	fp := hash.Fingerprint(post.Text, post.URL)
	if !p.dedupe.Claim(fp) {
		sr.Deduplicated++
		return nil
	}

	outcome, err := p.target.Deliver(ctx, post)
	if err != nil {
		p.dedupe.Release(fp)
		sr.Failed++
		logger.Warn("Delivery failed", "url", post.URL, "error", err)
		return err
	}

	p.dedupe.Record(fp)
	if outcome == types.OutcomeDuplicate {
		sr.Duplicates++
	} else {
		sr.Delivered++
	}

	if p.journal != nil {
		if err := p.journal.RecordDelivery(ctx, fp, post, outcome); err != nil {
			logger.Warn("Failed to journal delivery", "error", err)
		}
	}
	return nil
}

func (p *Pipeline) handleFetchError(ctx context.Context, src types.Source, credFP string, err error, logger *slog.Logger) {
	var fe *types.FetchError
	kind := types.Transient
	if errors.As(err, &fe) {
		kind = fe.Kind
	}
	p.metrics.SourceError(kind)

	if kind != types.Permanent {
		logger.Warn("Fetch failed, will retry next cycle", "error", err)
		return
	}

	logger.Error("Fetch failed permanently", "error", err)
	if p.suppression.trip(p.fetcher.Name(), credFP) {
		p.alert(ctx, fmt.Sprintf("fb parser: fetching from %s stopped, credentials need attention: %v", src.DisplayName(), err))
	}
}

func (p *Pipeline) alert(ctx context.Context, text string) {
	p.metrics.AlertsTotal.Inc()
	p.reporter.Alert(context.WithoutCancel(ctx), text)
}

func (p *Pipeline) finish(ctx context.Context, result *types.CycleResult, logger *slog.Logger) {
	p.metrics.DedupeSize.Set(float64(p.dedupe.Len()))
	p.metrics.ObserveCycle(*result)

	p.mu.Lock()
	p.last = *result
	p.hasLast = true
	p.mu.Unlock()

	if result.Panic == "" {
		p.reporter.Liveness(context.WithoutCancel(ctx), result.FinishedAt)
	}

	logger.Info("Cycle finished",
		"duration", result.Duration(),
		"sources", result.Sources,
		"fetched", result.Fetched,
		"filtered_in", result.FilteredIn,
		"deduplicated", result.Deduplicated,
		"delivered", result.Delivered,
		"downstream_duplicates", result.DownstreamDuplicates,
		"failed", result.Failed,
		"source_errors", result.SourceErrors,
	)
}
