// Package status serves the operator endpoints: health, Prometheus metrics and a feed
// of recent deliveries.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/feeds"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sergeygrin4/fb-job-parser-service/internal/cache"
	"github.com/sergeygrin4/fb-job-parser-service/internal/storage"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

type Config struct {
	Name     string
	Addr     string
	FeedSize int
	CacheTTL time.Duration
	Logger   *slog.Logger
}

type CycleReporter interface {
	LastResult() (types.CycleResult, bool)
}

type DeliveryLister interface {
	Recent(ctx context.Context, limit int) ([]storage.Delivery, error)
}

type Server struct {
	config     Config
	cycles     CycleReporter
	deliveries DeliveryLister
	gatherer   prometheus.Gatherer
	feeds      *cache.Cache[feedFormat, string]
	logger     *slog.Logger
	server     *http.Server
	listener   net.Listener
}

// New builds the server. deliveries and gatherer may be nil, which disables the feed
// and metrics endpoints respectively.
func New(config Config, cycles CycleReporter, deliveries DeliveryLister, gatherer prometheus.Gatherer) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.FeedSize == 0 {
		config.FeedSize = 50
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = time.Minute
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Server{
		config:     config,
		cycles:     cycles,
		deliveries: deliveries,
		gatherer:   gatherer,
		feeds:      newFeedCache(config.CacheTTL),
		logger:     config.Logger.With("component", "status_server"),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.deliveries != nil {
		mux.HandleFunc("GET /feed.rss", s.feedHandler(formatRSS, "application/rss+xml; charset=utf-8"))
		mux.HandleFunc("GET /feed.atom", s.feedHandler(formatAtom, "application/atom+xml; charset=utf-8"))
		mux.HandleFunc("GET /feed.json", s.feedHandler(formatJSON, "application/feed+json; charset=utf-8"))
	}
	return mux
}

// Start binds the listener before returning so address errors surface immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Status server stopped", "error", err)
		}
	}()

	s.logger.Info("Status server listening", "addr", ln.Addr().String())
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

type healthResponse struct {
	Status    string             `json:"status"`
	Name      string             `json:"name"`
	Time      string             `json:"time"`
	LastCycle *types.CycleResult `json:"last_cycle,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "starting",
		Name:   s.config.Name,
		Time:   time.Now().UTC().Format(time.RFC3339),
	}

	if s.cycles != nil {
		if last, ok := s.cycles.LastResult(); ok {
			resp.LastCycle = &last
			resp.Status = "ok"
			if last.Panic != "" || last.RegistryError != "" || last.Suppressed {
				resp.Status = "degraded"
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

func (s *Server) feedHandler(format feedFormat, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, ok := s.feeds.Get(format)
		if !ok {
			rendered, err := s.render(r.Context(), format)
			if err != nil {
				s.logger.Error("Failed to render feed", "format", format, "error", err)
				http.Error(w, "failed to render feed", http.StatusInternalServerError)
				return
			}
			s.feeds.Set(format, rendered)
			body = rendered
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=60")
		fmt.Fprint(w, body)
	}
}

func (s *Server) render(ctx context.Context, format feedFormat) (string, error) {
	deliveries, err := s.deliveries.Recent(ctx, s.config.FeedSize)
	if err != nil {
		return "", err
	}

	feed := buildFeed(s.config.Name, deliveries)
	switch format {
	case formatAtom:
		return feed.ToAtom()
	case formatJSON:
		return feed.ToJSON()
	default:
		return feed.ToRss()
	}
}

func buildFeed(name string, deliveries []storage.Delivery) *feeds.Feed {
	items := make([]*feeds.Item, 0, len(deliveries))
	for _, d := range deliveries {
		link := d.URL
		if link == "" {
			link = d.SourceAddress
		}
		item := &feeds.Item{
			Id:          d.Fingerprint,
			Title:       title(d),
			Link:        &feeds.Link{Href: link},
			Description: d.Text,
			Created:     d.DeliveredAt,
		}
		if d.AuthorURL != "" {
			item.Author = &feeds.Author{Name: d.AuthorURL}
		}
		items = append(items, item)
	}

	return &feeds.Feed{
		Title:       fmt.Sprintf("Delivered posts (%s)", name),
		Link:        &feeds.Link{Href: "http://localhost/"},
		Description: "Posts forwarded to the jobs API",
		Created:     time.Now().UTC(),
		Items:       items,
	}
}

func title(d storage.Delivery) string {
	line, _, _ := strings.Cut(strings.TrimSpace(d.Text), "\n")
	if line == "" {
		return d.SourceName
	}
	if utf8.RuneCountInString(line) > 80 {
		runes := []rune(line)
		line = string(runes[:77]) + "..."
	}
	return line
}
