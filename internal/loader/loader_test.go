package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergeygrin4/fb-job-parser-service/internal/config"
	"github.com/sergeygrin4/fb-job-parser-service/internal/state"
	"github.com/sergeygrin4/fb-job-parser-service/internal/storage"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
	"github.com/sergeygrin4/fb-job-parser-service/internal/utils/hash"
)

const testFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Jobs</title>
<item><title>Go job</title><link>https://www.facebook.com/groups/123/posts/1</link><description>Go job in Berlin</description></item>
<item><title>Cats</title><link>https://www.facebook.com/groups/123/posts/2</link><description>Cat photos</description></item>
</channel></rss>`

type fakeAPI struct {
	mu       sync.Mutex
	posts    []map[string]any
	statuses int
	cookies  []string
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sources", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sources":[{"identifier":"123","kind":"facebook","enabled":true,"name":"Jobs"}]}`)
	})
	mux.HandleFunc("/secrets/facebook_cookies", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value":"c_user=1; xs=2"}`)
	})
	mux.HandleFunc("/feed/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.cookies = append(f.cookies, r.Header.Get("Cookie"))
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeed)
	})
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.posts = append(f.posts, payload)
		f.mu.Unlock()
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.statuses++
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/alert", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (f *fakeAPI) snapshot() ([]map[string]any, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.posts...), f.statuses
}

func (f *fakeAPI) sentCookies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cookies...)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func setEnv(t *testing.T, baseURL string) {
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("API_SECRET", "secret")
	t.Setenv("JOB_KEYWORDS", "job")
	t.Setenv("CHECK_INTERVAL_MINUTES", "5")
	t.Setenv("MAX_POSTS_PER_GROUP", "20")
	t.Setenv("RECENCY_TODAY_ONLY", "false")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func build(ctx context.Context, path string, override func(*config.Config)) (*state.State, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	return NewLoader(cfg, quietLogger()).Initialize(ctx)
}

func TestLoader_EndToEnd(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()
	setEnv(t, srv.URL)

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	path := writeConfig(t, fmt.Sprintf(`
[bot]
name = "test"
run_once = true

[pipeline]
source_pause = "0s"

[fetcher]
type = "feed"

[fetcher.settings]
url_template = "%s/feed/{id}"
send_cookies = true

[storage]
path = %q

[server]
addr = "127.0.0.1:0"
`, srv.URL, dbPath))

	ctx := context.Background()
	st, err := build(ctx, path, nil)
	require.NoError(t, err)

	require.NoError(t, st.Bot.Start(ctx))

	posts, statuses := api.snapshot()
	require.Len(t, posts, 1)
	assert.Equal(t, "https://www.facebook.com/groups/123/posts/1", posts[0]["url"])
	assert.Equal(t, "Jobs", posts[0]["source_name"])
	assert.Equal(t, 1, statuses)
	assert.Equal(t, []string{"c_user=1; xs=2"}, api.sentCookies())

	recent, err := st.Storage().Journal().Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	resp, err := http.Get("http://" + st.Server().Server().Addr() + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])

	second := st.Pipeline.RunCycle(ctx)
	assert.Equal(t, 0, second.Delivered)
	assert.Equal(t, 1, second.Deduplicated)

	require.NoError(t, st.Bot.Stop(ctx))
}

func TestLoader_DryRunSkipsDeliveryAndJournal(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()
	setEnv(t, srv.URL)

	path := writeConfig(t, fmt.Sprintf(`
[pipeline]
source_pause = "0s"

[fetcher]
type = "feed"

[fetcher.settings]
url_template = "%s/feed/{id}"

[storage]
path = %q
`, srv.URL, filepath.Join(t.TempDir(), "journal.db")))

	ctx := context.Background()
	st, err := build(ctx, path, func(c *config.Config) {
		c.Bot.DryRun = true
		c.Bot.RunOnce = true
	})
	require.NoError(t, err)
	assert.Nil(t, st.Storage())
	assert.Nil(t, st.Server())

	require.NoError(t, st.Bot.Start(ctx))
	assert.Equal(t, 1, st.Pipeline.Dedupe().Len())

	posts, _ := api.snapshot()
	assert.Empty(t, posts)
	assert.Equal(t, []string{""}, api.sentCookies())

	require.NoError(t, st.Bot.Stop(ctx))
}

func TestLoader_UnsupportedFetcher(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1")
	path := writeConfig(t, `
[fetcher]
type = "carrier-pigeon"
`)

	_, err := build(context.Background(), path, nil)
	require.Error(t, err)
	assert.True(t, types.IsConfigError(err))
}

func TestLoader_ActorRequiresEndpoint(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1")
	path := writeConfig(t, `
[fetcher]
type = "actor"
`)

	_, err := build(context.Background(), path, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "fetcher.settings.endpoint")
}

func TestLoader_WarmStartSkipsJournaledPosts(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()
	setEnv(t, srv.URL)

	dbPath := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	store, err := storage.New(ctx, "sqlite", dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Deliveries().Record(ctx, storage.Delivery{
		Fingerprint: hash.Fingerprint("Go job in Berlin", "https://www.facebook.com/groups/123/posts/1"),
		Outcome:     "accepted",
		DeliveredAt: time.Now().UTC(),
	}))
	require.NoError(t, store.Close(ctx))

	path := writeConfig(t, fmt.Sprintf(`
[pipeline]
source_pause = "0s"

[fetcher]
type = "feed"

[fetcher.settings]
url_template = "%s/feed/{id}"

[storage]
path = %q
warm_start = true
`, srv.URL, dbPath))

	st, err := build(ctx, path, func(c *config.Config) { c.Bot.RunOnce = true })
	require.NoError(t, err)
	require.NoError(t, st.Bot.Start(ctx))

	result, ok := st.Pipeline.LastResult()
	require.True(t, ok)
	assert.Equal(t, 1, result.Deduplicated)
	assert.Equal(t, 0, result.Delivered)

	posts, _ := api.snapshot()
	assert.Empty(t, posts)

	require.NoError(t, st.Bot.Stop(ctx))
}
