package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergeygrin4/fb-job-parser-service/internal/processors"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

const bridgeFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Go jobs</title>
  <item>
    <title>Hiring</title>
    <link>https://www.facebook.com/groups/123/posts/1/</link>
    <description>&lt;p&gt;Hiring a &lt;b&gt;Go&lt;/b&gt; developer&lt;/p&gt;</description>
    <pubDate>Fri, 16 Oct 2026 08:00:00 GMT</pubDate>
    <author>ann@example.com (Ann)</author>
  </item>
  <item>
    <title>Second</title>
    <link>https://www.facebook.com/groups/123/posts/2/</link>
  </item>
</channel>
</rss>`

var src = types.Source{Identifier: "123", CanonicalAddress: "https://www.facebook.com/groups/123", Name: "Go jobs", Enabled: true}

func newFetcher(template string, sendCookies bool) *Fetcher {
	return New(Config{
		URLTemplate: template,
		SendCookies: sendCookies,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestFeedURL(t *testing.T) {
	f := newFetcher("https://bridge.local/?action=display&bridge=FacebookBridge&g={id}&u={address}", false)
	assert.Equal(t,
		"https://bridge.local/?action=display&bridge=FacebookBridge&g=123&u=https%3A%2F%2Fwww.facebook.com%2Fgroups%2F123",
		f.FeedURL(src))
}

func TestFetch_MapsEntries(t *testing.T) {
	var cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		assert.Equal(t, "/groups/123.rss", r.URL.Path)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, bridgeFeed)
	}))
	defer srv.Close()

	f := newFetcher(srv.URL+"/groups/{id}.rss", true)
	require.NoError(t, f.Initialize(context.Background()))

	items, err := f.Fetch(context.Background(), src, types.Credentials{Raw: "c_user=1"}, types.FetchOptions{MaxItems: 10})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "c_user=1", cookie)
	assert.Equal(t, "https://www.facebook.com/groups/123/posts/1/", items[0]["link"])
	assert.Equal(t, "2026-10-16T08:00:00Z", items[0]["published"])
	assert.Equal(t, "Ann", items[0]["author_name"])
	assert.NotContains(t, items[0], "author")

	// The normalizer prefers content over title and strips the markup.
	post, ok := processors.NewNormalizer(processors.DefaultAliases).Normalize(items[0], src)
	require.True(t, ok)
	assert.Equal(t, "Hiring a Go developer", post.Text)
	assert.Equal(t, "https://www.facebook.com/groups/123/posts/1/", post.URL)
	assert.True(t, post.HasTimestamp())
	assert.Empty(t, post.AuthorURL)
}

func TestFetch_MaxItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, bridgeFeed)
	}))
	defer srv.Close()

	items, err := newFetcher(srv.URL+"/{id}", false).Fetch(context.Background(), src, types.Credentials{}, types.FetchOptions{MaxItems: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFetch_StatusErrors(t *testing.T) {
	for status, permanent := range map[int]bool{
		http.StatusForbidden:          true,
		http.StatusServiceUnavailable: false,
		http.StatusTooManyRequests:    false,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := newFetcher(srv.URL+"/{id}", false).Fetch(context.Background(), src, types.Credentials{}, types.FetchOptions{})
		srv.Close()

		require.Error(t, err)
		assert.Equal(t, permanent, types.IsPermanent(err), "status %d", status)
	}
}

func TestFetch_GarbageIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "definitely not a feed")
	}))
	defer srv.Close()

	_, err := newFetcher(srv.URL+"/{id}", false).Fetch(context.Background(), src, types.Credentials{}, types.FetchOptions{})
	require.Error(t, err)
	assert.False(t, types.IsPermanent(err))
}

func TestInitialize_ValidatesTemplate(t *testing.T) {
	assert.True(t, types.IsConfigError(newFetcher("", false).Initialize(context.Background())))
	assert.True(t, types.IsConfigError(newFetcher("https://bridge.local/static.rss", false).Initialize(context.Background())))
}
