package actor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

func newFetcher(url string) *Fetcher {
	return New(Config{
		Endpoint: url,
		Token:    "tok",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

var src = types.Source{Identifier: "123", CanonicalAddress: "https://www.facebook.com/groups/123", Enabled: true}

func TestFetch_SendsRunInput(t *testing.T) {
	var got runInput
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `[{"text":"Hiring","url":"https://www.facebook.com/groups/123/posts/1","time":"2026-10-16T08:00:00Z"}]`)
	}))
	defer srv.Close()

	f := newFetcher(srv.URL)
	require.NoError(t, f.Initialize(context.Background()))

	creds := types.Credentials{Raw: "xs=2; c_user=1", Cookies: map[string]string{"xs": "2", "c_user": "1"}}
	items, err := f.Fetch(context.Background(), src, creds, types.FetchOptions{MaxItems: 20, Window: 24 * time.Hour})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, []startURL{{URL: src.CanonicalAddress}}, got.StartURLs)
	assert.Equal(t, 20, got.MaxItems)
	assert.Equal(t, "24h0m0s", got.Window)
	require.Len(t, got.Cookies, 2)
	assert.Equal(t, cookie{Name: "c_user", Value: "1", Domain: ".facebook.com"}, got.Cookies[0])

	require.Len(t, items, 1)
	assert.Equal(t, "Hiring", items[0]["text"])
}

func TestFetch_WrappedItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"items":[{"message":"a"},{"message":"b"}]}`)
	}))
	defer srv.Close()

	items, err := newFetcher(srv.URL).Fetch(context.Background(), src, types.Credentials{}, types.FetchOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	items, err := newFetcher(srv.URL).Fetch(context.Background(), src, types.Credentials{}, types.FetchOptions{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestFetch_StatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		permanent bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, "nope")
			}))
			defer srv.Close()

			_, err := newFetcher(srv.URL).Fetch(context.Background(), src, types.Credentials{}, types.FetchOptions{})
			require.Error(t, err)
			assert.Equal(t, tc.permanent, types.IsPermanent(err))
		})
	}
}

func TestFetch_TransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newFetcher(url).Fetch(context.Background(), src, types.Credentials{}, types.FetchOptions{})
	require.Error(t, err)
	assert.False(t, types.IsPermanent(err))
}

func TestFetch_MalformedDatasetIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"text":`)
	}))
	defer srv.Close()

	_, err := newFetcher(srv.URL).Fetch(context.Background(), src, types.Credentials{}, types.FetchOptions{})
	require.Error(t, err)
	assert.False(t, types.IsPermanent(err))
}

func TestInitialize_RequiresEndpoint(t *testing.T) {
	err := New(Config{}).Initialize(context.Background())
	assert.True(t, types.IsConfigError(err))
}
