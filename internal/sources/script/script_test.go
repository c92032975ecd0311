package script

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

const groupPage = `<html><body><div id="m_group_stories_container">
<article data-utime="1760000000">
  <header><h3><a href="/profile.php?id=5&amp;refid=18">Ann</a></h3></header>
  <div><p>Hiring a Go developer</p><p>Remote, full time</p></div>
  <footer><abbr>2 hrs</abbr><a href="/groups/123/permalink/456/?refid=18&amp;__tn__=R">Full Story</a></footer>
</article>
<article>
  <div><p>Second post</p></div>
  <footer><a href="/groups/123/posts/789/">Full Story</a></footer>
</article>
<article><div></div></article>
</div></body></html>`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSource() types.Source {
	return types.Source{Identifier: "123", CanonicalAddress: "https://www.facebook.com/groups/123", Name: "Go jobs", Kind: "facebook", Enabled: true}
}

func TestEmbeddedScript_ParsesGroupPage(t *testing.T) {
	var gotCookie, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, groupPage)
	}))
	defer srv.Close()

	f := New(Config{Settings: map[string]any{"mobile_host": srv.URL}, Logger: testLogger()})
	require.NoError(t, f.Initialize(context.Background()))
	defer f.Shutdown(context.Background())

	creds := types.Credentials{Raw: "c_user=1; xs=abc", Origin: "static"}
	items, err := f.Fetch(context.Background(), testSource(), creds, types.FetchOptions{MaxItems: 20})
	require.NoError(t, err)

	assert.Equal(t, "c_user=1; xs=abc", gotCookie)
	assert.Equal(t, "/groups/123", gotPath)

	require.Len(t, items, 2)
	assert.Equal(t, "Hiring a Go developer\nRemote, full time", items[0]["text"])
	assert.Equal(t, "https://www.facebook.com/groups/123/permalink/456/", items[0]["url"])
	assert.Equal(t, "https://www.facebook.com/profile.php?id=5&refid=18", items[0]["author_url"])
	assert.Equal(t, float64(1760000000), items[0]["time"])
	assert.Equal(t, "https://www.facebook.com/groups/123/posts/789/", items[1]["url"])
}

func TestEmbeddedScript_MaxItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, groupPage)
	}))
	defer srv.Close()

	f := New(Config{Settings: map[string]any{"mobile_host": srv.URL}, Logger: testLogger()})
	require.NoError(t, f.Initialize(context.Background()))
	defer f.Shutdown(context.Background())

	items, err := f.Fetch(context.Background(), testSource(), types.Credentials{Raw: "c_user=1"}, types.FetchOptions{MaxItems: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestEmbeddedScript_FailureKinds(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusForbidden)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	f := New(Config{Settings: map[string]any{"mobile_host": srv.URL}, Logger: testLogger()})
	require.NoError(t, f.Initialize(context.Background()))
	defer f.Shutdown(context.Background())

	_, err := f.Fetch(context.Background(), testSource(), types.Credentials{Raw: "c_user=1"}, types.FetchOptions{MaxItems: 5})
	require.Error(t, err)
	assert.True(t, types.IsPermanent(err))

	status.Store(http.StatusBadGateway)
	_, err = f.Fetch(context.Background(), testSource(), types.Credentials{Raw: "c_user=1"}, types.FetchOptions{MaxItems: 5})
	require.Error(t, err)
	assert.False(t, types.IsPermanent(err))
}

func TestEmbeddedScript_EmptyCredentialsFetchAnonymously(t *testing.T) {
	var hits atomic.Int32
	var sentCookie atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if _, ok := r.Header["Cookie"]; ok {
			sentCookie.Store(true)
		}
		_, _ = io.WriteString(w, groupPage)
	}))
	defer srv.Close()

	f := New(Config{Settings: map[string]any{"mobile_host": srv.URL}, Logger: testLogger()})
	require.NoError(t, f.Initialize(context.Background()))
	defer f.Shutdown(context.Background())

	items, err := f.Fetch(context.Background(), testSource(), types.Credentials{Origin: "none"}, types.FetchOptions{MaxItems: 5})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(1), hits.Load())
	assert.False(t, sentCookie.Load())
}

func TestEmbeddedScript_LoginRedirectIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body><form id="login_form"></form></body></html>`)
	}))
	defer srv.Close()

	f := New(Config{Settings: map[string]any{"mobile_host": srv.URL}, Logger: testLogger()})
	require.NoError(t, f.Initialize(context.Background()))
	defer f.Shutdown(context.Background())

	_, err := f.Fetch(context.Background(), testSource(), types.Credentials{Raw: "c_user=1"}, types.FetchOptions{MaxItems: 5})
	require.Error(t, err)
	assert.True(t, types.IsPermanent(err))
	assert.Contains(t, err.Error(), "login")
}

func TestScriptFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
		local json = require("json")
		function fetch(source, credentials, options)
			local decoded = json.decode('[{"message":"from disk","permalink":"https://x/1"}]')
			decoded[1].group = source.id
			decoded[1].window = options.window
			decoded[1].cookie = credentials.cookies.c_user
			return decoded
		end
	`), 0o600))

	f := New(Config{ScriptPath: path, Logger: testLogger()})
	require.NoError(t, f.Initialize(context.Background()))
	defer f.Shutdown(context.Background())

	creds := types.Credentials{Raw: "c_user=42", Cookies: map[string]string{"c_user": "42"}}
	items, err := f.Fetch(context.Background(), testSource(), creds, types.FetchOptions{MaxItems: 5, Window: 3600_000_000_000})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "from disk", items[0]["message"])
	assert.Equal(t, "123", items[0]["group"])
	assert.Equal(t, float64(3600), items[0]["window"])
	assert.Equal(t, "42", items[0]["cookie"])
}

func TestScriptReturningFailureTuple(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failing.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
		function fetch(source, credentials, options)
			return nil, "checkpoint required", "permanent"
		end
	`), 0o600))

	f := New(Config{ScriptPath: path, Logger: testLogger()})
	require.NoError(t, f.Initialize(context.Background()))
	defer f.Shutdown(context.Background())

	_, err := f.Fetch(context.Background(), testSource(), types.Credentials{}, types.FetchOptions{})
	require.Error(t, err)
	assert.True(t, types.IsPermanent(err))
	assert.Contains(t, err.Error(), "checkpoint required")
}

func TestScriptWithoutFetchFunction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.lua")
	require.NoError(t, os.WriteFile(path, []byte(`local x = 1`), 0o600))

	f := New(Config{ScriptPath: path, Logger: testLogger()})
	err := f.Initialize(context.Background())
	assert.ErrorContains(t, err, "does not define fetch()")
}
