// Package script fetches group posts by running a Lua fetch function.
package script

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cjoudrey/gluahttp"
	lualib "github.com/yuin/gopher-lua"
	json "layeh.com/gopher-json"

	"github.com/sergeygrin4/fb-job-parser-service/internal/lua"
	"github.com/sergeygrin4/fb-job-parser-service/internal/sources"
	"github.com/sergeygrin4/fb-job-parser-service/internal/types"
)

//go:embed scripts/*.lua
var embedded embed.FS

const (
	Name          = "script"
	DefaultScript = "facebook"
	entryPoint    = "fetch"
)

type Config struct {
	// ScriptPath points at a script on disk. When empty the embedded ScriptName is used.
	ScriptPath  string
	ScriptName  string
	HTTPTimeout time.Duration
	Settings    map[string]any
	Logger      *slog.Logger
}

type Fetcher struct {
	cfg     Config
	runtime *lua.Runtime
	logger  *slog.Logger
}

func New(cfg Config) *Fetcher {
	if cfg.ScriptName == "" {
		cfg.ScriptName = DefaultScript
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.Settings == nil {
		cfg.Settings = map[string]any{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{cfg: cfg, logger: cfg.Logger.With("fetcher", Name)}
}

func (f *Fetcher) Name() string {
	return Name
}

func (f *Fetcher) Initialize(ctx context.Context) error {
	var (
		loader     lua.Loader
		identifier string
	)
	if f.cfg.ScriptPath != "" {
		loader = lua.NewDirLoader(filepath.Dir(f.cfg.ScriptPath))
		identifier = filepath.Base(f.cfg.ScriptPath)
	} else {
		loader = lua.NewFSLoader(embedded, "scripts")
		identifier = f.cfg.ScriptName
	}

	runtime, err := lua.NewRuntime(
		lua.WithLoader(loader),
		lua.WithSecureMode(true),
		lua.WithModules(lua.NewHTMLModule(), lua.NewLogModule(f.logger)),
	)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: f.cfg.HTTPTimeout}
	runtime.Do(func(L *lualib.LState) {
		L.PreloadModule("http", gluahttp.NewHttpModule(httpClient).Loader)
		json.Preload(L)
	})

	source, err := loader.Load(identifier)
	if err != nil {
		runtime.Close()
		return err
	}
	if err := runtime.LoadScript(source); err != nil {
		runtime.Close()
		return err
	}
	if !runtime.HasFunction(entryPoint) {
		runtime.Close()
		return fmt.Errorf("script %s does not define %s()", identifier, entryPoint)
	}

	f.runtime = runtime
	f.logger.Info("Script fetcher initialized", "script", identifier)
	return nil
}

// Fetch calls fetch(source, credentials, options). The script returns a list of item
// tables, or nil followed by a message and "permanent" or "transient".
func (f *Fetcher) Fetch(ctx context.Context, src types.Source, creds types.Credentials, opts types.FetchOptions) ([]types.RawItem, error) {
	if f.runtime == nil {
		return nil, types.NewPermanentError(Name, "fetcher not initialized")
	}

	cookies := creds.Cookies
	if cookies == nil {
		cookies = map[string]string{}
	}

	results, err := f.runtime.Call(ctx, entryPoint,
		map[string]any{
			"id":      sources.GroupID(src.CanonicalAddress),
			"address": src.CanonicalAddress,
			"name":    src.Name,
			"kind":    src.Kind,
		},
		map[string]any{
			"raw":     creds.Raw,
			"cookies": cookies,
			"origin":  creds.Origin,
		},
		map[string]any{
			"max_items": opts.MaxItems,
			"window":    opts.Window,
			"settings":  f.cfg.Settings,
		},
	)
	if err != nil {
		return nil, types.NewTransientError(Name, err)
	}

	if len(results) == 0 {
		return []types.RawItem{}, nil
	}

	if results[0] == nil && len(results) > 1 {
		message, _ := results[1].(string)
		kind := ""
		if len(results) > 2 {
			kind, _ = results[2].(string)
		}
		return nil, &types.FetchError{
			Kind:    types.ParseFailureKind(strings.ToLower(kind)),
			Source:  Name,
			Message: message,
		}
	}

	records, err := lua.ToRecords(results[0])
	if err != nil {
		return nil, types.NewTransientError(Name, err)
	}

	items := make([]types.RawItem, 0, len(records))
	for _, r := range records {
		items = append(items, types.RawItem(r))
	}
	return items, nil
}

func (f *Fetcher) Shutdown(ctx context.Context) error {
	if f.runtime == nil {
		return nil
	}
	return f.runtime.Close()
}
