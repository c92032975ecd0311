package lua

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Runtime wraps a single Lua state. An LState is not safe for concurrent use, so
// every call into the state is serialized.
type Runtime struct {
	mu         sync.Mutex
	state      *lua.LState
	secureMode bool
	modules    []Module
	loader     Loader
}

type RuntimeOption func(*Runtime)

func WithLoader(loader Loader) RuntimeOption {
	return func(r *Runtime) {
		r.loader = loader
	}
}

func WithSecureMode(secure bool) RuntimeOption {
	return func(r *Runtime) {
		r.secureMode = secure
	}
}

func WithModules(modules ...Module) RuntimeOption {
	return func(r *Runtime) {
		r.modules = append(r.modules, modules...)
	}
}

func NewRuntime(options ...RuntimeOption) (*Runtime, error) {
	r := &Runtime{
		state:      lua.NewState(),
		secureMode: true,
	}

	for _, opt := range options {
		opt(r)
	}

	if r.loader != nil {
		SetupRequire(r.state, r.loader)
	}
	if r.secureMode {
		r.setupSecureState()
	}
	if err := RegisterModules(r.state, r.modules...); err != nil {
		r.state.Close()
		return nil, fmt.Errorf("failed to register lua module: %w", err)
	}

	return r, nil
}

// Do runs fn with exclusive access to the underlying state. Preloading Go modules
// goes through here.
func (r *Runtime) Do(fn func(L *lua.LState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.state)
}

func (r *Runtime) setupSecureState() {
	for _, name := range []string{"os", "io", "debug", "dofile", "loadfile"} {
		r.state.SetGlobal(name, lua.LNil)
	}
}

func (r *Runtime) LoadScript(scriptContent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.state.DoString(scriptContent); err != nil {
		return fmt.Errorf("failed to load script: %w", err)
	}
	return nil
}

func (r *Runtime) HasFunction(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.state.GetGlobal(name).(*lua.LFunction)
	return ok
}

// Call invokes the global function name and returns all of its results converted to
// Go values. ctx cancels the script between VM instructions.
func (r *Runtime) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn, ok := r.state.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("function %s not found", name)
	}

	r.state.SetContext(ctx)
	defer r.state.RemoveContext()

	base := r.state.GetTop()
	r.state.Push(fn)
	for _, arg := range args {
		r.state.Push(ToLuaValue(r.state, arg))
	}

	if err := r.state.PCall(len(args), lua.MultRet, nil); err != nil {
		r.state.SetTop(base)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("lua execution error: %w", err)
	}

	top := r.state.GetTop()
	results := make([]any, 0, top-base)
	for i := base + 1; i <= top; i++ {
		results = append(results, ToGoValue(r.state.Get(i)))
	}
	r.state.SetTop(base)

	return results, nil
}

func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != nil {
		r.state.Close()
		r.state = nil
	}
	return nil
}
