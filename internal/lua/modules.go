package lua

import lua "github.com/yuin/gopher-lua"

// Module is a Go-backed library exposed to scripts as a global table.
type Module interface {
	Name() string
	Register(L *lua.LState) error
}

func RegisterModules(L *lua.LState, modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(L); err != nil {
			return err
		}
	}
	return nil
}
