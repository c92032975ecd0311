package lua

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

type Loader interface {
	Load(identifier string) (string, error)
}

// FSLoader resolves script identifiers inside a file system, appending ".lua" when
// the identifier has no extension. It serves both embedded scripts and a directory
// on disk.
type FSLoader struct {
	fsys     fs.FS
	basePath string
}

func NewFSLoader(fsys fs.FS, basePath string) *FSLoader {
	if basePath == "" {
		basePath = "."
	}
	return &FSLoader{fsys: fsys, basePath: basePath}
}

func NewDirLoader(dir string) *FSLoader {
	return NewFSLoader(os.DirFS(dir), ".")
}

func (l *FSLoader) Load(identifier string) (string, error) {
	name := path.Join(l.basePath, strings.ReplaceAll(identifier, ".", "/"))
	if strings.HasSuffix(identifier, ".lua") {
		name = path.Join(l.basePath, identifier)
	} else {
		name += ".lua"
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return "", fmt.Errorf("failed to load script %s: %w", identifier, err)
	}
	return string(data), nil
}

// SetupRequire replaces require so that preloaded Go modules still resolve first and
// everything else comes from loader. Loaded script modules are cached in package.loaded.
func SetupRequire(L *lua.LState, loader Loader) {
	originalRequire := L.GetGlobal("require")

	L.SetGlobal("require", L.NewFunction(func(L *lua.LState) int {
		module := L.CheckString(1)

		pkg := L.GetGlobal("package")
		if preload, ok := L.GetField(pkg, "preload").(*lua.LTable); ok && L.GetField(preload, module) != lua.LNil {
			L.Push(originalRequire)
			L.Push(lua.LString(module))
			L.Call(1, 1)
			return 1
		}

		loaded, _ := L.GetField(pkg, "loaded").(*lua.LTable)
		if loaded != nil {
			if cached := L.GetField(loaded, module); cached != lua.LNil {
				L.Push(cached)
				return 1
			}
		}

		source, err := loader.Load(module)
		if err != nil {
			L.RaiseError("failed to require module %s: %s", module, err.Error())
			return 0
		}

		fn, err := L.LoadString(source)
		if err != nil {
			L.RaiseError("failed to load module %s: %s", module, err.Error())
			return 0
		}

		L.Push(fn)
		L.Call(0, 1)
		result := L.Get(-1)
		if result == lua.LNil {
			result = lua.LTrue
			L.Pop(1)
			L.Push(result)
		}
		if loaded != nil {
			L.SetField(loaded, module, result)
		}
		return 1
	}))
}
