package lua

import (
	"context"
	"log/slog"

	lua "github.com/yuin/gopher-lua"
)

// LogModule exposes log.debug/info/warn/error to scripts. An optional second
// argument is a table of attributes.
type LogModule struct {
	logger *slog.Logger
}

func NewLogModule(logger *slog.Logger) *LogModule {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogModule{logger: logger}
}

func (l *LogModule) Name() string {
	return "log"
}

func (l *LogModule) Register(L *lua.LState) error {
	logTable := L.NewTable()

	levels := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, level := range levels {
		L.SetField(logTable, name, L.NewFunction(l.logAt(level)))
	}

	L.SetGlobal(l.Name(), logTable)
	return nil
}

func (l *LogModule) logAt(level slog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		message := L.CheckString(1)

		var attrs []any
		if fields, ok := L.Get(2).(*lua.LTable); ok {
			fields.ForEach(func(k, v lua.LValue) {
				attrs = append(attrs, k.String(), ToGoValue(v))
			})
		}

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		l.logger.Log(ctx, level, message, attrs...)
		return 0
	}
}
