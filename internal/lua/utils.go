package lua

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func ToLuaValue(L *lua.LState, value any) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return v
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case time.Duration:
		return lua.LNumber(v.Seconds())
	case time.Time:
		return lua.LNumber(v.Unix())
	case map[string]string:
		table := L.NewTable()
		for key, val := range v {
			table.RawSetString(key, lua.LString(val))
		}
		return table
	case map[string]any:
		table := L.NewTable()
		for key, val := range v {
			table.RawSetString(key, ToLuaValue(L, val))
		}
		return table
	case []string:
		table := L.NewTable()
		for _, val := range v {
			table.Append(lua.LString(val))
		}
		return table
	case []any:
		table := L.NewTable()
		for i, val := range v {
			table.RawSetInt(i+1, ToLuaValue(L, val))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// ToGoValue converts a Lua value. Tables with a non-empty array part become []any,
// other tables become map[string]any keyed by their string keys.
func ToGoValue(lv lua.LValue) any {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if maxn := v.MaxN(); maxn > 0 {
			slice := make([]any, 0, maxn)
			for i := 1; i <= maxn; i++ {
				slice = append(slice, ToGoValue(v.RawGetInt(i)))
			}
			return slice
		}

		m := make(map[string]any)
		v.ForEach(func(key, value lua.LValue) {
			if k, ok := key.(lua.LString); ok {
				m[string(k)] = ToGoValue(value)
			}
		})
		return m
	default:
		return nil
	}
}

// ToRecords converts a script result into a list of records. An empty table is an
// empty list, and entries that are not tables are dropped.
func ToRecords(value any) ([]map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return []map[string]any{}, nil
	case map[string]any:
		if len(v) == 0 {
			return []map[string]any{}, nil
		}
		return nil, fmt.Errorf("expected array of items, got table with keys")
	case []any:
		records := make([]map[string]any, 0, len(v))
		for _, entry := range v {
			if m, ok := entry.(map[string]any); ok {
				records = append(records, m)
			}
		}
		return records, nil
	default:
		return nil, fmt.Errorf("expected array of items, got %T", value)
	}
}
