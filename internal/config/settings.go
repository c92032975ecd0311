package config

import "time"

func GetString(settings map[string]interface{}, key string, defaultValue string) string {
	if val, ok := settings[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

func GetInt(settings map[string]interface{}, key string, defaultValue int) int {
	if val, ok := settings[key]; ok {
		if i, ok := val.(int64); ok {
			return int(i)
		}
		if i, ok := val.(int); ok {
			return i
		}
	}
	return defaultValue
}

func GetBool(settings map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := settings[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultValue
}

func GetStringSlice(settings map[string]interface{}, key string) []string {
	if val, ok := settings[key]; ok {
		if arr, ok := val.([]interface{}); ok {
			result := make([]string, 0, len(arr))
			for _, item := range arr {
				if str, ok := item.(string); ok {
					result = append(result, str)
				}
			}
			return result
		}
	}
	return []string{}
}

func GetStringMap(settings map[string]interface{}, key string) map[string]string {
	if val, ok := settings[key]; ok {
		if m, ok := val.(map[string]interface{}); ok {
			result := make(map[string]string)
			for k, v := range m {
				if str, ok := v.(string); ok {
					result[k] = str
				}
			}
			return result
		}
	}
	return map[string]string{}
}

func GetDuration(settings map[string]interface{}, key string, defaultValue time.Duration) time.Duration {
	if val, ok := settings[key]; ok {
		if str, ok := val.(string); ok {
			if d, err := time.ParseDuration(str); err == nil {
				return d
			}
		}
	}
	return defaultValue
}
