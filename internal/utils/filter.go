package utils

func FilterArray[T any](input []T, predicate func(T) bool) []T {
	filtered := make([]T, 0)
	for _, item := range input {
		if predicate(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// UniqueBy keeps the first element for every key, preserving order.
func UniqueBy[T any, K comparable](input []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(input))
	result := make([]T, 0, len(input))
	for _, item := range input {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, item)
	}
	return result
}
