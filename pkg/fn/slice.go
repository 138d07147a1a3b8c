package fn

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Keep returns the first limit elements matching pred, in order. A negative
// limit keeps every match.
func Keep[T any](items []T, limit int, pred func(T) bool) []T {
	var out []T
	for _, v := range items {
		if limit >= 0 && len(out) == limit {
			break
		}
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// Take copies at most n leading elements.
func Take[T any](items []T, n int) []T {
	n = max(0, min(n, len(items)))
	out := make([]T, n)
	copy(out, items)
	return out
}

// GroupBy groups items by key. Each group keeps input order.
func GroupBy[T any, K comparable](items []T, key func(T) K) map[K][]T {
	out := make(map[K][]T)
	for _, v := range items {
		k := key(v)
		out[k] = append(out[k], v)
	}
	return out
}
