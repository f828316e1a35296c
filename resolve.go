package optimistic

import (
	"github.com/brunoga/optimistic/internal/core"
)

// Resolve returns the value referenced by path inside snapshot. The boolean
// is false when the path does not resolve: a missing key or index, a type
// mismatch along the way, or a path ending in the append marker, which
// denotes "append" rather than a readable location. A present null value
// resolves to (nil, true).
func Resolve(snapshot any, path string) (any, bool) {
	return resolveTokens(plain(snapshot), core.CachedPath(path))
}

func resolveTokens(v any, tokens core.Path) (any, bool) {
	if tokens.IsAppend() {
		return nil, false
	}
	current := v
	for _, token := range tokens {
		switch core.KindOf(current) {
		case core.KindObject:
			m, _ := core.AsObject(current)
			next, ok := m[token]
			if !ok {
				return nil, false
			}
			current = next
		case core.KindArray:
			a, _ := core.AsArray(current)
			idx, ok := core.ParseIndex(token)
			if !ok || idx >= len(a) {
				return nil, false
			}
			current = a[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
