// internal/domain/persistence/reconcile.go
package persistence

// Keyed is an item with a stable identity
type Keyed interface {
	Key() string
}

// Reconcile merges the device state into the user's remote state on sign-in.
// An existing remote blob wins; otherwise the local items are adopted.
// The result never holds two items with one key, so running it again is a no-op.
func Reconcile[T Keyed](local, remote []T, remoteFound bool) []T {
	if remoteFound {
		return dedupe(remote)
	}
	return dedupe(local)
}

func dedupe[T Keyed](items []T) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		if seen[it.Key()] {
			continue
		}
		seen[it.Key()] = true
		out = append(out, it)
	}
	return out
}
