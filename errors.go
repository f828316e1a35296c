package optimistic

import "errors"

var (
	// ErrStateNotFound is returned by a StateStore holding no window for a key.
	ErrStateNotFound = errors.New("optimistic: no persisted state")
	// ErrNoStateStore is returned when restoring a tracker without a store.
	ErrNoStateStore = errors.New("optimistic: no state store configured")
)
