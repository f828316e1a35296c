// Package store persists the agreed "original" snapshot and version token of
// documents in a pebble database, so a detector can resume after a restart.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/brunoga/optimistic"
)

const (
	keyPrefix = "state/"
	// '0' follows '/'
	keyUpperBound = "state0"
)

// WriteOptions are used for every write. Windows are small and rewritten on
// every advance, so they are synced.
var WriteOptions = pebble.WriteOptions{Sync: true}

// Options configures Open.
type Options struct {
	pebble.Options
	Logger *zap.Logger
}

// Store is a pebble backed optimistic.StateStore.
type Store struct {
	db     *pebble.DB
	logger *zap.Logger
}

var _ optimistic.StateStore = (*Store)(nil)

// Open opens (or creates) the database in dir.
func Open(dir string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := pebble.Open(dir, &opts.Options)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// DB exposes the underlying database, e.g. for metrics collection.
func (s *Store) DB() *pebble.DB {
	return s.db
}

func stateKey(key string) []byte {
	return []byte(keyPrefix + key)
}

// SaveState implements optimistic.StateStore.
func (s *Store) SaveState(key string, state optimistic.State) error {
	value, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding state %q: %w", key, err)
	}
	if err := s.db.Set(stateKey(key), value, &WriteOptions); err != nil {
		return fmt.Errorf("saving state %q: %w", key, err)
	}
	s.logger.Debug("saved state", zap.String("key", key), zap.String("version", state.Version))
	return nil
}

// LoadState implements optimistic.StateStore. It returns an error wrapping
// optimistic.ErrStateNotFound when nothing is stored under key.
func (s *Store) LoadState(key string) (optimistic.State, error) {
	var state optimistic.State
	value, closer, err := s.db.Get(stateKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return state, fmt.Errorf("loading state %q: %w", key, optimistic.ErrStateNotFound)
	}
	if err != nil {
		return state, fmt.Errorf("loading state %q: %w", key, err)
	}
	defer closer.Close()
	if err := json.Unmarshal(value, &state); err != nil {
		return state, fmt.Errorf("decoding state %q: %w", key, err)
	}
	return state, nil
}

// DeleteState removes the window stored under key.
func (s *Store) DeleteState(key string) error {
	if err := s.db.Delete(stateKey(key), &WriteOptions); err != nil {
		return fmt.Errorf("deleting state %q: %w", key, err)
	}
	return nil
}

// Keys returns the keys of all stored windows.
func (s *Store) Keys() ([]string, error) {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpperBound),
	})
	if err != nil {
		return nil, fmt.Errorf("listing states: %w", err)
	}
	defer it.Close()
	var keys []string
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()[len(keyPrefix):]))
	}
	return keys, it.Error()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
