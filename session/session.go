// Package session routes invalidation signals from the remote authority to
// the detector of the affected document.
//
// An invalidation carries the new remote version and, optionally, the remote
// snapshot. Without a payload the snapshot is fetched first. Passes for the
// same document are serialized; passes for different documents run
// concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/brunoga/optimistic"
)

var (
	// ErrUnknownSession is returned for keys that were never registered.
	ErrUnknownSession = errors.New("session: unknown document")
	// ErrNoPayload is returned when an invalidation has no payload and the
	// hub has no Fetcher.
	ErrNoPayload = errors.New("session: no payload and no fetcher")
)

// Fetcher retrieves the current remote snapshot of a document. An empty
// version means the remote side did not report one.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (version string, raw []byte, err error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, key string) (string, []byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, key string) (string, []byte, error) {
	return f(ctx, key)
}

// ReportHandler receives every report produced by the hub.
type ReportHandler func(key string, report *optimistic.Report)

type entry struct {
	mu       sync.Mutex
	detector *optimistic.Detector
	policy   optimistic.Policy
}

// Hub is a registry of tracked documents. It is safe for concurrent use.
type Hub struct {
	entries *xsync.MapOf[string, *entry]
	fetcher Fetcher
	handler ReportHandler
	logger  *zap.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithFetcher sets the Fetcher used for invalidations without payload.
func WithFetcher(f Fetcher) Option {
	return func(h *Hub) { h.fetcher = f }
}

// WithReportHandler sets the function receiving reports.
func WithReportHandler(fn ReportHandler) Option {
	return func(h *Hub) { h.handler = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		entries: xsync.NewMapOf[string, *entry](),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register starts routing invalidations for key to detector. A previous
// registration under the same key is replaced once its running pass, if any,
// is over.
func (h *Hub) Register(key string, detector *optimistic.Detector, policy optimistic.Policy) {
	e, loaded := h.entries.LoadOrStore(key, &entry{detector: detector, policy: policy})
	if loaded {
		// Waits for a running pass of the previous registration.
		e.mu.Lock()
		e.detector, e.policy = detector, policy
		e.mu.Unlock()
	}
	h.logger.Debug("registered document", zap.String("key", key), zap.Stringer("policy", policy))
}

// Unregister stops routing invalidations for key.
func (h *Hub) Unregister(key string) {
	h.entries.Delete(key)
}

// Len returns the number of registered documents.
func (h *Hub) Len() int {
	return h.entries.Size()
}

// SetPolicy changes the policy used by later passes for key.
func (h *Hub) SetPolicy(key string, policy optimistic.Policy) error {
	e, ok := h.entries.Load(key)
	if !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownSession)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = policy
	return nil
}

// Invalidate runs a detection pass for key against the new remote state. The
// payload, when present, is the remote snapshot at version. Otherwise the
// snapshot is fetched, and the version the fetcher reports, if any, replaces
// the given one. The report, if any, is also handed to the
// ReportHandler.
func (h *Hub) Invalidate(ctx context.Context, key, version string, payload []byte) (*optimistic.Report, optimistic.Diagnostics, error) {
	e, ok := h.entries.Load(key)
	if !ok {
		return nil, nil, fmt.Errorf("%q: %w", key, ErrUnknownSession)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(payload) == 0 {
		if h.fetcher == nil {
			return nil, nil, fmt.Errorf("%q: %w", key, ErrNoPayload)
		}
		h.logger.Debug("fetching remote snapshot", zap.String("key", key))
		fetched, raw, err := h.fetcher.Fetch(ctx, key)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching %q: %w", key, err)
		}
		if fetched != "" {
			version = fetched
		} else if version == "" {
			version = e.detector.Tracker().Version()
		}
		payload = raw
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	report, diags, err := e.detector.DetectRaw(version, payload, e.policy)
	if err != nil {
		return nil, nil, fmt.Errorf("invalidating %q: %w", key, err)
	}
	if len(diags) > 0 {
		h.logger.Warn("detection pass had diagnostics", zap.String("key", key), zap.Error(diags.Err()))
	}
	if report != nil && h.handler != nil {
		h.handler(key, report)
	}
	return report, diags, nil
}

// Reverse discards the unsaved edits of key, restoring the server state held
// by report.
func (h *Hub) Reverse(key string, report *optimistic.Report) (optimistic.Diagnostics, error) {
	e, ok := h.entries.Load(key)
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrUnknownSession)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detector.Reverse(report), nil
}
