package optimistic

import (
	"time"

	"go.uber.org/zap"
)

// CompareResult is the outcome of a custom field comparator.
type CompareResult int

const (
	// CompareDefault lets the field go through the structural diff.
	CompareDefault CompareResult = iota
	// CompareEqual declares both values equivalent: no operations are
	// produced and the field is excluded from the structural diff.
	CompareEqual
	// CompareCustom replaces the structural diff of the field with the
	// operations returned by the comparator.
	CompareCustom
)

// Comparator compares the original and current values of one field. The
// returned operations are only used with CompareCustom.
type Comparator func(original, current any) (CompareResult, OperationSet)

// StateStore persists the agreed "original" snapshot and version token so
// a tracker can resume after a restart.
type StateStore interface {
	SaveState(key string, state State) error
	LoadState(key string) (State, error)
}

// State is the persisted agreement window of one document.
type State struct {
	Version  string   `json:"version"`
	Original Snapshot `json:"original"`
}

// Recorder observes detection passes. metrics.Collector implements it.
type Recorder interface {
	ObservePass(kind ReportKind, conflicts, resolved, discarded int, elapsed time.Duration)
	ObserveDiagnostics(ds Diagnostics)
}

// Option configures a Tracker, Detector or Applier.
type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (f optionFunc) apply(c *config) {
	f(c)
}

type config struct {
	ignored       []string
	sortKeys      map[string]string
	defaultSort   string
	comparators   map[string]Comparator
	compareOrder  []string
	identityField string
	logger        *zap.Logger
	store         StateStore
	storeKey      string
	recorder      Recorder
}

func newConfig(opts []Option) *config {
	c := &config{
		sortKeys:      make(map[string]string),
		comparators:   make(map[string]Comparator),
		identityField: DefaultIdentityField,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt.apply(c)
	}
	return c
}

// WithIgnoredFields strips the named top-level fields from the original and
// remote snapshots before they are compared.
func WithIgnoredFields(names ...string) Option {
	return optionFunc(func(c *config) {
		c.ignored = append(c.ignored, names...)
	})
}

// WithCollectionSort sorts the named collection by key in the current
// snapshot before it is diffed against the original.
func WithCollectionSort(collection, key string) Option {
	return optionFunc(func(c *config) {
		c.sortKeys[collection] = key
	})
}

// WithDefaultCollectionSort sorts every collection without its own sort key
// by key.
func WithDefaultCollectionSort(key string) Option {
	return optionFunc(func(c *config) {
		c.defaultSort = key
	})
}

// WithComparator installs a custom comparator for a top-level field.
func WithComparator(field string, cmp Comparator) Option {
	return optionFunc(func(c *config) {
		if _, ok := c.comparators[field]; !ok {
			c.compareOrder = append(c.compareOrder, field)
		}
		c.comparators[field] = cmp
	})
}

// WithIdentityField selects the field used to identify array elements and
// collection members. The default is "id".
func WithIdentityField(name string) Option {
	return optionFunc(func(c *config) {
		if name != "" {
			c.identityField = name
		}
	})
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithStateStore persists the original snapshot and version under key
// whenever they advance.
func WithStateStore(store StateStore, key string) Option {
	return optionFunc(func(c *config) {
		c.store = store
		c.storeKey = key
	})
}

// WithRecorder reports pass outcomes to r.
func WithRecorder(r Recorder) Option {
	return optionFunc(func(c *config) {
		c.recorder = r
	})
}
