// Package config loads engine settings from YAML.
//
//	policy: server
//	identityField: id
//	ignoreFields: [updatedAt]
//	collectionSort:
//	  default: id
//	  shoes: style
//	log:
//	  level: debug
//	  development: true
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/brunoga/optimistic"
)

// DefaultSortKey is the collectionSort entry applied to every collection
// without its own key.
const DefaultSortKey = "default"

// Config is the file form of the engine settings.
type Config struct {
	Policy         string            `yaml:"policy"`
	IdentityField  string            `yaml:"identityField"`
	IgnoreFields   []string          `yaml:"ignoreFields"`
	CollectionSort map[string]string `yaml:"collectionSort"`
	Log            Log               `yaml:"log"`
}

// Log configures the zap logger handed to the engine.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML document and validates it.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := c.ResolvedPolicy(); err != nil {
		return nil, err
	}
	if _, err := c.level(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ResolvedPolicy returns the configured resolution policy.
func (c *Config) ResolvedPolicy() (optimistic.Policy, error) {
	return optimistic.ParsePolicy(c.Policy)
}

func (c *Config) level() (zapcore.Level, error) {
	if c.Log.Level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return lvl, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// Logger builds the zap logger described by the log section.
func (c *Config) Logger() (*zap.Logger, error) {
	lvl, err := c.level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// Options converts the configuration into engine options.
func (c *Config) Options() ([]optimistic.Option, error) {
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	opts := []optimistic.Option{optimistic.WithLogger(logger)}
	if c.IdentityField != "" {
		opts = append(opts, optimistic.WithIdentityField(c.IdentityField))
	}
	if len(c.IgnoreFields) > 0 {
		opts = append(opts, optimistic.WithIgnoredFields(c.IgnoreFields...))
	}
	for collection, key := range c.CollectionSort {
		if collection == DefaultSortKey {
			opts = append(opts, optimistic.WithDefaultCollectionSort(key))
			continue
		}
		opts = append(opts, optimistic.WithCollectionSort(collection, key))
	}
	return opts, nil
}
