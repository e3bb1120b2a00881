// Package cache persists retrieved evidence and model responses in BadgerDB
// so repeated runs over the same corpus skip the slow collaborators.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/agenthands/anatomy-eval/internal/config"
)

type Config struct {
	// Path is the database directory; ignored when InMemory is set.
	Path string

	InMemory bool

	SyncWrites bool

	// Logger receives BadgerDB's internal logs. nil silences them.
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{SyncWrites: true}
}

func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// FromConfig maps the [cache] section of the application config.
func FromConfig(cfg config.CacheConfig, logger *slog.Logger) Config {
	if cfg.InMemory || cfg.Path == "" {
		c := InMemoryConfig()
		c.Logger = logger
		return c
	}
	c := DefaultConfig()
	c.Path = cfg.Path
	c.Logger = logger
	return c
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent cache")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return db, nil
}
