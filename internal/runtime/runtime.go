// Package runtime wires storage, configuration, and the provider facade for
// a single-node ystore instance.
package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/rzbill/ystore/internal/config"
	"github.com/rzbill/ystore/internal/provider"
	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
	"github.com/rzbill/ystore/pkg/crdt"
	logpkg "github.com/rzbill/ystore/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config  cfgpkg.Config
	Library crdt.Library
	Logger  *logpkg.Logger
	// Metrics optionally observes storage operations.
	Metrics pebblestore.MetricsHook
}

// Runtime owns the Pebble instance and the provider built over it.
type Runtime struct {
	db       *pebblestore.DB
	config   cfgpkg.Config
	provider *provider.Provider
	logger   *logpkg.Logger
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	if opts.Library == nil {
		return nil, errors.New("runtime: a CRDT library is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	mode, err := pebblestore.ParseFsyncMode(opts.Config.FsyncMode)
	if err != nil {
		return nil, err
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = logMetrics{logger: logger.WithComponent("storage")}
	}
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.Config.DataDir,
		Fsync:         mode,
		FsyncInterval: time.Duration(opts.Config.FsyncIntervalMs) * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		return nil, err
	}
	p := provider.New(db, opts.Library, provider.Options{
		MaxRecordSize:  opts.Config.MaxRecordSize,
		CoalesceWindow: time.Duration(opts.Config.CoalesceWindowMs) * time.Millisecond,
		PerDocKeyspace: opts.Config.PerDocKeyspace,
		Logger:         logger,
	})
	return &Runtime{db: db, config: opts.Config, provider: p, logger: logger}, nil
}

// logMetrics is the default storage observer: debug-level log lines, so a
// verbose run surfaces storage timings without a metrics backend.
type logMetrics struct {
	logger *logpkg.Logger
}

func (m logMetrics) ObserveWrite(elapsed time.Duration, bytes int) {
	m.logger.Debug("storage write", "elapsed", elapsed, "bytes", bytes)
}

func (m logMetrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.logger.Debug("storage read", "elapsed", elapsed, "bytes", bytes)
}

func (m logMetrics) ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int) {
	m.logger.Debug("storage batch commit", "elapsed", elapsed, "ops", numOps, "bytes", bytes)
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple storage liveness check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Provider returns the persistence facade.
func (r *Runtime) Provider() *provider.Provider { return r.provider }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// DB exposes the underlying store for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }
