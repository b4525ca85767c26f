// Package serverrun boots a ystore server instance: storage, provider, and
// the HTTP API, torn down together when the context ends.
package serverrun

import (
	"context"

	cfgpkg "github.com/rzbill/ystore/internal/config"
	"github.com/rzbill/ystore/internal/runtime"
	httpserver "github.com/rzbill/ystore/internal/server/http"
	"github.com/rzbill/ystore/pkg/crdt"
	logpkg "github.com/rzbill/ystore/pkg/log"
)

// Options configures a server run.
type Options struct {
	Config  cfgpkg.Config
	Library crdt.Library
	Logger  *logpkg.Logger
}

// Run serves until ctx is canceled.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	rt, err := runtime.Open(runtime.Options{
		Config:  opts.Config,
		Library: opts.Library,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("ystore starting",
		"data_dir", opts.Config.DataDir,
		"http", opts.Config.HTTPAddr,
		"fsync", opts.Config.FsyncMode,
	)
	srv := httpserver.New(rt, logger)
	defer srv.Close()
	return srv.ListenAndServe(ctx, opts.Config.HTTPAddr)
}
