package serverrun

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/ystore/internal/config"
	"github.com/rzbill/ystore/pkg/crdt/crdttest"
)

func TestRunServesUntilCanceled(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.HTTPAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Config: cfg, Library: crdttest.New()})
	}()

	// Nothing to probe without knowing the bound port; just make sure Run
	// does not exit on its own and stops cleanly on cancel.
	select {
	case err := <-done:
		t.Fatalf("run exited early: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop after cancel")
	}
}
