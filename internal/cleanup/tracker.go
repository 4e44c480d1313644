// Package cleanup implements the Cleanup Tracker (C8): a small registrar
// for in-flight actor teardown tasks that the entry point awaits before
// closing the broker client and the socket server.
package cleanup

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// Tracker collects tasks registered via Go and lets a shutdown path await
// all of them. Individual task failures are logged and collected but never
// propagated to other tasks or to the caller of Go — that mirrors how the
// Document Actor uses it, firing off its own teardown without caring
// whether some unrelated actor's teardown also failed.
type Tracker struct {
	group *errgroup.Group
}

// New returns a Tracker and a context derived from ctx. Wait returns once
// every task registered before it was called has finished; it does not
// return early when ctx is done.
func New(ctx context.Context) (*Tracker, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	return &Tracker{group: g}, gctx
}

// Go registers fn as an in-flight teardown task. A non-nil return is
// logged; it does not cancel sibling tasks or fail Wait.
func (t *Tracker) Go(fn func() error) {
	t.group.Go(func() error {
		if err := fn(); err != nil {
			log.Printf("cleanup: teardown task failed: %v", err)
		}
		return nil
	})
}

// Wait blocks until every task registered so far has returned.
func (t *Tracker) Wait() {
	_ = t.group.Wait()
}
