package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestWaitBlocksUntilAllTasksFinish(t *testing.T) {
	tr, _ := New(context.Background())

	var done int32
	for i := 0; i < 5; i++ {
		tr.Go(func() error {
			atomic.AddInt32(&done, 1)
			return nil
		})
	}
	tr.Wait()

	if got := atomic.LoadInt32(&done); got != 5 {
		t.Fatalf("done = %d, want 5", got)
	}
}

func TestWaitDoesNotFailOnIndividualTaskError(t *testing.T) {
	tr, _ := New(context.Background())

	tr.Go(func() error { return nil })
	tr.Go(func() error { return errors.New("boom") })
	tr.Go(func() error { return nil })

	// Wait must return regardless of the failing task; there is no error
	// return to check because failures are collected, not propagated.
	tr.Wait()
}
