package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"docrelay/internal/actor"
	"docrelay/internal/broker"
	"docrelay/internal/broker/brokertest"
	"docrelay/internal/snapshotstore"
)

func newTestRegistry(t *testing.T, gw broker.Gateway) *Registry {
	t.Helper()
	factory := func() (broker.Gateway, error) { return gw, nil }
	sup := broker.NewSupervisor(gw, factory, nil)
	r := New(sup, snapshotstore.NoopStore{}, snapshotstore.NoopAuditor{}, noopTracker{}, actor.TestConfig())
	t.Cleanup(func() { r.InvalidateAll() })
	return r
}

type noopTracker struct{}

func (noopTracker) Go(fn func() error) { go fn() }

func TestGetCreatesOnceAndReturnsSameActor(t *testing.T) {
	gw := brokertest.NewFake()
	r := newTestRegistry(t, gw)

	a1, err := r.Get(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a2, err := r.Get(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a1 != a2 {
		t.Fatalf("expected the same actor instance for repeated Get calls")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestGetCollapsesConcurrentCreationsForSameName(t *testing.T) {
	gw := brokertest.NewFake()
	r := newTestRegistry(t, gw)

	const n = 20
	results := make([]*actor.Actor, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			a, err := r.Get(context.Background(), "shared")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = a
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("concurrent Get calls returned different actors")
		}
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestInvalidateAllClearsRegistry(t *testing.T) {
	gw := brokertest.NewFake()
	r := newTestRegistry(t, gw)

	if _, err := r.Get(context.Background(), "doc1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := r.Get(context.Background(), "doc2"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	r.InvalidateAll()

	deadline := time.Now().Add(time.Second)
	for r.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after InvalidateAll, want 0", r.Len())
	}
}

func TestGetRecreatesAfterActorSelfCloses(t *testing.T) {
	gw := brokertest.NewFake()
	r := newTestRegistry(t, gw)

	a1, err := r.Get(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	a1.Close()

	deadline := time.Now().Add(time.Second)
	for r.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if r.Len() != 0 {
		t.Fatalf("expected the closed actor to be reaped from the registry")
	}

	a2, err := r.Get(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a2 == a1 {
		t.Fatalf("expected a fresh actor after the previous one closed")
	}
}
