// Package registry implements the Document Registry (C5): the process-local
// get-or-create map from document name to running Document Actor.
package registry

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"docrelay/internal/actor"
	"docrelay/internal/broker"
	"docrelay/internal/snapshotstore"
)

var _ broker.Invalidator = (*Registry)(nil)

// Registry is the get-or-create map from document name to Document Actor.
// At most one creation is ever in flight for a given name; concurrent
// callers for the same name share the result of that one creation.
type Registry struct {
	mu     sync.Mutex
	actors map[string]*actor.Actor
	sf     singleflight.Group

	supervisor *broker.Supervisor
	store      snapshotstore.Store
	auditor    snapshotstore.AuditRecorder
	tracker    actor.TeardownTracker
	cfg        actor.Config
}

// New builds a Registry. cfg is applied to every actor it creates; callers
// that need per-namespace tuning construct one Registry per namespace.
func New(supervisor *broker.Supervisor, store snapshotstore.Store, auditor snapshotstore.AuditRecorder, tracker actor.TeardownTracker, cfg actor.Config) *Registry {
	return &Registry{
		actors:     make(map[string]*actor.Actor),
		supervisor: supervisor,
		store:      store,
		auditor:    auditor,
		tracker:    tracker,
		cfg:        cfg,
	}
}

// Get returns the actor for name, creating and starting one if none exists
// yet. On creation failure the name is never inserted, so the next call
// retries from scratch rather than replaying a stale error.
func (r *Registry) Get(ctx context.Context, name string) (*actor.Actor, error) {
	if a, ok := r.lookup(name); ok {
		return a, nil
	}

	v, err, _ := r.sf.Do(name, func() (interface{}, error) {
		if a, ok := r.lookup(name); ok {
			return a, nil
		}

		a := actor.New(name, r.cfg, r.supervisor.Gateway(), r.store, r.auditor, r.tracker)
		if err := a.Start(ctx); err != nil {
			// Start already launched a.run() on its own goroutine; a failed
			// creation sequence leaves it parked forever on a.closing unless
			// we tear it down here too.
			a.Close()
			return nil, err
		}

		r.mu.Lock()
		r.actors[name] = a
		r.mu.Unlock()

		go r.reapWhenDone(name, a)
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*actor.Actor), nil
}

func (r *Registry) lookup(name string) (*actor.Actor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.actors[name]
	return a, ok
}

// reapWhenDone drops name from the map once a's own teardown completes
// (whether from an explicit Close or the actor's last-peer-detached path),
// so a later Get recreates it instead of handing back a dead actor.
func (r *Registry) reapWhenDone(name string, a *actor.Actor) {
	<-a.Done()
	r.mu.Lock()
	if r.actors[name] == a {
		delete(r.actors, name)
	}
	r.mu.Unlock()
}

// InvalidateAll implements broker.Invalidator: every actor's broker handles
// are dangling after a gateway rebuild, so close them all and clear the
// map. reapWhenDone goroutines drop each name as its Close completes.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	actors := make([]*actor.Actor, 0, len(r.actors))
	for _, a := range r.actors {
		actors = append(actors, a)
	}
	r.mu.Unlock()

	for _, a := range actors {
		go a.Close()
	}
}

// Len reports how many actors are currently live, for tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actors)
}

// Stats reports per-document counters for every currently live actor, for
// the /metrics admin endpoint.
func (r *Registry) Stats() map[string]actor.Stats {
	r.mu.Lock()
	actors := make(map[string]*actor.Actor, len(r.actors))
	for name, a := range r.actors {
		actors[name] = a
	}
	r.mu.Unlock()

	out := make(map[string]actor.Stats, len(actors))
	for name, a := range actors {
		out[name] = a.Stats()
	}
	return out
}
