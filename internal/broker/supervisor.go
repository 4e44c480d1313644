package broker

import (
	"context"
	"log"
	"sync"
)

// Invalidator is notified when the Supervisor rebuilds the shared broker
// client, so the Document Registry can tear down every actor whose
// producer/consumer handles are now dangling. Defined here rather than
// depended on from registry to avoid a broker->registry import cycle.
type Invalidator interface {
	InvalidateAll()
}

// Supervisor holds the shared Gateway (C7), health-probes it, and rebuilds
// it plus destroys every actor on a confirmed disconnect. Serialised by a
// single mutex so at most one reconnect is ever in flight, per spec.md
// §4.4.
type Supervisor struct {
	mu          sync.Mutex
	gateway     Gateway
	factory     func() (Gateway, error)
	invalidator Invalidator
}

// NewSupervisor wraps an already-open Gateway. factory is used to build a
// replacement on rebuild.
func NewSupervisor(gateway Gateway, factory func() (Gateway, error), invalidator Invalidator) *Supervisor {
	return &Supervisor{gateway: gateway, factory: factory, invalidator: invalidator}
}

// SetInvalidator binds the invalidator notified on rebuild. Exists because
// the Document Registry and Supervisor depend on each other (the registry
// needs a Supervisor to source gateways from; the Supervisor needs the
// registry as its Invalidator) and one of the two must be constructed
// first with this wired in after the fact.
func (s *Supervisor) SetInvalidator(invalidator Invalidator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidator = invalidator
}

// Gateway returns the currently active broker client. Callers must not
// cache the result across a suspension point; a concurrent rebuild can
// swap it out from under them. Rebuild closes the old gateway and then
// asks the Invalidator to close every actor, so actors holding handles
// from the old gateway are torn down by that call.
func (s *Supervisor) Gateway() Gateway {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway
}

// Probe health-checks the current gateway and rebuilds on a negative
// result. It is safe to call concurrently: Rebuild is serialised, so at
// most one rebuild runs at a time, but overlapping probes that both fail
// each trigger their own rebuild, one after the other.
func (s *Supervisor) Probe(ctx context.Context) {
	if err := s.Gateway().HealthProbe(ctx); err != nil {
		log.Printf("broker: health probe failed, rebuilding: %v", err)
		s.Rebuild()
	}
}

// Rebuild replaces the shared gateway and invalidates every actor. A
// failed rebuild leaves the broken gateway in place; the next Probe call
// will retry.
func (s *Supervisor) Rebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gateway != nil {
		_ = s.gateway.Close()
	}

	fresh, err := s.factory()
	if err != nil {
		log.Printf("broker: rebuild failed, will retry on next probe: %v", err)
		return
	}
	s.gateway = fresh

	if s.invalidator != nil {
		s.invalidator.InvalidateAll()
	}
}

func (s *Supervisor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gateway == nil {
		return nil
	}
	return s.gateway.Close()
}
