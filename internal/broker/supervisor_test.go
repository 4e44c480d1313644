package broker_test

import (
	"context"
	"testing"

	"docrelay/internal/broker"
	"docrelay/internal/broker/brokertest"
)

type countingInvalidator struct{ n int }

func (c *countingInvalidator) InvalidateAll() { c.n++ }

func TestSupervisorProbeRebuildsOnFailure(t *testing.T) {
	fake := brokertest.NewFake()
	fake.SetHealthy(false)

	replacement := brokertest.NewFake()
	inv := &countingInvalidator{}

	sup := broker.NewSupervisor(fake, func() (broker.Gateway, error) {
		return replacement, nil
	}, inv)

	sup.Probe(context.Background())

	if inv.n != 1 {
		t.Fatalf("InvalidateAll called %d times, want 1", inv.n)
	}
	if sup.Gateway() != broker.Gateway(replacement) {
		t.Fatalf("expected gateway to be swapped to the replacement")
	}
}

func TestSupervisorProbeNoOpWhenHealthy(t *testing.T) {
	fake := brokertest.NewFake()
	inv := &countingInvalidator{}
	sup := broker.NewSupervisor(fake, func() (broker.Gateway, error) {
		t.Fatalf("factory should not be called when healthy")
		return nil, nil
	}, inv)

	sup.Probe(context.Background())

	if inv.n != 0 {
		t.Fatalf("InvalidateAll called %d times, want 0", inv.n)
	}
}
