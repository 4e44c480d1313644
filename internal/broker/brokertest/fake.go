// Package brokertest provides an in-memory broker.Gateway for exercising
// the Document Actor, Registry, and Supervisor without a live Kafka
// cluster.
package brokertest

import (
	"context"
	"sync"
	"time"

	"docrelay/internal/broker"
)

// Fake is an in-memory Gateway. Each topic is a single append-only log
// shared by every producer/consumer/reader opened against it, matching
// Kafka's own per-partition ordering guarantee closely enough for tests.
type Fake struct {
	mu       sync.Mutex
	topics   map[string]*topicLog
	healthy  bool
	failNext int
}

type topicLog struct {
	mu       sync.Mutex
	messages []broker.Message
	subs     []chan broker.Message
}

func NewFake() *Fake {
	return &Fake{topics: make(map[string]*topicLog), healthy: true}
}

func (f *Fake) topic(name string) *topicLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.topics[name]
	if !ok {
		t = &topicLog{}
		f.topics[name] = t
	}
	return t
}

// SetHealthy toggles whether HealthProbe succeeds, for supervisor tests.
func (f *Fake) SetHealthy(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = v
}

func (f *Fake) NewProducer(topicName string, producerName string) (broker.Producer, error) {
	return &fakeProducer{f: f, topic: f.topic(topicName)}, nil
}

// NewConsumer subscribes from "now": it delivers only messages produced
// after this call, never the existing backlog. This matches a real Kafka
// consumer group's own semantics closely enough for tests — a group that
// already has a committed offset does not redeliver history its members
// already consumed, and the actor always drains that history through a
// ReplayReader during creation before ever opening its live Consumer. A
// fake that redelivered the whole backlog here too would make every
// actor that restores from a snapshot and reopens its subscription
// re-fold messages already captured in that snapshot.
func (f *Fake) NewConsumer(ctx context.Context, topicName string, groupID string) (broker.Consumer, error) {
	t := f.topic(topicName)
	ch := make(chan broker.Message, 256)

	t.mu.Lock()
	t.subs = append(t.subs, ch)
	t.mu.Unlock()

	return &fakeConsumer{topic: t, ch: ch}, nil
}

func (f *Fake) NewReplayReader(ctx context.Context, topicName string, from *broker.Checkpoint) (broker.ReplayReader, error) {
	t := f.topic(topicName)
	t.mu.Lock()
	defer t.mu.Unlock()

	start := 0
	if from != nil {
		start = int(from.Offset) + 1
	}
	snapshot := make([]broker.Message, 0, len(t.messages)-start)
	for i := start; i < len(t.messages); i++ {
		m := t.messages[i]
		m.Checkpoint = broker.Checkpoint{Partition: 0, Offset: int64(i)}
		snapshot = append(snapshot, m)
	}
	return &fakeReplayReader{messages: snapshot}, nil
}

func (f *Fake) HealthProbe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.healthy {
		return errUnhealthy
	}
	return nil
}

func (f *Fake) Close() error { return nil }

type fakeProducer struct {
	f     *Fake
	topic *topicLog
}

func (p *fakeProducer) Send(ctx context.Context, key, messageType string, payload []byte) error {
	p.topic.mu.Lock()
	defer p.topic.mu.Unlock()
	msg := broker.Message{Payload: payload}
	p.topic.messages = append(p.topic.messages, msg)
	for _, sub := range p.topic.subs {
		select {
		case sub <- msg:
		default:
		}
	}
	return nil
}

func (p *fakeProducer) Close() error { return nil }

type fakeConsumer struct {
	topic *topicLog
	ch    chan broker.Message
}

func (c *fakeConsumer) Messages() <-chan broker.Message { return c.ch }
func (c *fakeConsumer) Errors() <-chan error            { return make(chan error) }
func (c *fakeConsumer) Ack(broker.Message)              {}
func (c *fakeConsumer) Close() error                    { return nil }

type fakeReplayReader struct {
	mu       sync.Mutex
	messages []broker.Message
	pos      int
}

func (r *fakeReplayReader) ReadNext(ctx context.Context, timeout time.Duration) (broker.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.messages) {
		return broker.Message{}, broker.ErrReadTimeout
	}
	m := r.messages[r.pos]
	r.pos++
	return m, nil
}

func (r *fakeReplayReader) Close() error { return nil }

type unhealthyErr struct{}

func (unhealthyErr) Error() string { return "brokertest: unhealthy" }

var errUnhealthy = unhealthyErr{}
