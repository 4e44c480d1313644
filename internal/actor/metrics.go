package actor

import "sync/atomic"

// Stats is a point-in-time snapshot of one actor's counters, surfaced
// through the Document Registry at the /metrics endpoint (spec.md §12's
// "lightweight, JSON, no Prometheus dependency" commitment).
type Stats struct {
	MessagesRelayed int64 `json:"messages_relayed"`
	PublishFailures int64 `json:"publish_failures"`
	SnapshotWrites  int64 `json:"snapshot_writes"`
	Peers           int   `json:"peers"`
}

// Stats reports a's current counters. Safe to call from any goroutine;
// Peers is read on the actor goroutine through enqueue, the same way
// Attach/Detach reach a.peers, and the rest are atomics incremented on the
// actor goroutine and loaded here. After the actor has closed, Peers is 0.
func (a *Actor) Stats() Stats {
	s := Stats{
		MessagesRelayed: atomic.LoadInt64(&a.messagesRelayed),
		PublishFailures: atomic.LoadInt64(&a.publishFailures),
		SnapshotWrites:  atomic.LoadInt64(&a.snapshotWrites),
	}
	done := make(chan struct{})
	a.enqueue(func() {
		s.Peers = len(a.peers)
		close(done)
	})
	select {
	case <-done:
	case <-a.closed:
	}
	return s
}
