package actor

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"docrelay/internal/crdtdoc"
	"docrelay/internal/frame"
)

// crdtUpdateHook implements spec.md §4.1's CRDT update hook: broadcast the
// raw update to every local peer other than the one it came from, and
// republish to the broker unless it was itself broker-sourced (the
// loop-breaker).
func (a *Actor) crdtUpdateHook(updateBytes []byte, originPeer PeerID, origin crdtdoc.Origin) {
	wire := crdtdoc.EncodeSyncUpdate(updateBytes)
	for id, rec := range a.peers {
		if id == originPeer {
			continue
		}
		rec.peer.Send(frame.Sync, wire)
	}
	if origin != crdtdoc.BrokerOrigin {
		a.publish(frame.Sync, "sync", updateBytes)
	}
}

// broadcastAwareness implements the awareness update hook: send the diff
// to every local peer other than originPeer and republish unless
// broker-sourced.
func (a *Actor) broadcastAwareness(body []byte, originPeer PeerID, origin crdtdoc.Origin) {
	for id, rec := range a.peers {
		if id == originPeer {
			continue
		}
		rec.peer.Send(frame.Awareness, body)
	}
	if origin != crdtdoc.BrokerOrigin {
		a.publish(frame.Awareness, "awareness", body)
	}
}

// publish sends one broker message, waiting on the actor goroutine for at
// most 5s. Per spec.md §4.4's egress policy, failures are logged, never
// escalated — peers already received the frame locally, and the broker
// path self-heals via snapshot+replay.
func (a *Actor) publish(kind frame.Kind, messageType string, rawBody []byte) {
	if a.producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	payload := frame.EncodeBroker(kind, rawBody)
	if err := a.producer.Send(ctx, a.Name, messageType, payload); err != nil {
		atomic.AddInt64(&a.publishFailures, 1)
		log.Printf("actor %s: publish failed, not retried: %v", a.Name, err)
	}
}
