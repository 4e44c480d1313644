package actor

import (
	"log"
	"sync/atomic"

	"docrelay/internal/crdtdoc"
	"docrelay/internal/frame"
)

// brokerIngestLoop implements spec.md §4.1's broker ingress sequence:
// receive, split into kind+body, dispatch under the broker-origin guard
// (realised here by simply routing the apply through the actor's own
// single command goroutine with origin explicitly set to BrokerOrigin),
// then acknowledge. Malformed payloads are logged and the message is
// still acknowledged — a message persistently no consumer can parse must
// not wedge the shared subscription.
func (a *Actor) brokerIngestLoop() {
	for {
		select {
		case msg, ok := <-a.consumer.Messages():
			if !ok {
				return
			}
			f, err := frame.DecodeBroker(msg.Payload)
			if err != nil {
				log.Printf("actor %s: malformed broker payload: %v", a.Name, err)
				a.consumer.Ack(msg)
				continue
			}
			a.enqueue(func() { a.applyBrokerFrame(f) })
			a.consumer.Ack(msg)

		case err, ok := <-a.consumer.Errors():
			if !ok {
				return
			}
			log.Printf("actor %s: broker consumer error: %v", a.Name, err)

		case <-a.closed:
			return
		}
	}
}

func (a *Actor) applyBrokerFrame(f frame.Frame) {
	atomic.AddInt64(&a.messagesRelayed, 1)
	switch f.Kind {
	case frame.Sync:
		changed, err := a.doc.ApplyUpdate(f.Body, crdtdoc.BrokerOrigin)
		if err != nil {
			log.Printf("actor %s: malformed broker sync update: %v", a.Name, err)
			return
		}
		if changed {
			a.crdtUpdateHook(f.Body, PeerID(""), crdtdoc.BrokerOrigin)
		}
	case frame.Awareness:
		diff, err := a.awareness.ApplyUpdate(f.Body)
		if err != nil {
			log.Printf("actor %s: malformed broker awareness diff: %v", a.Name, err)
			return
		}
		if !diff.Empty() {
			a.broadcastAwareness(f.Body, PeerID(""), crdtdoc.BrokerOrigin)
		}
	}
}
