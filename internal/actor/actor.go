// Package actor implements the Document Actor (C4), the core of docrelay:
// it owns one document's CRDT state, awareness state, and local peer map,
// relays frames between peers and the broker topic, and enforces
// loop-breaking and idempotence. Per spec.md §5's scheduling model, the
// actor behaves as a single-threaded writer over its own state — realised
// here via Design Notes option (i): every mutation, whether locally or
// broker sourced, is routed through one goroutine draining a command
// channel, with origin carried as an explicit parameter rather than a
// thread-local marker.
package actor

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"docrelay/internal/broker"
	"docrelay/internal/crdtdoc"
	"docrelay/internal/frame"
	"docrelay/internal/snapshotstore"

	"github.com/google/uuid"
)

// TeardownTracker collects in-flight asynchronous work for shutdown to
// await, satisfied by cleanup.Tracker (C8).
type TeardownTracker interface {
	Go(func() error)
}

// Actor is the Document Actor. Exported methods are safe for concurrent
// use; everything they do happens on the actor's own goroutine.
type Actor struct {
	Name string

	cfg      Config
	gateway  broker.Gateway
	store    snapshotstore.Store
	auditor  snapshotstore.AuditRecorder
	tracker  TeardownTracker

	doc       crdtdoc.Doc
	awareness *crdtdoc.Awareness
	peers     map[PeerID]*peerRecord

	producer broker.Producer
	consumer broker.Consumer

	checkpoint *broker.Checkpoint
	baseCount  int

	messagesRelayed int64
	publishFailures int64
	snapshotWrites  int64

	stateMu sync.RWMutex
	state   State

	cmds       chan func()
	closeOnce  sync.Once
	closing    chan struct{}
	closed     chan struct{}

	createErr  error
	createDone chan struct{}
}

// New constructs an actor but does not start it; call Start to run the
// creation sequence.
func New(name string, cfg Config, gw broker.Gateway, store snapshotstore.Store, auditor snapshotstore.AuditRecorder, tracker TeardownTracker) *Actor {
	return &Actor{
		Name:       name,
		cfg:        cfg,
		gateway:    gw,
		store:      store,
		auditor:    auditor,
		tracker:    tracker,
		doc:        crdtdoc.NewDoc(),
		awareness:  crdtdoc.NewAwareness(),
		peers:      make(map[PeerID]*peerRecord),
		cmds:       make(chan func(), 64),
		closing:    make(chan struct{}),
		closed:     make(chan struct{}),
		createDone: make(chan struct{}),
	}
}

func (a *Actor) topic() string {
	return broker.TopicName(a.cfg.Tenant, a.cfg.Namespace, a.cfg.TopicPrefix, a.Name)
}

func (a *Actor) setState(s State) {
	a.stateMu.Lock()
	a.state = s
	a.stateMu.Unlock()
}

func (a *Actor) State() State {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state
}

// Start runs the single-goroutine command loop and the creation sequence,
// blocking until creation finishes (successfully or not). Per spec.md
// §4.2, the Document Registry calls this exactly once per actor and
// propagates a failure to every caller waiting on the same name.
func (a *Actor) Start(ctx context.Context) error {
	go a.run()
	a.enqueue(func() { a.createErr = a.createSequence(ctx) })
	<-a.createDone
	return a.createErr
}

func (a *Actor) run() {
	defer close(a.closed)
	for {
		select {
		case fn := <-a.cmds:
			fn()
		case <-a.closing:
			a.drainAndClose()
			return
		}
	}
}

// enqueue schedules fn on the actor's single goroutine. It never blocks
// the caller beyond the channel send itself.
func (a *Actor) enqueue(fn func()) {
	select {
	case a.cmds <- fn:
	case <-a.closed:
	}
}

// createSequence runs INIT->LOADING_SNAPSHOT->OPENING_BROKER->REPLAYING->
// RUNNING, signalling createDone exactly once regardless of outcome.
func (a *Actor) createSequence(ctx context.Context) error {
	defer close(a.createDone)

	a.setState(StateLoadingSnapshot)
	a.loadSnapshot(ctx)

	var err error
	err = a.retryTransition(ctx, StateOpeningBroker, func() error {
		producerName := uuid.NewString()
		p, perr := a.gateway.NewProducer(a.topic(), producerName)
		if perr != nil {
			return perr
		}
		a.producer = p
		return nil
	})
	if err != nil {
		a.setState(StateClosed)
		return err
	}

	err = a.retryTransition(ctx, StateReplaying, func() error {
		return a.replay(ctx)
	})
	if err != nil {
		a.setState(StateClosed)
		return err
	}

	consumer, err := a.gateway.NewConsumer(ctx, a.topic(), broker.SubscriptionName(a.Name))
	if err != nil {
		a.setState(StateClosed)
		return err
	}
	a.consumer = consumer
	go a.brokerIngestLoop()

	a.setState(StateRunning)
	return nil
}

// retryTransition runs fn up to cfg.CreationRetryMax+1 times with a fixed
// back-off between attempts, per spec.md §4.1's retry rule for
// LOADING_SNAPSHOT->OPENING_BROKER and OPENING_BROKER->REPLAYING.
func (a *Actor) retryTransition(ctx context.Context, target State, fn func() error) error {
	a.setState(target)
	var lastErr error
	for attempt := 0; attempt <= a.cfg.CreationRetryMax; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < a.cfg.CreationRetryMax {
			select {
			case <-time.After(a.cfg.CreationRetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// Attach adds peer to the peer map and schedules the initial handshake.
func (a *Actor) Attach(peer Peer) {
	a.enqueue(func() {
		a.peers[peer.ID()] = &peerRecord{peer: peer, awarenessIDs: make(map[uint64]struct{})}
		peer.Send(frame.Sync, crdtdoc.EncodeSyncStep1(a.doc))
		if snap := a.awareness.Snapshot(); snap != nil {
			peer.Send(frame.Awareness, snap)
		}
	})
}

// Detach removes peer, clears every awareness id it owned (broadcasting
// the removal as local-origin), and schedules tear-down if it was the
// last peer.
func (a *Actor) Detach(peer Peer) {
	a.enqueue(func() {
		rec, ok := a.peers[peer.ID()]
		if !ok {
			return
		}
		delete(a.peers, peer.ID())

		if len(rec.awarenessIDs) > 0 {
			ids := make([]uint64, 0, len(rec.awarenessIDs))
			for id := range rec.awarenessIDs {
				ids = append(ids, id)
			}
			if body := a.awareness.RemoveAll(ids); body != nil {
				a.broadcastAwareness(body, peer.ID(), crdtdoc.Origin(peer.ID()))
			}
		}

		if len(a.peers) == 0 {
			a.tracker.Go(func() error {
				a.Close()
				return nil
			})
		}
	})
}

// IngestLocalFrame applies a frame received from peer. Malformed bodies
// are logged and dropped without any other effect, per spec.md §4.3.
func (a *Actor) IngestLocalFrame(peer Peer, kind frame.Kind, body []byte) {
	a.enqueue(func() {
		atomic.AddInt64(&a.messagesRelayed, 1)
		origin := crdtdoc.Origin(peer.ID())
		switch kind {
		case frame.Sync:
			resp, applied, changed, err := crdtdoc.ReadSyncMessage(a.doc, body, origin)
			if err != nil {
				log.Printf("actor %s: malformed sync frame from %s: %v", a.Name, peer.ID(), err)
				return
			}
			if resp != nil {
				peer.Send(frame.Sync, resp)
			}
			if changed && applied != nil {
				a.crdtUpdateHook(applied, peer.ID(), origin)
			}

		case frame.Awareness:
			diff, err := a.awareness.ApplyUpdate(body)
			if err != nil {
				log.Printf("actor %s: malformed awareness frame from %s: %v", a.Name, peer.ID(), err)
				return
			}
			a.trackAwarenessOwnership(peer.ID(), diff)
			if !diff.Empty() {
				a.broadcastAwareness(body, peer.ID(), origin)
			}

		default:
			log.Printf("actor %s: unknown frame kind %v from %s", a.Name, kind, peer.ID())
		}
	})
}

func (a *Actor) trackAwarenessOwnership(owner PeerID, diff crdtdoc.AwarenessDiff) {
	if rec, ok := a.peers[owner]; ok {
		for _, id := range diff.Added {
			rec.awarenessIDs[id] = struct{}{}
		}
		for _, id := range diff.Updated {
			rec.awarenessIDs[id] = struct{}{}
		}
	}
	for _, id := range diff.Removed {
		for _, rec := range a.peers {
			delete(rec.awarenessIDs, id)
		}
	}
}

// Close tears the actor down: stop accepting new work, close the broker
// handles. Safe to call more than once.
func (a *Actor) Close() {
	a.closeOnce.Do(func() { close(a.closing) })
	<-a.closed
}

// Done returns a channel that closes once the actor has fully torn down,
// so the Document Registry can drop its own reference once an actor closes
// itself (e.g. its last peer detached) rather than only on an explicit
// Close call.
func (a *Actor) Done() <-chan struct{} {
	return a.closed
}

// drainAndClose implements spec.md §4.1's close() contract: attempt a
// final snapshot save before tearing down the broker handles, per §3's
// "destroyed when peer count reaches zero (after attempting a final
// snapshot save if configured)." A failed save is logged, never retried
// — the actor is going away regardless, and the next creator replays
// from whatever snapshot is already on record.
func (a *Actor) drainAndClose() {
	a.setState(StateClosing)
	a.saveFinalSnapshot()
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	a.setState(StateClosed)
}

func (a *Actor) saveFinalSnapshot() {
	if a.checkpoint == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.writeSnapshot(ctx, *a.checkpoint, a.baseCount)
}
