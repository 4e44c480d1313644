package actor

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"docrelay/internal/broker"
	"docrelay/internal/crdtdoc"
	"docrelay/internal/frame"
	"docrelay/internal/snapshotstore"
)

// loadSnapshot implements spec.md §4.1 replay-policy step 1: fetch
// snapshots/{docName}.snapshot, apply it if well-formed, remember its
// checkpoint and message count. A fetch error is treated as absent; a
// record that fails to decode or restore is deleted from the store and the
// actor replays from earliest. Neither case fails creation.
func (a *Actor) loadSnapshot(ctx context.Context) {
	key := snapshotstore.SnapshotKey(a.Name)
	data, present, err := a.store.Get(ctx, key)
	if err != nil {
		log.Printf("actor %s: snapshot fetch error, proceeding as absent: %v", a.Name, err)
		return
	}
	if !present {
		return
	}

	record, err := snapshotstore.DecodeRecord(data)
	if err != nil {
		log.Printf("actor %s: malformed snapshot, clearing and replaying from earliest: %v", a.Name, err)
		a.clearSnapshot(ctx, key)
		return
	}
	if err := a.doc.Restore(record.State); err != nil {
		log.Printf("actor %s: snapshot state failed to restore, replaying from earliest: %v", a.Name, err)
		a.clearSnapshot(ctx, key)
		return
	}

	cp := record.Checkpoint
	a.checkpoint = &cp
	a.baseCount = record.MessageCount
}

// clearSnapshot removes a snapshot object this actor has decided not to
// trust, per spec.md §7 class 7: leaving a malformed object in place would
// make every future creation re-discover and re-log the same bad bytes.
func (a *Actor) clearSnapshot(ctx context.Context, key string) {
	if err := a.store.Delete(ctx, key); err != nil {
		log.Printf("actor %s: failed to clear malformed snapshot: %v", a.Name, err)
	}
}

// replay implements spec.md §4.1 replay-policy steps 2-5: open a
// checkpointed, compacted-view reader and fold SYNC messages until either
// N have been folded or K consecutive reads time out, bounded overall by
// a wall-clock cap. Only an inability to open the reader is a retryable
// failure; individual read timeouts are expected and simply end the
// window.
func (a *Actor) replay(ctx context.Context) error {
	reader, err := a.gateway.NewReplayReader(ctx, a.topic(), a.checkpoint)
	if err != nil {
		return err
	}
	defer reader.Close()

	deadline := time.Now().Add(a.cfg.ReplayWallClockCap)
	folded := 0
	consecutiveTimeouts := 0
	var lastCheckpoint *broker.Checkpoint
	if a.checkpoint != nil {
		cp := *a.checkpoint
		lastCheckpoint = &cp
	}

	for folded < a.cfg.SnapshotInterval && consecutiveTimeouts < a.cfg.ReplayMaxConsecutiveTimeouts {
		if time.Now().After(deadline) {
			break
		}

		msg, err := reader.ReadNext(ctx, a.cfg.ReplayReadTimeout)
		if errors.Is(err, broker.ErrReadTimeout) {
			consecutiveTimeouts++
			continue
		}
		if errors.Is(err, broker.ErrClosed) {
			break
		}
		if err != nil {
			log.Printf("actor %s: replay read error, ending replay window: %v", a.Name, err)
			break
		}

		consecutiveTimeouts = 0
		f, decErr := frame.DecodeBroker(msg.Payload)
		if decErr != nil {
			log.Printf("actor %s: malformed replay message, skipping: %v", a.Name, decErr)
			continue
		}
		if f.Kind != frame.Sync {
			continue // awareness is ephemeral, ignored during replay
		}
		if _, err := a.doc.ApplyUpdate(f.Body, crdtdoc.BrokerOrigin); err != nil {
			log.Printf("actor %s: malformed replay update, skipping: %v", a.Name, err)
			continue
		}
		folded++
		cp := msg.Checkpoint
		lastCheckpoint = &cp
	}

	if folded >= a.cfg.SnapshotInterval && lastCheckpoint != nil {
		a.writeSnapshot(ctx, *lastCheckpoint, a.baseCount+folded)
	}
	return nil
}

func (a *Actor) writeSnapshot(ctx context.Context, cp broker.Checkpoint, messageCount int) {
	record := snapshotstore.Record{
		State:        a.doc.EncodeStateAsUpdate(),
		Checkpoint:   cp,
		MessageCount: messageCount,
		WrittenAt:    time.Now(),
	}
	if err := a.store.Put(ctx, snapshotstore.SnapshotKey(a.Name), snapshotstore.EncodeRecord(record)); err != nil {
		log.Printf("actor %s: snapshot write failed: %v", a.Name, err)
		return
	}
	a.checkpoint = &cp
	a.baseCount = messageCount
	atomic.AddInt64(&a.snapshotWrites, 1)
	if a.auditor != nil {
		a.auditor.Record(ctx, a.Name, record)
	}
}
