// Package snapshotstore implements spec.md §4.5's Snapshot Store (C2) and
// Snapshot Codec (C3): an object-store abstraction that distinguishes
// absent from error, and a self-describing record codec for the state
// bytes, broker checkpoint, message count, and write timestamp.
package snapshotstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"time"

	"docrelay/internal/broker"
)

// ErrMalformed is returned by DecodeRecord when the bytes don't describe a
// valid record, or the embedded checkpoint fails to decode. Per spec.md
// §4.5 this must be distinguishable from "absent" so the caller clears the
// snapshot key and restarts replay from earliest instead of retrying the
// same bad bytes forever.
var ErrMalformed = errors.New("snapshotstore: malformed record")

// Record is the Snapshot Record of spec.md §3: CRDT state bytes, the
// broker checkpoint of the last folded message, how many messages are
// folded into State, and when it was written.
type Record struct {
	State        []byte
	Checkpoint   broker.Checkpoint
	MessageCount int
	WrittenAt    time.Time
}

// wireRecord is the gob-encoded shape. The checkpoint is stored in its
// base64'd canonical binary form per spec.md §4.5, rather than as the
// Checkpoint struct directly, so the encoding matches what a real
// heterogeneous client (one not sharing docrelay's Go types) would need to
// parse.
type wireRecord struct {
	State         []byte
	CheckpointB64 string
	MessageCount  int
	WrittenAtUnix int64
}

// EncodeRecord serializes r for storage.
func EncodeRecord(r Record) []byte {
	w := wireRecord{
		State:         r.State,
		CheckpointB64: r.Checkpoint.EncodeBase64(),
		MessageCount:  r.MessageCount,
		WrittenAtUnix: r.WrittenAt.Unix(),
	}
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(w)
	return buf.Bytes()
}

// DecodeRecord parses previously-encoded bytes, rejecting a malformed
// shape or a malformed checkpoint with ErrMalformed.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) == 0 {
		return Record{}, ErrMalformed
	}
	var w wireRecord
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&w); err != nil {
		return Record{}, ErrMalformed
	}
	if len(w.State) == 0 {
		return Record{}, ErrMalformed
	}
	cp, err := broker.DecodeCheckpointBase64(w.CheckpointB64)
	if err != nil {
		return Record{}, ErrMalformed
	}
	return Record{
		State:        w.State,
		Checkpoint:   cp,
		MessageCount: w.MessageCount,
		WrittenAt:    time.Unix(w.WrittenAtUnix, 0).UTC(),
	}, nil
}
