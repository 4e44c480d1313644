package crdtdoc

import "bytes"
import "encoding/gob"

// OpKind mirrors the retain/insert/delete vocabulary of the teacher's
// ot/delta package (referenced from collab-service/internal/collab), kept
// here in miniature since that package was not itself part of the retrieved
// teacher tree.
type OpKind uint8

const (
	OpRetain OpKind = iota
	OpInsert
	OpDelete
)

// Op is one step of an Update, applied against a running cursor position
// as textBuffer.Apply walks the op list.
type Op struct {
	Kind  OpKind
	Count int    // for Retain and Delete
	Text  string // for Insert
}

// Update is the atomic, idempotent unit exchanged between the actor and the
// Doc. ID is assigned once by the originating peer/instance and is carried
// unchanged through the broker, so every replica can recognize and ignore a
// duplicate delivery — this is the idempotence property spec.md §8 requires
// of the boundary, independent of whatever real commutative-merge math a
// production CRDT library would additionally provide for concurrent,
// non-duplicate updates.
type Update struct {
	ID  string
	Ops []Op
}

// EncodeUpdate serializes an Update into the opaque bytes ApplyUpdate and
// ReadSyncMessage accept. Exposed for callers that construct updates
// directly (tests, and any real client-side engine sharing this wire
// format) rather than receiving them pre-encoded from a peer.
func EncodeUpdate(u Update) []byte {
	return encodeUpdate(u)
}

func encodeUpdate(u Update) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(u)
	return buf.Bytes()
}

func decodeUpdate(b []byte) (Update, error) {
	var u Update
	if len(b) == 0 {
		return u, ErrMalformedUpdate
	}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&u); err != nil {
		return u, ErrMalformedUpdate
	}
	if u.ID == "" {
		return u, ErrMalformedUpdate
	}
	return u, nil
}
