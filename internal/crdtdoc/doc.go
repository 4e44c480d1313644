// Package crdtdoc is the boundary the rest of docrelay calls into for CRDT
// state. Per the design this generalizes: the actual CRDT algebra (conflict
// resolution across concurrently-applied updates from different peers and
// instances) is treated as an external library's responsibility. This
// package defines the interface the Document Actor drives, plus a default
// in-process implementation used in tests and standalone deployments that
// guarantees the one property the actor's correctness depends on:
// idempotent apply of a previously-seen update.
package crdtdoc

import "errors"

// Origin identifies who produced an update being applied to a Doc. The
// broker-origin guard in the actor compares against BrokerOrigin to decide
// whether an update must be re-published.
type Origin string

// BrokerOrigin tags any apply whose source is the broker ingress loop
// rather than a local peer.
const BrokerOrigin Origin = "\x00broker"

// ErrMalformedUpdate is returned by ApplyUpdate/ReadSyncMessage when the
// input cannot be decoded into the engine's update representation.
var ErrMalformedUpdate = errors.New("crdtdoc: malformed update")

// Doc is the CRDT document handle the actor owns for one document name.
type Doc interface {
	// ApplyUpdate merges a raw update into the document. changed reports
	// whether the update mutated state (a duplicate/no-op update is not an
	// error, it simply reports changed=false).
	ApplyUpdate(update []byte, origin Origin) (changed bool, err error)

	// EncodeStateAsUpdate returns the entire current state encoded as a
	// single update, suitable for both a snapshot's state bytes and for
	// seeding a freshly-attached peer.
	EncodeStateAsUpdate() []byte

	// Restore replaces the document's state with a previously-encoded
	// update, used when loading a snapshot. It does not go through the
	// idempotence bookkeeping ApplyUpdate does — it is a hard reset.
	Restore(state []byte) error

	// Text returns the document's materialized content, for tests and
	// observability only; production code never needs this.
	Text() string
}

// NewDoc returns the default in-process document implementation.
func NewDoc() Doc {
	return newTextDoc()
}
