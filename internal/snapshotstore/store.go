package snapshotstore

import "context"

// Store is the object-store abstraction of spec.md §4.5: put/get an opaque
// blob keyed by a snapshot path, with absent distinguished from error.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns (data, true, nil) when found, (nil, false, nil) when
	// absent (including "not found" and credential/permission failures,
	// which are logged and treated as absent so a misconfigured store
	// does not crash the actor), and (nil, false, err) for any other
	// error, which propagates.
	Get(ctx context.Context, key string) (data []byte, present bool, err error)
	// Delete removes key, per spec.md §4.5 and §7 class 7: a malformed or
	// unrestorable snapshot must be cleared rather than left in place, so
	// the next creation attempt sees it as genuinely absent instead of
	// re-discovering the same bad bytes. Deleting an already-absent key is
	// not an error.
	Delete(ctx context.Context, key string) error
}

// SnapshotKey builds the object-store path for a document's snapshot, per
// spec.md §4.1's "snapshots/{docName}.snapshot".
func SnapshotKey(docName string) string {
	return "snapshots/" + docName + ".snapshot"
}
