package snapshotstore

import "context"

// NoopStore backs storage.mode="none": every Get reports absent, every Put
// is a silent success. Actors backed by it always replay from the
// earliest broker message instead of restoring from a snapshot.
type NoopStore struct{}

func (NoopStore) Put(ctx context.Context, key string, data []byte) error { return nil }

func (NoopStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopStore) Delete(ctx context.Context, key string) error { return nil }
