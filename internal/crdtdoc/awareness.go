package crdtdoc

import (
	"bytes"
	"encoding/gob"
	"sync"
)

// AwarenessState is one client's ephemeral payload: cursor position,
// selection, user name/color, or whatever the peer's editor chooses to
// publish. It is opaque to docrelay beyond the clock used for last-write-wins.
type AwarenessState struct {
	Clock   uint32
	Payload []byte // nil Payload with a live entry means "present but empty"
}

// AwarenessDiff is the add/update/removed partition spec.md §4.1's
// "Awareness update hook" reports to callers after ApplyUpdate.
type AwarenessDiff struct {
	Added   []uint64
	Updated []uint64
	Removed []uint64
}

func (d AwarenessDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Awareness holds the short-lived per-peer state for one document, keyed by
// numeric client id. Unlike Doc, entries are not persisted across restarts:
// spec.md describes awareness as ephemeral, reconstructed from whichever
// peers are currently attached.
type Awareness struct {
	mu     sync.Mutex
	states map[uint64]AwarenessState
}

func NewAwareness() *Awareness {
	return &Awareness{states: make(map[uint64]AwarenessState)}
}

// awarenessEntry is the wire shape of one client's record inside an
// AWARENESS frame body: present=false with Clock set encodes a removal
// (bumping the clock without leaving a payload), matching how awareness
// protocols broadcast "client went away" as a tombstone rather than silence.
type awarenessEntry struct {
	ClientID uint64
	Clock    uint32
	Present  bool
	Payload  []byte
}

// ApplyUpdate decodes an AWARENESS frame body and merges each entry,
// following last-write-wins by Clock per client id. It returns the diff of
// client ids that were newly added, had their payload change, or were
// removed — a repeat of the exact same body is idempotent and yields an
// empty diff, matching the idempotence law spec.md §8 requires.
func (a *Awareness) ApplyUpdate(body []byte) (AwarenessDiff, error) {
	entries, err := decodeAwarenessEntries(body)
	if err != nil {
		return AwarenessDiff{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var diff AwarenessDiff
	for _, e := range entries {
		cur, exists := a.states[e.ClientID]
		if exists && e.Clock <= cur.Clock {
			continue // stale or duplicate, ignore
		}
		if !e.Present {
			if exists {
				delete(a.states, e.ClientID)
				diff.Removed = append(diff.Removed, e.ClientID)
			}
			continue
		}
		a.states[e.ClientID] = AwarenessState{Clock: e.Clock, Payload: e.Payload}
		if exists {
			diff.Updated = append(diff.Updated, e.ClientID)
		} else {
			diff.Added = append(diff.Added, e.ClientID)
		}
	}
	return diff, nil
}

// Remove drops a client id unconditionally, used when a peer session
// detaches so its cursor/selection doesn't linger for other peers. The
// returned body, if non-empty, is what should be broadcast to the remaining
// peers as the removal announcement.
func (a *Awareness) Remove(clientID uint64) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur, exists := a.states[clientID]
	if !exists {
		return nil
	}
	delete(a.states, clientID)
	return encodeAwarenessEntries([]awarenessEntry{
		{ClientID: clientID, Clock: cur.Clock + 1, Present: false},
	})
}

// RemoveAll drops every id in clientIDs unconditionally and returns one
// combined removal message covering whichever of them were actually
// present, or nil if none were. Used by the actor's detach path to clear
// every awareness id a departing peer controlled in a single broadcast.
func (a *Awareness) RemoveAll(clientIDs []uint64) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	var entries []awarenessEntry
	for _, id := range clientIDs {
		cur, exists := a.states[id]
		if !exists {
			continue
		}
		delete(a.states, id)
		entries = append(entries, awarenessEntry{ClientID: id, Clock: cur.Clock + 1, Present: false})
	}
	if len(entries) == 0 {
		return nil
	}
	return encodeAwarenessEntries(entries)
}

// Snapshot encodes every currently-known client's state as a single
// AWARENESS frame body, used to seed a freshly attached peer in full.
func (a *Awareness) Snapshot() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.states) == 0 {
		return nil
	}
	entries := make([]awarenessEntry, 0, len(a.states))
	for id, st := range a.states {
		entries = append(entries, awarenessEntry{ClientID: id, Clock: st.Clock, Present: true, Payload: st.Payload})
	}
	return encodeAwarenessEntries(entries)
}

// EncodeAwarenessEntry builds a one-client AWARENESS frame body, the same
// shape ApplyUpdate decodes. Exposed for callers that assemble a diff
// directly (tests, and any client-side engine sharing this wire format)
// rather than receiving one pre-encoded from a peer.
func EncodeAwarenessEntry(clientID uint64, clock uint32, payload []byte) []byte {
	return encodeAwarenessEntries([]awarenessEntry{
		{ClientID: clientID, Clock: clock, Present: true, Payload: payload},
	})
}

func encodeAwarenessEntries(entries []awarenessEntry) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(entries)
	return buf.Bytes()
}

func decodeAwarenessEntries(b []byte) ([]awarenessEntry, error) {
	if len(b) == 0 {
		return nil, ErrMalformedUpdate
	}
	var entries []awarenessEntry
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&entries); err != nil {
		return nil, ErrMalformedUpdate
	}
	return entries, nil
}
