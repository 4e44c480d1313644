package crdtdoc

import "sync"

// textDoc is the default Doc implementation: a textBuffer for content plus
// an applied-ID set for idempotence. It is not a commutativity-correct CRDT
// under concurrent, non-duplicate edits from different replicas — that
// guarantee is explicitly the external library's job per spec.md §1. It
// does guarantee the property docrelay's own tests assert: applying the
// same Update twice is a no-op the second time.
type textDoc struct {
	mu      sync.Mutex
	buf     *textBuffer
	applied map[string]struct{}
	order   []Update // applied updates in apply order; Restore resets it to the snapshot update
}

func newTextDoc() *textDoc {
	return &textDoc{
		buf:     newTextBuffer(""),
		applied: make(map[string]struct{}),
	}
}

func (d *textDoc) ApplyUpdate(update []byte, _ Origin) (bool, error) {
	u, err := decodeUpdate(update)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, seen := d.applied[u.ID]; seen {
		return false, nil
	}
	d.buf.Apply(u.Ops)
	d.applied[u.ID] = struct{}{}
	d.order = append(d.order, u)
	return true, nil
}

// EncodeStateAsUpdate serializes the current text as a single
// snapshot-shaped update: a synthetic Update whose one Insert op
// reconstructs the current text from empty. Restore on the receiving side replays it as
// one big insert, which keeps the snapshot format identical in shape to a
// normal Update (spec.md §3: "opaque bytes produced and consumed by the
// CRDT library").
func (d *textDoc) EncodeStateAsUpdate() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	text := d.buf.String()
	snap := Update{ID: "\x00snapshot", Ops: []Op{{Kind: OpInsert, Text: text}}}
	return encodeUpdate(snap)
}

func (d *textDoc) Restore(state []byte) error {
	u, err := decodeUpdate(state)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = newTextBuffer("")
	d.buf.Apply(u.Ops)
	d.applied = map[string]struct{}{u.ID: {}}
	d.order = []Update{u}
	return nil
}

func (d *textDoc) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.String()
}
