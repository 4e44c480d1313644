package crdtdoc

import "testing"

func insertUpdate(id, text string) []byte {
	return encodeUpdate(Update{ID: id, Ops: []Op{{Kind: OpInsert, Text: text}}})
}

func TestApplyUpdateAppliesInsert(t *testing.T) {
	doc := NewDoc()
	changed, err := doc.ApplyUpdate(insertUpdate("u1", "hello"), "peer-1")
	if err != nil {
		t.Fatalf("ApplyUpdate: %v", err)
	}
	if !changed {
		t.Fatalf("expected changed=true for a first-time update")
	}
	if got := doc.Text(); got != "hello" {
		t.Fatalf("Text() = %q, want %q", got, "hello")
	}
}

func TestApplyUpdateIsIdempotent(t *testing.T) {
	doc := NewDoc()
	u := insertUpdate("u1", "hello")

	if _, err := doc.ApplyUpdate(u, BrokerOrigin); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	changed, err := doc.ApplyUpdate(u, BrokerOrigin)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if changed {
		t.Fatalf("expected changed=false when applying the same update twice")
	}
	if got := doc.Text(); got != "hello" {
		t.Fatalf("Text() = %q, want %q after duplicate apply", got, "hello")
	}
}

func TestApplyUpdateRejectsMalformed(t *testing.T) {
	doc := NewDoc()
	if _, err := doc.ApplyUpdate(nil, BrokerOrigin); err != ErrMalformedUpdate {
		t.Fatalf("empty update: got err %v, want ErrMalformedUpdate", err)
	}
	if _, err := doc.ApplyUpdate([]byte("not-a-gob-stream"), BrokerOrigin); err == nil {
		t.Fatalf("garbage update: expected an error")
	}
}

func TestEncodeStateAsUpdateRoundTrips(t *testing.T) {
	doc := NewDoc()
	if _, err := doc.ApplyUpdate(insertUpdate("u1", "abc"), "peer-1"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := doc.ApplyUpdate(insertUpdate("u2", "def"), "peer-1"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	state := doc.EncodeStateAsUpdate()

	fresh := NewDoc()
	if err := fresh.Restore(state); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got, want := fresh.Text(), doc.Text(); got != want {
		t.Fatalf("restored Text() = %q, want %q", got, want)
	}
}

func TestRestoreRejectsMalformed(t *testing.T) {
	doc := NewDoc()
	if err := doc.Restore(nil); err != ErrMalformedUpdate {
		t.Fatalf("got err %v, want ErrMalformedUpdate", err)
	}
}

func TestApplyUpdateDeleteAndRetain(t *testing.T) {
	doc := NewDoc()
	if _, err := doc.ApplyUpdate(insertUpdate("u1", "hello world"), "peer-1"); err != nil {
		t.Fatalf("apply insert: %v", err)
	}
	del := encodeUpdate(Update{ID: "u2", Ops: []Op{{Kind: OpRetain, Count: 5}, {Kind: OpDelete, Count: 6}}})
	if _, err := doc.ApplyUpdate(del, "peer-1"); err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if got := doc.Text(); got != "hello" {
		t.Fatalf("Text() = %q, want %q", got, "hello")
	}
}
