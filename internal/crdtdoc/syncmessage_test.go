package crdtdoc

import "testing"

func TestReadSyncMessageStep1RepliesWithStep2(t *testing.T) {
	server := NewDoc()
	if _, err := server.ApplyUpdate(insertUpdate("u1", "hello"), "peer-1"); err != nil {
		t.Fatalf("seed server: %v", err)
	}

	client := NewDoc()
	resp, applied, changed, err := ReadSyncMessage(client, EncodeSyncStep1(server), "server")
	if err != nil {
		t.Fatalf("ReadSyncMessage: %v", err)
	}
	if !changed {
		t.Fatalf("expected client state to change from server's step1")
	}
	if applied == nil {
		t.Fatalf("expected applied update bytes to be returned")
	}
	if resp == nil || syncSubtype(resp[0]) != SyncStep2 {
		t.Fatalf("expected a Step2 reply, got %v", resp)
	}
	if got := client.Text(); got != "hello" {
		t.Fatalf("client.Text() = %q, want %q", got, "hello")
	}
}

func TestReadSyncMessageUpdateIsIdempotent(t *testing.T) {
	doc := NewDoc()
	update := insertUpdate("u1", "abc")
	msg := EncodeSyncUpdate(update)

	resp, applied, changed, err := ReadSyncMessage(doc, msg, BrokerOrigin)
	if err != nil || resp != nil || !changed {
		t.Fatalf("first apply: resp=%v changed=%v err=%v", resp, changed, err)
	}
	if string(applied) != string(update) {
		t.Fatalf("applied = %v, want %v", applied, update)
	}

	resp, applied, changed, err = ReadSyncMessage(doc, msg, BrokerOrigin)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if resp != nil {
		t.Fatalf("Step2/Update messages must never produce a reply, got %v", resp)
	}
	if changed {
		t.Fatalf("expected changed=false re-applying the same sync update")
	}
	if applied != nil {
		t.Fatalf("expected no applied bytes for a no-op duplicate, got %v", applied)
	}
}

func TestReadSyncMessageRejectsEmptyBody(t *testing.T) {
	doc := NewDoc()
	if _, _, _, err := ReadSyncMessage(doc, nil, BrokerOrigin); err != ErrMalformedUpdate {
		t.Fatalf("got err %v, want ErrMalformedUpdate", err)
	}
}

func TestReadSyncMessageRejectsUnknownSubtype(t *testing.T) {
	doc := NewDoc()
	if _, _, _, err := ReadSyncMessage(doc, []byte{99}, BrokerOrigin); err != ErrMalformedUpdate {
		t.Fatalf("got err %v, want ErrMalformedUpdate", err)
	}
}
