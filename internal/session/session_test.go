package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"docrelay/internal/actor"
	"docrelay/internal/frame"
)

type fakeAttacher struct {
	mu        sync.Mutex
	attached  []actor.Peer
	detached  []actor.Peer
	ingested  []ingestedFrame
	detachSig chan struct{}
}

type ingestedFrame struct {
	peer actor.Peer
	kind frame.Kind
	body []byte
}

func newFakeAttacher() *fakeAttacher {
	return &fakeAttacher{detachSig: make(chan struct{}, 8)}
}

func (f *fakeAttacher) Attach(peer actor.Peer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, peer)
}

func (f *fakeAttacher) Detach(peer actor.Peer) {
	f.mu.Lock()
	f.detached = append(f.detached, peer)
	f.mu.Unlock()
	f.detachSig <- struct{}{}
}

func (f *fakeAttacher) IngestLocalFrame(peer actor.Peer, kind frame.Kind, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, ingestedFrame{peer: peer, kind: kind, body: body})
}

func (f *fakeAttacher) detachCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detached)
}

func (f *fakeAttacher) ingestedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ingested)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func newTestServer(t *testing.T, attacher *fakeAttacher) (*httptest.Server, *Session) {
	t.Helper()
	sessCh := make(chan *Session, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		s := New(conn, attacher)
		sessCh <- s
		s.Run()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	var s *Session
	select {
	case s = <-sessCh:
	case <-time.After(time.Second):
		t.Fatalf("server session was never created")
	}
	return srv, s
}

func TestRunAttachesExactlyOnce(t *testing.T) {
	attacher := newFakeAttacher()
	_, s := newTestServer(t, attacher)

	deadline := time.Now().Add(time.Second)
	for len(attacher.attached) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	attacher.mu.Lock()
	defer attacher.mu.Unlock()
	if len(attacher.attached) != 1 || attacher.attached[0] != s {
		t.Fatalf("expected exactly one Attach call with the session itself")
	}
}

func TestMalformedFrameIsIgnoredNotFatal(t *testing.T) {
	attacher := newFakeAttacher()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := New(conn, attacher)
		s.Run()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	// An empty binary message is truncated per frame.DecodeSocket and must
	// be dropped without the socket closing.
	if err := clientConn.WriteMessage(websocket.BinaryMessage, nil); err != nil {
		t.Fatalf("write malformed: %v", err)
	}

	good := frame.EncodeSocket(frame.Awareness, []byte("still-alive"))
	if err := clientConn.WriteMessage(websocket.BinaryMessage, good); err != nil {
		t.Fatalf("write valid: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for attacher.ingestedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if attacher.ingestedCount() != 1 {
		t.Fatalf("expected the malformed frame to be dropped and the valid one dispatched")
	}
	if attacher.detachCount() != 0 {
		t.Fatalf("malformed frame must not trigger a detach")
	}
}

func TestValidFrameIsDispatchedToActor(t *testing.T) {
	attacher := newFakeAttacher()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := New(conn, attacher)
		s.Run()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	body := []byte("update-bytes")
	wire := frame.EncodeSocket(frame.Sync, body)
	if err := clientConn.WriteMessage(websocket.BinaryMessage, wire); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for attacher.ingestedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if attacher.ingestedCount() != 1 {
		t.Fatalf("expected exactly one ingested frame")
	}

	attacher.mu.Lock()
	got := attacher.ingested[0]
	attacher.mu.Unlock()
	if got.kind != frame.Sync || string(got.body) != "update-bytes" {
		t.Fatalf("unexpected ingested frame: %+v", got)
	}
}

func TestClosingConnectionDetachesExactlyOnce(t *testing.T) {
	attacher := newFakeAttacher()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s := New(conn, attacher)
		s.Run()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	clientConn.Close()

	select {
	case <-attacher.detachSig:
	case <-time.After(time.Second):
		t.Fatalf("expected Detach to be called after the connection closed")
	}
	if attacher.detachCount() != 1 {
		t.Fatalf("detach count = %d, want 1", attacher.detachCount())
	}
}
