// Package session implements the Peer Session (C6): one live WebSocket
// connection bound to a single Document Actor, relaying decoded frames in
// and encoded frames out.
package session

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"docrelay/internal/actor"
	"docrelay/internal/frame"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Attacher is the actor surface a Session drives. Defined here, rather
// than depended on as a concrete *actor.Actor, so tests can drive a
// Session against a recording fake instead of a running actor.
type Attacher interface {
	Attach(peer actor.Peer)
	Detach(peer actor.Peer)
	IngestLocalFrame(peer actor.Peer, kind frame.Kind, body []byte)
}

// Session is one Peer Session (C6). It implements actor.Peer.
type Session struct {
	id    actor.PeerID
	conn  *websocket.Conn
	actor Attacher

	send chan sendItem

	pongOK int32 // atomic bool: cleared on each ping tick, set on pong

	closeOnce sync.Once
	closed    chan struct{}
}

type sendItem struct {
	kind frame.Kind
	body []byte
}

var _ actor.Peer = (*Session)(nil)

// New wraps an already-upgraded WebSocket connection. Call Run to attach
// it to a and start relaying; Run blocks until the connection terminates.
func New(conn *websocket.Conn, a Attacher) *Session {
	s := &Session{
		id:     actor.PeerID(uuid.NewString()),
		conn:   conn,
		actor:  a,
		send:   make(chan sendItem, 64),
		pongOK: 1,
		closed: make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		atomic.StoreInt32(&s.pongOK, 1)
		return nil
	})
	return s
}

func (s *Session) ID() actor.PeerID { return s.id }

// Send enqueues a frame for the write loop. Per the send policy, a socket
// that is already closed (or whose buffer is wedged full) drops the frame
// rather than blocking the caller; a closed socket also triggers its own
// detach, exactly once.
func (s *Session) Send(kind frame.Kind, body []byte) {
	select {
	case <-s.closed:
		s.terminate()
		return
	default:
	}
	select {
	case s.send <- sendItem{kind: kind, body: body}:
	case <-s.closed:
		s.terminate()
	default:
		log.Printf("session %s: send buffer full, dropping frame", s.id)
	}
}

// Run attaches the session to its actor and blocks until the connection
// closes, running the read loop on the calling goroutine. It calls Detach
// exactly once before returning.
func (s *Session) Run() {
	s.actor.Attach(s)
	go s.writeLoop()
	s.readLoop()
	s.terminate()
}

// readLoop validates and dispatches every inbound binary message.
// Malformed frames are logged and ignored without closing the socket, per
// the deliberate "one bad frame must not disconnect an otherwise healthy
// peer" policy.
func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		f, err := frame.DecodeSocket(data)
		if err != nil {
			log.Printf("session %s: malformed frame, ignoring: %v", s.id, err)
			continue
		}
		s.actor.IngestLocalFrame(s, f.Kind, f.Body)
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.terminate()

	for {
		select {
		case item, ok := <-s.send:
			if !ok {
				return
			}
			encoded := frame.EncodeSocket(item.kind, item.body)
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, encoded); err != nil {
				return
			}

		case <-ticker.C:
			if atomic.SwapInt32(&s.pongOK, 0) == 0 {
				return // previous ping went unanswered
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.closed:
			return
		}
	}
}

func (s *Session) terminate() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
		s.actor.Detach(s)
	})
}
