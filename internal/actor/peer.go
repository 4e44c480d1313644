package actor

import "docrelay/internal/frame"

// PeerID identifies one live Peer Session for the lifetime of its
// attachment to an actor. Sessions mint their own (a UUID, in practice).
type PeerID string

// Peer is the actor's view of a Peer Session (C6): just enough to relay
// frames to it. Defined here rather than depended on from the session
// package to avoid an actor<->session import cycle — session.Session
// satisfies this structurally.
type Peer interface {
	ID() PeerID
	Send(kind frame.Kind, body []byte)
}

type peerRecord struct {
	peer         Peer
	awarenessIDs map[uint64]struct{}
}
