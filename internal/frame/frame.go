// Package frame implements the wire unit shared by peer sockets and broker
// messages: a one-byte-or-varint kind followed by a kind-specific body.
// Socket frames length-prefix the body since a single WebSocket binary
// message may need to be told apart from the next; broker payloads don't,
// since the message boundary is already the frame boundary there.
package frame

import (
	"encoding/binary"
	"errors"
)

// Kind identifies whether a frame's body carries a CRDT sync message or an
// awareness diff. It is spec-fixed at two values; anything else is
// rejected rather than treated as forward-compatible, matching how the
// core's ingress paths log-and-drop unknown kinds without closing anything.
type Kind uint64

const (
	Sync      Kind = 0
	Awareness Kind = 1
)

func (k Kind) Valid() bool {
	return k == Sync || k == Awareness
}

func (k Kind) String() string {
	switch k {
	case Sync:
		return "SYNC"
	case Awareness:
		return "AWARENESS"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrTruncated    = errors.New("frame: truncated")
	ErrEmptyBody    = errors.New("frame: empty body")
	ErrUnknownKind  = errors.New("frame: unknown kind")
	ErrTrailingData = errors.New("frame: trailing data after body")
)

// Frame is a decoded kind + body pair.
type Frame struct {
	Kind Kind
	Body []byte
}

// EncodeSocket serializes a frame for a WebSocket binary message: a varint
// kind, a varint body length, then the body itself.
func EncodeSocket(kind Kind, body []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64*2+len(body))
	out = binary.AppendUvarint(out, uint64(kind))
	out = binary.AppendUvarint(out, uint64(len(body)))
	out = append(out, body...)
	return out
}

// DecodeSocket parses one socket frame out of a full WebSocket binary
// message. It rejects a length below one byte, an empty body, and an
// unknown kind — the three conditions spec.md's malformed-frame tolerance
// tests exercise — without ever panicking on truncated varints.
func DecodeSocket(data []byte) (Frame, error) {
	if len(data) < 1 {
		return Frame{}, ErrTruncated
	}
	kindVal, n := binary.Uvarint(data)
	if n <= 0 {
		return Frame{}, ErrTruncated
	}
	rest := data[n:]

	length, n2 := binary.Uvarint(rest)
	if n2 <= 0 {
		return Frame{}, ErrTruncated
	}
	rest = rest[n2:]

	if uint64(len(rest)) < length {
		return Frame{}, ErrTruncated
	}
	body := rest[:length]
	if len(rest) > int(length) {
		return Frame{}, ErrTrailingData
	}

	kind := Kind(kindVal)
	if !kind.Valid() {
		return Frame{}, ErrUnknownKind
	}
	if len(body) == 0 {
		return Frame{}, ErrEmptyBody
	}
	return Frame{Kind: kind, Body: body}, nil
}

// EncodeBroker serializes a frame as a broker message payload: one kind
// byte followed by the raw body, with no length prefix since the broker's
// own message boundary delimits the frame.
func EncodeBroker(kind Kind, body []byte) []byte {
	out := make([]byte, 1+len(body))
	out[0] = byte(kind)
	copy(out[1:], body)
	return out
}

// DecodeBroker parses a broker message payload back into a frame.
func DecodeBroker(payload []byte) (Frame, error) {
	if len(payload) < 1 {
		return Frame{}, ErrTruncated
	}
	kind := Kind(payload[0])
	if !kind.Valid() {
		return Frame{}, ErrUnknownKind
	}
	body := payload[1:]
	if len(body) == 0 {
		return Frame{}, ErrEmptyBody
	}
	return Frame{Kind: kind, Body: body}, nil
}
