package broker

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Checkpoint is the broker's canonical position marker: a Kafka
// (partition, offset) pair, standing in for the opaque "broker message id"
// spec.md §4.5 says the snapshot codec must store in the broker's
// canonical binary form, base64'd.
type Checkpoint struct {
	Partition int32
	Offset    int64
}

const checkpointLen = 4 + 8

// Encode returns the 12-byte canonical binary form: big-endian partition
// then big-endian offset.
func (c Checkpoint) Encode() []byte {
	b := make([]byte, checkpointLen)
	binary.BigEndian.PutUint32(b[:4], uint32(c.Partition))
	binary.BigEndian.PutUint64(b[4:], uint64(c.Offset))
	return b
}

// EncodeBase64 is the form stored in a Snapshot Record.
func (c Checkpoint) EncodeBase64() string {
	return base64.StdEncoding.EncodeToString(c.Encode())
}

// DecodeCheckpoint parses the 12-byte canonical form, rejecting any other
// length as malformed.
func DecodeCheckpoint(b []byte) (Checkpoint, error) {
	if len(b) != checkpointLen {
		return Checkpoint{}, fmt.Errorf("broker: malformed checkpoint (want %d bytes, got %d)", checkpointLen, len(b))
	}
	return Checkpoint{
		Partition: int32(binary.BigEndian.Uint32(b[:4])),
		Offset:    int64(binary.BigEndian.Uint64(b[4:])),
	}, nil
}

// DecodeCheckpointBase64 undoes EncodeBase64, rejecting malformed base64 or
// a decoded length other than 12 bytes — per spec.md §4.5, a decoder must
// signal "malformed" distinctly from "absent" so the actor clears the
// snapshot and restarts from earliest rather than crashing.
func DecodeCheckpointBase64(s string) (Checkpoint, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("broker: malformed checkpoint base64: %w", err)
	}
	return DecodeCheckpoint(b)
}
