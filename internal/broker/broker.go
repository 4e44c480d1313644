// Package broker abstracts the message broker the way spec.md §2's Broker
// Gateway (C1) and §4.4's Supervisor (C7) describe: create a producer,
// create a subscribing consumer, create a checkpointed replay reader, and
// health-probe the underlying client. Concretely this is backed by Kafka
// (github.com/IBM/sarama) the way the teacher's collab-service and gateway
// subprojects already depend on it — "Pulsar-family semantics" map onto
// Kafka's own native concepts: a compacted topic for the per-document log,
// a consumer group for the shared subscription, and a non-group partition
// consumer seeking to a specific offset for the replay reader.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrReadTimeout is returned by ReplayReader.ReadNext when no message
// arrived within the caller's deadline. It is not a failure: spec.md §5
// says replay timeouts "bound the replay window", they don't fail it.
var ErrReadTimeout = errors.New("broker: read timeout")

// ErrClosed is returned by any handle method called after Close.
var ErrClosed = errors.New("broker: handle closed")

// Message is one payload delivered either live (Consumer) or during replay
// (ReplayReader), carrying the checkpoint it was read at.
type Message struct {
	Payload    []byte
	Checkpoint Checkpoint
}

// Producer sends frame payloads to one document's topic. Properties
// (messageType, docName) are attached for observability and compaction
// routing per spec.md §6, never consulted by the core for correctness.
type Producer interface {
	// Send publishes payload under key (the document name, so Kafka's
	// partitioner and compaction both key on it) with the given
	// messageType ("sync", "awareness", or "compaction").
	Send(ctx context.Context, key string, messageType string, payload []byte) error
	Close() error
}

// Consumer is a live, shared-subscription reader over one document's
// topic. Messages arrive in topic order; the caller must Ack after
// successfully applying one.
type Consumer interface {
	Messages() <-chan Message
	Errors() <-chan error
	Ack(Message)
	Close() error
}

// ReplayReader reads forward from a checkpoint (or the earliest message)
// with a compacted view, for the Document Actor's replay-on-creation
// sequence (spec.md §4.1).
type ReplayReader interface {
	// ReadNext blocks until a message arrives or timeout elapses, in which
	// case it returns ErrReadTimeout.
	ReadNext(ctx context.Context, timeout time.Duration) (Message, error)
	Close() error
}

// Gateway is the shared broker client abstraction (C1). A Gateway
// instance is shared by every actor; only the Supervisor may rebuild it.
type Gateway interface {
	NewProducer(topic string, producerName string) (Producer, error)
	// NewConsumer opens a shared-subscription consumer: groupID is
	// "{docName}-subscription" per spec.md §6.
	NewConsumer(ctx context.Context, topic string, groupID string) (Consumer, error)
	// NewReplayReader opens a checkpointed, compacted-view reader. from
	// nil means "earliest message of the topic".
	NewReplayReader(ctx context.Context, topic string, from *Checkpoint) (ReplayReader, error)
	// HealthProbe creates a short-lived producer on a dedicated
	// health-check topic, sends one byte, and closes it.
	HealthProbe(ctx context.Context) error
	Close() error
}

// TopicName builds the broker topic path for a document name per
// spec.md §6: persistent://{tenant}/{namespace}/{prefix}{docName}.
func TopicName(tenant, namespace, prefix, docName string) string {
	return "persistent://" + tenant + "/" + namespace + "/" + prefix + docName
}

// SubscriptionName builds the per-document shared-subscription name.
func SubscriptionName(docName string) string {
	return docName + "-subscription"
}
