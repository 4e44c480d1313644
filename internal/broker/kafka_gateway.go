package broker

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// healthCheckTopic is the dedicated topic the supervisor probes against,
// per spec.md §4.4's health-probe contract.
const healthCheckTopic = "docrelay-health"

// KafkaGateway is the production Gateway, backed by a shared sarama.Client.
// Config mirrors the teacher's collab_server/main.go: synchronous
// producers with Return.Successes enabled and RequiredAcks set to
// WaitForLocal, since docrelay (like the teacher) never needs the stronger
// "all in-sync replicas" guarantee for the hot path.
type KafkaGateway struct {
	client sarama.Client
}

// NewKafkaGateway dials the given brokers and returns a ready Gateway.
func NewKafkaGateway(brokers []string) (*KafkaGateway, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Flush.MaxMessages = 256 // at most 256 messages per produce request
	cfg.Consumer.Return.Errors = true
	cfg.Version = sarama.V2_8_0_0

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("broker: dial kafka: %w", err)
	}
	return &KafkaGateway{client: client}, nil
}

func (g *KafkaGateway) NewProducer(topic string, producerName string) (Producer, error) {
	return newKafkaProducer(g.client, topic)
}

func (g *KafkaGateway) NewConsumer(ctx context.Context, topic string, groupID string) (Consumer, error) {
	return newKafkaConsumer(ctx, g.client, topic, groupID)
}

func (g *KafkaGateway) NewReplayReader(ctx context.Context, topic string, from *Checkpoint) (ReplayReader, error) {
	return newKafkaReplayReader(g.client, topic, from)
}

// HealthProbe creates a short-lived producer on a dedicated health-check
// topic, sends one byte keyed by a fresh UUID, and closes it.
func (g *KafkaGateway) HealthProbe(ctx context.Context) error {
	p, err := newKafkaProducer(g.client, healthCheckTopic)
	if err != nil {
		return err
	}
	defer p.Close()
	return p.Send(ctx, uuid.NewString(), "health", []byte{0x01})
}

func (g *KafkaGateway) Close() error {
	return g.client.Close()
}
