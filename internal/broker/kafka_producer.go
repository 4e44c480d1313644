package broker

import (
	"context"

	"github.com/IBM/sarama"
)

// kafkaProducer wraps a sarama.SyncProducer. Send blocks until the broker
// acknowledges the message (RequiredAcks = WaitForLocal) or ctx is done,
// whichever comes first, so a slow broker slows the caller. When ctx ends
// first, the SendMessage call keeps running in its goroutine and its
// result is discarded.
type kafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func newKafkaProducer(client sarama.Client, topic string) (*kafkaProducer, error) {
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		return nil, err
	}
	return &kafkaProducer{producer: p, topic: topic}, nil
}

func (p *kafkaProducer) Send(ctx context.Context, key string, messageType string, payload []byte) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("messageType"), Value: []byte(messageType)},
			{Key: []byte("docName"), Value: []byte(key)},
		},
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := p.producer.SendMessage(msg)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *kafkaProducer) Close() error {
	return p.producer.Close()
}
