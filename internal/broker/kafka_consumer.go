package broker

import (
	"context"
	"log"
	"sync"

	"github.com/IBM/sarama"
)

// kafkaConsumer implements Consumer on top of a sarama.ConsumerGroup: the
// shared subscription of spec.md §6 ("each document instance subscribes
// with a shared subscription {docName}-subscription"), realized as a Kafka
// consumer group whose id is that same subscription name.
type kafkaConsumer struct {
	group  sarama.ConsumerGroup
	topic  string
	cancel context.CancelFunc
	done   chan struct{}

	handler *groupHandler
}

func newKafkaConsumer(ctx context.Context, client sarama.Client, topic, groupID string) (*kafkaConsumer, error) {
	group, err := sarama.NewConsumerGroupFromClient(groupID, client)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h := &groupHandler{
		out:     make(chan Message, 64),
		errs:    make(chan error, 8),
		pending: make(map[Checkpoint]*sarama.ConsumerMessage),
	}

	c := &kafkaConsumer{group: group, topic: topic, cancel: cancel, done: make(chan struct{}), handler: h}

	go c.loop(loopCtx, []string{topic})
	go func() {
		for err := range group.Errors() {
			select {
			case h.errs <- err:
			default:
				log.Printf("broker: consumer group error channel full, dropping: %v", err)
			}
		}
	}()

	return c, nil
}

func (c *kafkaConsumer) loop(ctx context.Context, topics []string) {
	defer close(c.done)
	for {
		if err := c.group.Consume(ctx, topics, c.handler); err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case c.handler.errs <- err:
			default:
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *kafkaConsumer) Messages() <-chan Message { return c.handler.out }
func (c *kafkaConsumer) Errors() <-chan error     { return c.handler.errs }

func (c *kafkaConsumer) Ack(msg Message) {
	c.handler.mu.Lock()
	raw, ok := c.handler.pending[msg.Checkpoint]
	session := c.handler.session
	if ok {
		delete(c.handler.pending, msg.Checkpoint)
	}
	c.handler.mu.Unlock()
	if ok && session != nil {
		session.MarkMessage(raw, "")
	}
}

func (c *kafkaConsumer) Close() error {
	c.cancel()
	<-c.done
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler, bridging the
// callback-driven ConsumeClaim API to the pull-style Consumer interface
// the rest of docrelay expects.
type groupHandler struct {
	out  chan Message
	errs chan error

	mu      sync.Mutex
	session sarama.ConsumerGroupSession
	pending map[Checkpoint]*sarama.ConsumerMessage
}

func (h *groupHandler) Setup(s sarama.ConsumerGroupSession) error {
	h.mu.Lock()
	h.session = s
	h.mu.Unlock()
	return nil
}

func (h *groupHandler) Cleanup(s sarama.ConsumerGroupSession) error {
	h.mu.Lock()
	h.session = nil
	h.mu.Unlock()
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		cp := Checkpoint{Partition: msg.Partition, Offset: msg.Offset}
		h.mu.Lock()
		h.pending[cp] = msg
		h.mu.Unlock()

		select {
		case h.out <- Message{Payload: msg.Value, Checkpoint: cp}:
		case <-sess.Context().Done():
			return nil
		}
	}
	return nil
}
