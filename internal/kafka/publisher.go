package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration // default 50ms
	WriteTimeout time.Duration // default 10s
}

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits one message per changed record, keyed by customer id so
// every change of a customer lands on the same partition.
type Publisher struct {
	w     Writer
	topic string
}

func NewPublisherFromConfig(c Config) *Publisher {
	bt := c.BatchTimeout
	if bt <= 0 {
		bt = 50 * time.Millisecond
	}
	wt := c.WriteTimeout
	if wt <= 0 {
		wt = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           bt,
		WriteTimeout:           wt,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{w: w, topic: c.Topic}
}

// NewPublisher wraps an existing writer.
func NewPublisher(w Writer, topic string) *Publisher {
	return &Publisher{w: w, topic: topic}
}

func (p *Publisher) Name() string { return "kafka:" + p.topic }

func (p *Publisher) Publish(ctx context.Context, runID string, changed []model.Record) error {
	if len(changed) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(changed))
	for _, rec := range changed {
		b, err := json.Marshal(model.Envelope{RunID: runID, ChangedAt: rec.ModifiedAt, Record: rec})
		if err != nil {
			return fmt.Errorf("marshal envelope %s: %w", rec.CustomerID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(rec.CustomerID),
			Value: b,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(runID)},
			},
		})
	}
	return p.w.WriteMessages(ctx, msgs...)
}

func (p *Publisher) Close() error { return p.w.Close() }
