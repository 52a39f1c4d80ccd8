package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error { return nil }

func TestPublisherKeysByCustomer(t *testing.T) {
	w := &captureWriter{}
	p := NewPublisher(w, "leadsync.records.changed")

	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	changed := []model.Record{
		{CustomerID: "1001", PL: 5, ModifiedAt: at},
		{CustomerID: "1002", PL: 7, ModifiedAt: at},
	}
	if err := p.Publish(context.Background(), "run-1", changed); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(w.msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(w.msgs))
	}
	if string(w.msgs[1].Key) != "1002" {
		t.Errorf("key = %s, want 1002", w.msgs[1].Key)
	}

	var env model.Envelope
	if err := json.Unmarshal(w.msgs[0].Value, &env); err != nil {
		t.Fatal(err)
	}
	if env.RunID != "run-1" || env.Record.CustomerID != "1001" || !env.ChangedAt.Equal(at) {
		t.Errorf("envelope = %+v", env)
	}
}

func TestPublisherSkipsEmptyBatch(t *testing.T) {
	w := &captureWriter{}
	if err := NewPublisher(w, "t").Publish(context.Background(), "run", nil); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 0 {
		t.Errorf("messages = %d, want 0", len(w.msgs))
	}
}
