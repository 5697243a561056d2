package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/parcel-delivery/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishKeysByOrder(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	o := &models.Order{ID: "RC-2024-007", Status: models.StatusConfirmed, PaymentStatus: models.PaymentPaid, RiderName: "Rick", UpdatedAt: at}
	o.AppendStatus(models.StatusConfirmed, at, "Order confirmed")

	w := &fakeWriter{}
	p := NewKafkaProducerWithWriter(w)
	if err := p.Publish(context.Background(), NewOrderEvent(OrderStatusChanged, o.ID, o, at)); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "RC-2024-007" {
		t.Fatalf("expected one message keyed by order id, got %+v", w.msgs)
	}
	var env Envelope
	if err := json.Unmarshal(w.msgs[0].Value, &env); err != nil {
		t.Fatal(err)
	}
	snap, err := env.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != OrderStatusChanged || snap.Status != models.StatusConfirmed || snap.Description != "Order confirmed" {
		t.Fatalf("unexpected envelope %+v / %+v", env, snap)
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewKafkaProducerWithWriter(&fakeWriter{err: boom})
	err := p.Publish(context.Background(), NewOrderEvent(OrderDeleted, "RC-2024-001", nil, time.Now()))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}
