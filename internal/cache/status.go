package cache

import (
	"context"
	"time"

	"github.com/example/parcel-delivery/internal/models"
)

// Hash fields of the order status projection written by the consumer.
const (
	FieldStatus        = "status"
	FieldPaymentStatus = "paymentStatus"
	FieldRiderName     = "riderName"
	FieldUpdatedAt     = "updatedAt"
)

// StatusKey is the Redis hash holding the latest projected status of an order.
func StatusKey(orderID string) string { return "order:status:" + orderID }

type StatusView struct {
	ID            string               `json:"id"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	RiderName     string               `json:"riderName,omitempty"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// StatusReader reads the consumer's projection.
type StatusReader struct{ kv KV }

func NewStatusReader(kv KV) *StatusReader { return &StatusReader{kv: kv} }

// Read reports false when the order has not been projected yet.
func (r *StatusReader) Read(ctx context.Context, orderID string) (StatusView, bool, error) {
	h, err := r.kv.HGetAll(ctx, StatusKey(orderID))
	if err != nil || len(h) == 0 || h[FieldStatus] == "" {
		return StatusView{}, false, err
	}
	v := StatusView{
		ID:            orderID,
		Status:        models.OrderStatus(h[FieldStatus]),
		PaymentStatus: models.PaymentStatus(h[FieldPaymentStatus]),
		RiderName:     h[FieldRiderName],
	}
	if ts, err := time.Parse(time.RFC3339Nano, h[FieldUpdatedAt]); err == nil {
		v.UpdatedAt = ts
	}
	return v, true, nil
}
