package payment

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotificationTopic(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]any
		query url.Values
		want  string
	}{
		{
			name: "topic in body",
			body: map[string]any{"topic": "payment"},
			want: "payment",
		},
		{
			name: "type-style body",
			body: map[string]any{"type": "payment"},
			want: "payment",
		},
		{
			name: "topic preferred over type",
			body: map[string]any{"topic": "merchant_order", "type": "payment"},
			want: "merchant_order",
		},
		{
			name:  "topic in query",
			query: url.Values{"topic": {"payment"}},
			want:  "payment",
		},
		{
			name:  "type in query",
			query: url.Values{"type": {"payment"}},
			want:  "payment",
		},
		{
			name:  "body wins over query",
			body:  map[string]any{"type": "payment"},
			query: url.Values{"topic": {"merchant_order"}},
			want:  "payment",
		},
		{
			name: "absent",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Notification{Body: tt.body, Query: tt.query}
			assert.Equal(t, tt.want, n.Topic())
		})
	}
}

func TestNotificationPaymentID(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]any
		query url.Values
		want  string
	}{
		{
			name: "nested data id",
			body: map[string]any{"data": map[string]any{"id": "12345"}},
			want: "12345",
		},
		{
			name: "numeric data id survives formatting",
			body: map[string]any{"data": map[string]any{"id": float64(118351234567)}},
			want: "118351234567",
		},
		{
			name: "bare id in body",
			body: map[string]any{"id": "777"},
			want: "777",
		},
		{
			name:  "id in query",
			query: url.Values{"id": {"888"}},
			want:  "888",
		},
		{
			name:  "data.id query parameter",
			query: url.Values{"data.id": {"456"}},
			want:  "456",
		},
		{
			name: "resource url path",
			body: map[string]any{"resource": "https://api.mercadopago.com/v1/payments/999"},
			want: "999",
		},
		{
			name:  "resource in query",
			query: url.Values{"resource": {"/collections/notifications/payments/321"}},
			want:  "321",
		},
		{
			name: "data id wins over bare id and resource",
			body: map[string]any{
				"data":     map[string]any{"id": "1"},
				"id":       "2",
				"resource": "/payments/3",
			},
			want: "1",
		},
		{
			name: "bare id wins over resource",
			body: map[string]any{
				"id":       "42",
				"resource": "https://api.mercadopago.com/v1/payments/999",
			},
			want: "42",
		},
		{
			name: "resource without payment path yields nothing",
			body: map[string]any{"resource": "https://api.mercadopago.com/merchant_orders/5"},
			want: "",
		},
		{
			name: "absent",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Notification{Body: tt.body, Query: tt.query}
			assert.Equal(t, tt.want, n.PaymentID())
		})
	}
}
