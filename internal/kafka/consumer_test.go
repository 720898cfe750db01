package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/creator-xp/internal/config"
	"github.com/creator-xp/internal/domain"
	"github.com/creator-xp/internal/service"
	"github.com/creator-xp/internal/webhook"
)

type recordingHandler struct {
	raw       []byte
	signature string
	result    *service.OrderResult
	err       error
}

func (h *recordingHandler) HandlePurchase(_ context.Context, raw []byte, signature string) (*service.OrderResult, error) {
	h.raw = raw
	h.signature = signature
	return h.result, h.err
}

func newTestConsumer(h PurchaseHandler) *Consumer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newConsumer(&config.KafkaConfig{Topic: "orders-paid"}, h, nil, logger)
}

func TestHandleMessage(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"o1","email":"a@x.com"}`)
	sig := webhook.Sign(body, "secret")

	tests := []struct {
		name    string
		headers []*sarama.RecordHeader
		result  *service.OrderResult
		err     error
		want    string
		wantSig string
	}{
		{
			name:    "awarded",
			headers: []*sarama.RecordHeader{{Key: []byte(webhook.SignatureHeader), Value: []byte(sig)}},
			result:  &service.OrderResult{Outcome: service.OutcomeAwarded, OrderID: "o1"},
			want:    "awarded",
			wantSig: sig,
		},
		{
			name:    "header key case ignored",
			headers: []*sarama.RecordHeader{{Key: []byte("x-shopify-hmac-sha256"), Value: []byte(sig)}},
			result:  &service.OrderResult{Outcome: service.OutcomeUnmapped},
			want:    "unmapped",
			wantSig: sig,
		},
		{
			name: "unauthorized",
			err:  domain.ErrUnauthorized,
			want: "unauthorized",
		},
		{
			name:    "storage failure",
			headers: []*sarama.RecordHeader{nil, {Key: []byte(webhook.SignatureHeader), Value: []byte(sig)}},
			err:     errors.New("connection refused"),
			want:    "error",
			wantSig: sig,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := &recordingHandler{result: tt.result, err: tt.err}
			c := newTestConsumer(h)

			got := c.handleMessage(context.Background(), &sarama.ConsumerMessage{Value: body, Headers: tt.headers})
			require.Equal(t, tt.want, got)
			require.Equal(t, body, h.raw)
			require.Equal(t, tt.wantSig, h.signature)
		})
	}
}

func TestMarkReadyIsIdempotent(t *testing.T) {
	t.Parallel()

	c := newTestConsumer(&recordingHandler{})
	c.markReady()
	c.markReady()

	select {
	case <-c.ready:
	default:
		t.Fatal("ready channel not closed")
	}
}
