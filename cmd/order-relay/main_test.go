package main

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/creator-xp/internal/domain"
	"github.com/creator-xp/internal/webhook"
)

func TestBuildPayloads(t *testing.T) {
	t.Parallel()

	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("o%d", n)
	}

	payloads, err := buildPayloads([]string{"a@x.com", "b@x.com"}, 3, newID)
	require.NoError(t, err)
	require.Len(t, payloads, 3)

	wantEmails := []string{"a@x.com", "b@x.com", "a@x.com"}
	for i, p := range payloads {
		ev, err := domain.ParsePurchaseEvent(p)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("o%d", i+1), string(ev.OrderID))
		require.Equal(t, wantEmails[i], ev.PurchaserEmail())
	}

	_, err = buildPayloads(nil, 3, newID)
	require.Error(t, err)
}

func TestNewMessageIsVerifiable(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(order{ID: "o1", Email: "a@x.com"})
	require.NoError(t, err)

	msg := newMessage("orders-paid", body, "secret", "delivery-1")
	require.Equal(t, "orders-paid", msg.Topic)

	value, err := msg.Value.Encode()
	require.NoError(t, err)
	require.Equal(t, body, value)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	require.True(t, webhook.Verify(value, headers[webhook.SignatureHeader], "secret"))
	require.Equal(t, "delivery-1", headers[webhook.IDHeader])

	key, err := msg.Key.(sarama.StringEncoder).Encode()
	require.NoError(t, err)
	require.Equal(t, []byte("delivery-1"), key)
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	require.Nil(t, splitList(""))
}
