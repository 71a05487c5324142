package nats

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// 需要本地 nats-server, 不可用时跳过
func TestPublishSubscribeQueue(t *testing.T) {
	url := "nats://127.0.0.1:4222"
	pub, err := NewPublisher(url, nil)
	if err != nil {
		t.Skipf("skipping test; nats not available: %v", err)
	}
	defer pub.Close()

	received := make(chan payload, 4)
	sub, err := NewSubscriber(url, func(subject string, data []byte) error {
		var v payload
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		received <- v
		return nil
	}, nil)
	require.NoError(t, err)
	defer sub.Close()
	require.NoError(t, sub.SubscribeQueue("raid.alarms.test", "notifiers"))
	require.NoError(t, sub.conn.Flush())

	data, err := json.Marshal(payload{ID: 1, Name: "Static"})
	require.NoError(t, err)
	require.NoError(t, pub.PublishRaw("raid.alarms.test", data))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pub.Flush(ctx))

	select {
	case v := <-received:
		assert.Equal(t, int64(1), v.ID)
	case <-ctx.Done():
		t.Fatal("message not received")
	}
}
