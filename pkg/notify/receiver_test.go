package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"raidhub.com/pkg/schedule"
)

type recordingDeliverer struct {
	targets []schedule.Target
	texts   []string
	err     error
}

func (d *recordingDeliverer) Deliver(ctx context.Context, target schedule.Target, text string) error {
	if d.err != nil {
		return d.err
	}
	d.targets = append(d.targets, target)
	d.texts = append(d.texts, text)
	return nil
}

func encode(t *testing.T, ev *DueAlarmEvent) []byte {
	data, err := ev.Value()
	require.NoError(t, err)
	return data
}

func TestReceiver_DeduplicatesPerDefinitionMinute(t *testing.T) {
	d := &recordingDeliverer{}
	r := NewReceiver(d, time.Hour, nil)
	ctx := context.Background()
	fireAt := time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)

	first := NewDueAlarmEvent(1, fireAt, dueAlarm(2, "Raiders"))
	again := NewDueAlarmEvent(2, fireAt, dueAlarm(2, "Raiders")) // 另一轮询实例
	later := NewDueAlarmEvent(3, fireAt.Add(7*24*time.Hour), dueAlarm(2, "Raiders"))

	require.NoError(t, r.Handle(ctx, encode(t, first)))
	require.NoError(t, r.Handle(ctx, encode(t, first)))
	require.NoError(t, r.Handle(ctx, encode(t, again)))
	require.NoError(t, r.Handle(ctx, encode(t, later)))

	require.Len(t, d.texts, 2)
	assert.Equal(t, "@Raiders Raid Savage Static starts in 2 hours", d.texts[0])
	assert.Equal(t, schedule.ChannelMessage{ChannelID: "chan-1", RoleID: "role-1"}, d.targets[0])

	assert.Error(t, r.Handle(ctx, []byte("garbage")))
}

func TestReceiver_ExpiryAndFailure(t *testing.T) {
	d := &recordingDeliverer{err: errors.New("rate limited")}
	r := NewReceiver(d, time.Minute, nil)
	now := time.Date(2026, 3, 4, 18, 0, 5, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()
	data := encode(t, NewDueAlarmEvent(1, now, dueAlarm(1, "")))

	// 投递失败后可以重投
	assert.Error(t, r.Handle(ctx, data))
	d.err = nil
	require.NoError(t, r.Handle(ctx, data))
	require.NoError(t, r.Handle(ctx, data))
	assert.Len(t, d.texts, 1)

	// 过期后不再拦截
	now = now.Add(2 * time.Minute)
	require.NoError(t, r.Handle(ctx, data))
	assert.Len(t, d.texts, 2)
}

func TestLogDeliverer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewLogDeliverer(zap.New(core))
	require.NoError(t, d.Deliver(context.Background(), schedule.ChannelMessage{ChannelID: "c", RoleID: "r"}, "hello"))
	require.NoError(t, d.Deliver(context.Background(), schedule.DirectMessage{UserID: "u"}, "hi"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "r", entries[0].ContextMap()["role_id"])
	assert.Equal(t, "user", entries[1].ContextMap()["kind"])
	assert.NotContains(t, entries[1].ContextMap(), "role_id")
}
