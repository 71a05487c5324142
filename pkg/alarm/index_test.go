package alarm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raidhub.com/pkg/schedule"
)

func scheduledRow(groupID, defID, alarmID int64, hour, minute, mask int, enabled bool) schedule.ScheduledAlarm {
	return schedule.ScheduledAlarm{
		Alarm: schedule.Alarm{
			ID: alarmID, AlarmDefinitionID: defID, WeeklyRaidTimeID: alarmID * 10,
			UTCHour: hour, UTCMinute: minute, UTCWeekMask: mask,
		},
		Definition: schedule.AlarmDefinition{
			ID: defID, RaidGroupID: groupID, OwnerID: 1, Type: schedule.AlarmTypeChannel,
			TargetGuildID: "guild-1", TargetID: "chan-1", TargetName: "Static / raid-alerts",
			OffsetHour: 1, IsEnabled: enabled,
		},
		RaidGroup: schedule.RaidGroup{ID: groupID, Name: fmt.Sprintf("group-%d", groupID), OwnerID: 1, HasSchedule: true},
	}
}

// runIndexTests 两种索引实现共用的行为测试
func runIndexTests(t *testing.T, newIndex func(t *testing.T) Index) {
	ctx := context.Background()

	t.Run("ReplaceAndFind", func(t *testing.T) {
		index := newIndex(t)
		require.NoError(t, index.ReplaceGroup(ctx, 1, []schedule.ScheduledAlarm{
			scheduledRow(1, 11, 101, 19, 0, schedule.Monday, true),
			scheduledRow(1, 11, 102, 19, 0, schedule.Thursday, true),
			scheduledRow(1, 12, 103, 19, 0, schedule.Monday, false),
			scheduledRow(1, 13, 104, 20, 30, schedule.Friday, true),
		}))

		rows, err := index.FindEnabledAlarmsAt(ctx, 19, 0)
		require.NoError(t, err)
		require.Len(t, rows, 2, "disabled definitions are filtered")
		for _, r := range rows {
			assert.Equal(t, int64(11), r.Definition.ID)
			assert.Equal(t, "group-1", r.RaidGroup.Name)
			assert.Equal(t, 19, r.Alarm.UTCHour)
		}

		due := schedule.MatchAlarms(rows, 19, 0, time.Thursday)
		require.Len(t, due, 1)
		assert.Equal(t, "Static / raid-alerts", due[0].Definition.TargetName)

		rows, err = index.FindEnabledAlarmsAt(ctx, 20, 30)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, schedule.Friday, rows[0].Alarm.UTCWeekMask)
		assert.Equal(t, int64(104), rows[0].Alarm.ID)
	})

	t.Run("ReplaceDropsOldEntries", func(t *testing.T) {
		index := newIndex(t)
		require.NoError(t, index.ReplaceGroup(ctx, 1, []schedule.ScheduledAlarm{
			scheduledRow(1, 11, 101, 19, 0, schedule.Monday, true),
		}))
		require.NoError(t, index.ReplaceGroup(ctx, 2, []schedule.ScheduledAlarm{
			scheduledRow(2, 21, 201, 19, 0, schedule.Monday, true),
		}))
		require.NoError(t, index.ReplaceGroup(ctx, 1, []schedule.ScheduledAlarm{
			scheduledRow(1, 11, 105, 7, 15, schedule.Sunday, true),
		}))

		rows, err := index.FindEnabledAlarmsAt(ctx, 19, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1, "other groups are untouched")
		assert.Equal(t, int64(2), rows[0].RaidGroup.ID)

		rows, err = index.FindEnabledAlarmsAt(ctx, 7, 15)
		require.NoError(t, err)
		assert.Len(t, rows, 1)

		require.NoError(t, index.RemoveGroup(ctx, 1))
		rows, err = index.FindEnabledAlarmsAt(ctx, 7, 15)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("Claim", func(t *testing.T) {
		index := newIndex(t)
		fireAt := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

		var wins int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := index.Claim(ctx, 11, fireAt.Add(20*time.Second))
				if err == nil && ok {
					atomic.AddInt32(&wins, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), atomic.LoadInt32(&wins), "one claim per definition per minute")

		ok, err := index.Claim(ctx, 11, fireAt.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, ok, "next minute is a new claim")

		ok, err = index.Claim(ctx, 12, fireAt)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestMemoryIndex(t *testing.T) {
	runIndexTests(t, func(t *testing.T) Index { return NewMemoryIndex() })
}

func TestMemoryIndex_ClaimExpires(t *testing.T) {
	index := NewMemoryIndex()
	index.ttl = -time.Second
	ctx := context.Background()
	fireAt := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	ok, err := index.Claim(ctx, 1, fireAt)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = index.Claim(ctx, 1, fireAt)
	require.NoError(t, err)
	assert.True(t, ok, "expired claims are released")
}

func TestMemberEncoding(t *testing.T) {
	row := scheduledRow(3, 44, 555, 23, 45, schedule.Monday|schedule.Sunday, true)
	member := encodeMember(&row)
	assert.Equal(t, "3:44:555:5550:65", member)

	alarm, ok := decodeMember(member)
	require.True(t, ok)
	assert.Equal(t, int64(44), alarm.AlarmDefinitionID)
	assert.Equal(t, int64(555), alarm.ID)
	assert.Equal(t, int64(5550), alarm.WeeklyRaidTimeID)
	assert.Equal(t, 65, alarm.UTCWeekMask)

	for _, bad := range []string{"", "1:2:3", "1:2:3:4:x", "a:b:c:d:e"} {
		_, ok := decodeMember(bad)
		assert.False(t, ok, bad)
	}
}
