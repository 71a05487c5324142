// 文件: pkg/store/repository_test.go
// 存储实现共用的行为测试, 内存和 MySQL 各跑一遍

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raidhub.com/pkg/schedule"
)

// =============================================================================
// 测试辅助
// =============================================================================

func seedGroup(t *testing.T, repo Repository, name string) *schedule.RaidGroup {
	group := &schedule.RaidGroup{Name: name, OwnerID: 1}
	require.NoError(t, repo.SaveRaidGroup(context.Background(), group))
	require.NotZero(t, group.ID)
	return group
}

func seedDefinition(t *testing.T, repo Repository, groupID int64, target string, offset int) *schedule.AlarmDefinition {
	def := &schedule.AlarmDefinition{
		RaidGroupID:   groupID,
		OwnerID:       1,
		Type:          schedule.AlarmTypeChannel,
		TargetGuildID: "guild-1",
		TargetID:      target,
		TargetName:    "guild / " + target,
		OffsetHour:    offset,
		IsEnabled:     true,
	}
	require.NoError(t, repo.SaveAlarmDefinition(context.Background(), def))
	return def
}

// rebuild 按当前数据重算团队闹钟
func rebuild(t *testing.T, repo Repository, groupID int64) {
	ctx := context.Background()
	err := repo.Transaction(ctx, func(tx Repository) error {
		times, err := tx.ListWeeklyRaidTimes(ctx, groupID)
		if err != nil {
			return err
		}
		defs, err := tx.ListAlarmDefinitions(ctx, groupID)
		if err != nil {
			return err
		}
		return tx.ReplaceAlarms(ctx, ForRaidGroup(groupID), schedule.ComputeAlarms(times, defs))
	})
	require.NoError(t, err)
}

// =============================================================================
// 行为测试
// =============================================================================

func runRepositoryTests(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("ReplaceWeeklyRaidTimes", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		group := seedGroup(t, repo, "static")

		saved, deleted, err := repo.ReplaceWeeklyRaidTimes(ctx, group.ID, []schedule.WeeklyRaidTime{
			{UTCHour: 20, UTCMinute: 0, UTCWeekMask: schedule.Wednesday},
			{UTCHour: 1, UTCMinute: 30, UTCWeekMask: schedule.Monday, RaidGroupID: 999},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), deleted)
		require.Len(t, saved, 2)
		for _, rt := range saved {
			assert.NotZero(t, rt.ID)
			assert.Equal(t, group.ID, rt.RaidGroupID, "raid group id is forced")
		}

		_, deleted, err = repo.ReplaceWeeklyRaidTimes(ctx, group.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		times, err := repo.ListWeeklyRaidTimes(ctx, group.ID)
		require.NoError(t, err)
		assert.Empty(t, times)
	})

	t.Run("DuplicateDefinition", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		group := seedGroup(t, repo, "dup")
		seedDefinition(t, repo, group.ID, "chan-1", 2)

		dup := &schedule.AlarmDefinition{
			RaidGroupID: group.ID, OwnerID: 2, Type: schedule.AlarmTypeChannel,
			TargetGuildID: "guild-1", TargetID: "chan-1", OffsetHour: 2, IsEnabled: true,
		}
		err := repo.SaveAlarmDefinition(ctx, dup)
		assert.ErrorIs(t, err, schedule.ErrDuplicateAlarm)

		// 提前量不同就不算重复
		dup.ID = 0
		dup.OffsetHour = 3
		require.NoError(t, repo.SaveAlarmDefinition(ctx, dup))
	})

	t.Run("FindEnabledAlarmsAt", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		group := seedGroup(t, repo, "find")

		_, _, err := repo.ReplaceWeeklyRaidTimes(ctx, group.ID, []schedule.WeeklyRaidTime{
			{UTCHour: 20, UTCMinute: 0, UTCWeekMask: schedule.Wednesday},
		})
		require.NoError(t, err)
		on := seedDefinition(t, repo, group.ID, "chan-on", 2)
		off := seedDefinition(t, repo, group.ID, "chan-off", 2)
		off.IsEnabled = false
		require.NoError(t, repo.SaveAlarmDefinition(ctx, off))
		rebuild(t, repo, group.ID)

		rows, err := repo.FindEnabledAlarmsAt(ctx, 18, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, on.ID, rows[0].Definition.ID)
		assert.Equal(t, group.ID, rows[0].RaidGroup.ID)
		assert.Equal(t, "find", rows[0].RaidGroup.Name)
		assert.Equal(t, schedule.Wednesday, rows[0].Alarm.UTCWeekMask)

		rows, err = repo.FindEnabledAlarmsAt(ctx, 20, 0)
		require.NoError(t, err)
		assert.Empty(t, rows)

		all, err := repo.ListScheduledAlarms(ctx, group.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2, "listing includes disabled definitions")
	})

	t.Run("ReplaceAlarmsScope", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		group := seedGroup(t, repo, "scope")
		_, _, err := repo.ReplaceWeeklyRaidTimes(ctx, group.ID, []schedule.WeeklyRaidTime{
			{UTCHour: 12, UTCMinute: 0, UTCWeekMask: schedule.AllDays},
		})
		require.NoError(t, err)
		a := seedDefinition(t, repo, group.ID, "chan-a", 0)
		b := seedDefinition(t, repo, group.ID, "chan-b", 1)
		rebuild(t, repo, group.ID)

		// 只替换 a 的闹钟, b 不受影响
		err = repo.ReplaceAlarms(ctx, ForDefinition(a.ID), nil)
		require.NoError(t, err)

		all, err := repo.ListScheduledAlarms(ctx, group.ID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, b.ID, all[0].Definition.ID)

		assert.ErrorIs(t, repo.ReplaceAlarms(ctx, AlarmScope{}, nil), ErrInvalidScope)
		assert.ErrorIs(t, repo.ReplaceAlarms(ctx, AlarmScope{RaidGroupID: 1, AlarmDefinitionID: 1}, nil), ErrInvalidScope)
	})

	t.Run("TransactionRollback", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		group := seedGroup(t, repo, "rollback")
		_, _, err := repo.ReplaceWeeklyRaidTimes(ctx, group.ID, []schedule.WeeklyRaidTime{
			{UTCHour: 20, UTCMinute: 0, UTCWeekMask: schedule.Friday},
		})
		require.NoError(t, err)
		seedDefinition(t, repo, group.ID, "chan-1", 1)
		rebuild(t, repo, group.ID)

		boom := errors.New("boom")
		err = repo.Transaction(ctx, func(tx Repository) error {
			if err := tx.ReplaceAlarms(ctx, ForRaidGroup(group.ID), nil); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		rows, err := repo.FindEnabledAlarmsAt(ctx, 19, 0)
		require.NoError(t, err)
		assert.Len(t, rows, 1, "old alarm set survives a failed rebuild")
	})

	t.Run("SetAlarmDefinitionsEnabled", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		g1 := seedGroup(t, repo, "g1")
		g2 := seedGroup(t, repo, "g2")
		seedDefinition(t, repo, g1.ID, "chan-x", 0)
		seedDefinition(t, repo, g2.ID, "chan-y", 0)

		groups, err := repo.SetAlarmDefinitionsEnabled(ctx, 1, false, "chan-y")
		require.NoError(t, err)
		assert.Equal(t, []int64{g2.ID}, groups)

		defs, err := repo.ListAlarmDefinitionsByOwner(ctx, 1)
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, g1.ID, defs[0].RaidGroupID)
		assert.True(t, defs[0].IsEnabled)
		assert.False(t, defs[1].IsEnabled)

		groups, err = repo.SetAlarmDefinitionsEnabled(ctx, 1, false, "")
		require.NoError(t, err)
		assert.Equal(t, []int64{g1.ID, g2.ID}, groups)
	})

	t.Run("DeleteCascade", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		group := seedGroup(t, repo, "cascade")
		_, _, err := repo.ReplaceWeeklyRaidTimes(ctx, group.ID, []schedule.WeeklyRaidTime{
			{UTCHour: 8, UTCMinute: 15, UTCWeekMask: schedule.Sunday},
		})
		require.NoError(t, err)
		def := seedDefinition(t, repo, group.ID, "chan-1", 0)
		rebuild(t, repo, group.ID)

		require.NoError(t, repo.DeleteAlarmDefinition(ctx, def.ID))
		_, err = repo.GetAlarmDefinition(ctx, def.ID)
		assert.ErrorIs(t, err, schedule.ErrNotFound)
		assert.ErrorIs(t, repo.DeleteAlarmDefinition(ctx, def.ID), schedule.ErrNotFound)

		seedDefinition(t, repo, group.ID, "chan-2", 0)
		rebuild(t, repo, group.ID)
		require.NoError(t, repo.DeleteRaidGroup(ctx, group.ID))

		_, err = repo.GetRaidGroup(ctx, group.ID)
		assert.ErrorIs(t, err, schedule.ErrNotFound)
		groups, err := repo.ListRaidGroups(ctx)
		require.NoError(t, err)
		assert.Empty(t, groups)
		rows, err := repo.FindEnabledAlarmsAt(ctx, 8, 15)
		require.NoError(t, err)
		assert.Empty(t, rows)
		defs, err := repo.ListAlarmDefinitions(ctx, group.ID)
		require.NoError(t, err)
		assert.Empty(t, defs)
	})

	t.Run("DeleteMemberDefinitions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		group := seedGroup(t, repo, "member")
		mine := seedDefinition(t, repo, group.ID, "chan-1", 0)
		theirs := seedDefinition(t, repo, group.ID, "chan-2", 0)
		theirs.OwnerID = 7
		require.NoError(t, repo.SaveAlarmDefinition(ctx, theirs))

		require.NoError(t, repo.DeleteRaidGroupAlarmDefinitions(ctx, group.ID, 7))
		defs, err := repo.ListAlarmDefinitions(ctx, group.ID)
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, mine.ID, defs[0].ID)
	})
}
