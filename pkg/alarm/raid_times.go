package alarm

import (
	"context"

	"go.uber.org/zap"

	"raidhub.com/pkg/schedule"
	"raidhub.com/pkg/store"
)

// ListWeeklyRaidTimes 查询团队开团时间
func (s *Service) ListWeeklyRaidTimes(ctx context.Context, user User, raidGroupID int64) ([]schedule.WeeklyRaidTime, error) {
	if err := s.requireView(ctx, user.ID, raidGroupID); err != nil {
		return nil, err
	}
	return s.repo.ListWeeklyRaidTimes(ctx, raidGroupID)
}

// UpdateWeeklyRaidTimes 整体替换团队开团时间并重算全部闹钟
//
// hasSchedule 只在 0 条 <-> 非 0 条 之间切换时更新
func (s *Service) UpdateWeeklyRaidTimes(ctx context.Context, user User, raidGroupID int64, times []schedule.WeeklyRaidTime) ([]schedule.WeeklyRaidTime, error) {
	if err := s.requireEdit(ctx, user.ID, raidGroupID); err != nil {
		return nil, err
	}

	// 以 URL 中的团队为准
	input := make([]schedule.WeeklyRaidTime, len(times))
	for i, rt := range times {
		rt.RaidGroupID = raidGroupID
		input[i] = rt
	}
	if err := schedule.ValidateWeeklyRaidTimes(input); err != nil {
		return nil, err
	}

	var saved []schedule.WeeklyRaidTime
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		var (
			deleted int64
			err     error
		)
		saved, deleted, err = tx.ReplaceWeeklyRaidTimes(ctx, raidGroupID, input)
		if err != nil {
			return err
		}

		noneToSome := deleted == 0 && len(saved) > 0
		someToNone := deleted > 0 && len(saved) == 0
		if noneToSome || someToNone {
			if err := tx.SetHasSchedule(ctx, raidGroupID, len(saved) > 0); err != nil {
				return err
			}
		}

		return recomputeGroup(ctx, tx, raidGroupID, saved)
	})
	if err != nil {
		return nil, err
	}

	s.syncIndex(ctx, raidGroupID)
	s.log.Info("[Alarm] raid times updated",
		zap.Int64("raid_group_id", raidGroupID),
		zap.Int64("user_id", user.ID),
		zap.Int("raid_times", len(saved)))
	return saved, nil
}

// UpdateLocalWeeklyRaidTimes 按创建者本地时间整体替换开团时间
// tzOffset = 本地 - UTC (分钟), 换算后与 UpdateWeeklyRaidTimes 相同
func (s *Service) UpdateLocalWeeklyRaidTimes(ctx context.Context, user User, raidGroupID int64, tzOffset int, local []schedule.LocalRaidTime) ([]schedule.WeeklyRaidTime, error) {
	if err := s.requireEdit(ctx, user.ID, raidGroupID); err != nil {
		return nil, err
	}
	times, err := schedule.FromLocalTimes(local, tzOffset)
	if err != nil {
		return nil, err
	}
	return s.UpdateWeeklyRaidTimes(ctx, user, raidGroupID, times)
}
