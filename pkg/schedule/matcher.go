// 文件: pkg/schedule/matcher.go
// 到点闹钟匹配
//
// 每个轮询 tick 调用一次 FindDueAlarms(hour, minute, weekday):
// 1. 存储层按 (hour, minute) 取出所有启用的候选 (走 idx_alarm_slot 索引)
// 2. 内存中按星期位过滤
// 3. 同一定义只保留一条 (定义可能有多条 Alarm 落在同一时刻)
// 4. 按团队 ID 升序稳定排序
//
// 匹配器本身无状态, 错误原样返回

package schedule

import (
	"cmp"
	"context"
	"slices"
	"time"
)

// AlarmFinder 候选闹钟查询接口
//
// 实现方: MySQL 仓库 / 内存仓库 / Redis 索引
// 只需按时刻和启用状态粗筛, 星期位过滤由 MatchAlarms 统一完成
type AlarmFinder interface {
	FindEnabledAlarmsAt(ctx context.Context, hour, minute int) ([]ScheduledAlarm, error)
}

// Matcher 到点闹钟匹配器
type Matcher struct {
	finder AlarmFinder
}

// NewMatcher 创建匹配器
func NewMatcher(finder AlarmFinder) *Matcher {
	return &Matcher{finder: finder}
}

// FindDueAlarms 查询 UTC hour:minute 在 day 这天应触发的闹钟
func (m *Matcher) FindDueAlarms(ctx context.Context, hour, minute int, day time.Weekday) ([]DueAlarm, error) {
	if _, err := DescriptorForClockDay(day); err != nil {
		return nil, err
	}

	candidates, err := m.finder.FindEnabledAlarmsAt(ctx, hour, minute)
	if err != nil {
		return nil, err
	}
	return MatchAlarms(candidates, hour, minute, day), nil
}

// MatchAlarms 过滤 + 去重 + 排序
//
// 条件: 定义已启用 && 时分相等 && 掩码包含当天
func MatchAlarms(candidates []ScheduledAlarm, hour, minute int, day time.Weekday) []DueAlarm {
	d, err := DescriptorForClockDay(day)
	if err != nil {
		return nil
	}

	due := make([]DueAlarm, 0, len(candidates))
	seen := make(map[int64]struct{}, len(candidates))

	for i := range candidates {
		c := &candidates[i]
		if !c.Definition.IsEnabled {
			continue
		}
		if c.Alarm.UTCHour != hour || c.Alarm.UTCMinute != minute {
			continue
		}
		if c.Alarm.UTCWeekMask&d.Bit == 0 {
			continue
		}
		if _, ok := seen[c.Definition.ID]; ok {
			continue
		}
		seen[c.Definition.ID] = struct{}{}
		due = append(due, DueAlarm{Definition: c.Definition, RaidGroup: c.RaidGroup})
	}

	slices.SortStableFunc(due, func(a, b DueAlarm) int {
		if c := cmp.Compare(a.RaidGroup.ID, b.RaidGroup.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Definition.ID, b.Definition.ID)
	})
	return due
}
