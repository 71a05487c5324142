// 文件: pkg/store/repository.go
// 团队排期存储接口
//
// 【设计】
// - Alarm 表是 WeeklyRaidTime x AlarmDefinition 的物化结果
// - Alarm 只由重算流程写入 (ReplaceAlarms), 匹配器只读
// - 重算必须包在 Transaction 里: 删除旧集合 + 插入新集合一次提交
//   匹配器要么看到完整的旧集合, 要么看到完整的新集合

package store

import (
	"context"

	"raidhub.com/pkg/schedule"
)

// AlarmScope 重算范围, 两者只能设置一个
type AlarmScope struct {
	RaidGroupID       int64
	AlarmDefinitionID int64
}

// ForRaidGroup 整个团队的闹钟
func ForRaidGroup(id int64) AlarmScope { return AlarmScope{RaidGroupID: id} }

// ForDefinition 单个定义的闹钟
func ForDefinition(id int64) AlarmScope { return AlarmScope{AlarmDefinitionID: id} }

func (s AlarmScope) valid() bool {
	return (s.RaidGroupID != 0) != (s.AlarmDefinitionID != 0)
}

// Repository 团队排期存储
type Repository interface {
	// ----- 团队 -----

	// GetRaidGroup 不存在返回 schedule.ErrNotFound
	GetRaidGroup(ctx context.Context, id int64) (*schedule.RaidGroup, error)

	// ListRaidGroups 全部团队, 按 ID 排序
	ListRaidGroups(ctx context.Context) ([]schedule.RaidGroup, error)

	// SaveRaidGroup ID 为 0 时创建
	SaveRaidGroup(ctx context.Context, group *schedule.RaidGroup) error

	// SetHasSchedule 更新团队是否有排期
	SetHasSchedule(ctx context.Context, raidGroupID int64, hasSchedule bool) error

	// DeleteRaidGroup 级联删除开团时间、闹钟定义、闹钟
	DeleteRaidGroup(ctx context.Context, id int64) error

	// ----- 开团时间 -----

	ListWeeklyRaidTimes(ctx context.Context, raidGroupID int64) ([]schedule.WeeklyRaidTime, error)

	// ReplaceWeeklyRaidTimes 整体替换团队的开团时间, 返回带 ID 的新集合和删除的行数
	ReplaceWeeklyRaidTimes(ctx context.Context, raidGroupID int64, times []schedule.WeeklyRaidTime) ([]schedule.WeeklyRaidTime, int64, error)

	// ----- 闹钟定义 -----

	ListAlarmDefinitions(ctx context.Context, raidGroupID int64) ([]schedule.AlarmDefinition, error)

	// ListAlarmDefinitionsByOwner 按团队 ID 排序
	ListAlarmDefinitionsByOwner(ctx context.Context, ownerID int64) ([]schedule.AlarmDefinition, error)

	// GetAlarmDefinition 不存在返回 schedule.ErrNotFound
	GetAlarmDefinition(ctx context.Context, id int64) (*schedule.AlarmDefinition, error)

	// SaveAlarmDefinition ID 为 0 时创建, 违反唯一约束返回 schedule.ErrDuplicateAlarm
	SaveAlarmDefinition(ctx context.Context, def *schedule.AlarmDefinition) error

	// DeleteAlarmDefinition 连同其闹钟一起删除
	DeleteAlarmDefinition(ctx context.Context, id int64) error

	// DeleteRaidGroupAlarmDefinitions 删除团队下的闹钟定义, ownerID 非 0 时只删该用户的
	DeleteRaidGroupAlarmDefinitions(ctx context.Context, raidGroupID, ownerID int64) error

	// SetAlarmDefinitionsEnabled 批量启用/禁用某用户的闹钟
	// channelID 非空时只影响投递到该频道的定义, 返回受影响的团队
	SetAlarmDefinitionsEnabled(ctx context.Context, ownerID int64, enabled bool, channelID string) ([]int64, error)

	// ----- 闹钟 -----

	// ReplaceAlarms 删除范围内旧闹钟并插入新闹钟
	// 调用方负责放进 Transaction
	ReplaceAlarms(ctx context.Context, scope AlarmScope, alarms []schedule.Alarm) error

	// ListScheduledAlarms 团队的全部闹钟 (含禁用), 用于重建索引
	ListScheduledAlarms(ctx context.Context, raidGroupID int64) ([]schedule.ScheduledAlarm, error)

	// FindEnabledAlarmsAt 启用的定义在 hour:minute 的全部闹钟
	FindEnabledAlarmsAt(ctx context.Context, hour, minute int) ([]schedule.ScheduledAlarm, error)

	// ----- 事务 -----

	// Transaction fn 返回错误时整体回滚
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}
