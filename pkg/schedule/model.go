// 文件: pkg/schedule/model.go
// 团队排期 / 闹钟定义 / 物化闹钟 数据模型
//
// 归属关系:
//   RaidGroup 1 - N WeeklyRaidTime
//   RaidGroup 1 - N AlarmDefinition
//   AlarmDefinition 1 - N Alarm (每个 WeeklyRaidTime 一行)
//
// Alarm 是派生数据, 任何时候都可以由 WeeklyRaidTime x AlarmDefinition 重新算出

package schedule

// =============================================================================
// 闹钟类型
// =============================================================================

// AlarmType 闹钟投递类型
type AlarmType string

const (
	AlarmTypeUser    AlarmType = "user"    // 私信
	AlarmTypeChannel AlarmType = "channel" // 频道消息 (可选 @角色)
)

// Valid 是否为已知类型
func (t AlarmType) Valid() bool {
	return t == AlarmTypeUser || t == AlarmTypeChannel
}

// =============================================================================
// RaidGroup - 团队
// =============================================================================

type RaidGroup struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"column:name;type:varchar(128)" json:"name"`
	Purpose     string `gorm:"column:purpose;type:varchar(256)" json:"purpose,omitempty"`
	OwnerID     int64  `gorm:"column:owner_id;index" json:"ownerId"`
	HasSchedule bool   `gorm:"column:has_schedule;not null" json:"hasSchedule"`
}

func (RaidGroup) TableName() string {
	return "raid_groups"
}

// =============================================================================
// WeeklyRaidTime - 每周固定开团时间 (UTC)
// =============================================================================

type WeeklyRaidTime struct {
	ID          int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RaidGroupID int64 `gorm:"column:raid_group_id;index;not null" json:"raidGroupId"`

	UTCWeekMask int `gorm:"column:utc_week_mask;not null" json:"utcWeekMask"`
	UTCHour     int `gorm:"column:utc_hour;not null" json:"utcHour"`
	UTCMinute   int `gorm:"column:utc_minute;not null" json:"utcMinute"`

	// 创建者本地时区相对 UTC 的偏移 (分钟, 本地 - UTC), 仅用于展示
	UTCTimezoneOffset *int `gorm:"column:utc_timezone_offset" json:"utcTimezoneOffset,omitempty"`
}

func (WeeklyRaidTime) TableName() string {
	return "raid_group_weekly_raid_times"
}

// =============================================================================
// AlarmDefinition - 闹钟定义
// =============================================================================

// AlarmDefinition 用户配置的提醒规则
//
// (RaidGroupID, TargetID, Type, OffsetHour) 唯一
type AlarmDefinition struct {
	ID          int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	RaidGroupID int64 `gorm:"column:raid_group_id;not null;uniqueIndex:uk_alarm_definition_target,priority:1" json:"raidGroupId"`
	OwnerID     int64 `gorm:"column:owner_id;index;not null" json:"ownerId"`

	Type           AlarmType `gorm:"column:type;type:varchar(16);not null;uniqueIndex:uk_alarm_definition_target,priority:3" json:"type"`
	TargetGuildID  string    `gorm:"column:target_guild_id;type:varchar(64);not null" json:"targetGuildId"`
	TargetID       string    `gorm:"column:target_id;type:varchar(64);not null;uniqueIndex:uk_alarm_definition_target,priority:2" json:"targetId"`
	TargetName     string    `gorm:"column:target_name;type:varchar(256)" json:"targetName"`
	TargetRoleID   *string   `gorm:"column:target_role_id;type:varchar(64)" json:"targetRoleId,omitempty"`
	TargetRoleName *string   `gorm:"column:target_role_name;type:varchar(128)" json:"targetRoleName,omitempty"`

	// 提前多少小时提醒 (0..24)
	OffsetHour int  `gorm:"column:offset_hour;not null;uniqueIndex:uk_alarm_definition_target,priority:4" json:"offsetHour"`
	IsEnabled  bool `gorm:"column:is_enabled;not null" json:"isEnabled"`
}

func (AlarmDefinition) TableName() string {
	return "raid_group_alarm_definitions"
}

// =============================================================================
// Alarm - 物化闹钟 (派生)
// =============================================================================

// Alarm 预计算的触发时间
//
// UTCWeekMask 已经做过跨天旋转, 与 UTCHour:UTCMinute 配对后即为实际触发时刻
type Alarm struct {
	ID                int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	AlarmDefinitionID int64 `gorm:"column:alarm_definition_id;index;not null" json:"alarmDefinitionId"`
	WeeklyRaidTimeID  int64 `gorm:"column:weekly_raid_time_id;index;not null" json:"weeklyRaidTimeId"`

	UTCHour     int `gorm:"column:utc_hour;not null;index:idx_alarm_slot,priority:1" json:"utcHour"`
	UTCMinute   int `gorm:"column:utc_minute;not null;index:idx_alarm_slot,priority:2" json:"utcMinute"`
	UTCWeekMask int `gorm:"column:utc_week_mask;not null" json:"utcWeekMask"`
}

func (Alarm) TableName() string {
	return "raid_group_alarms"
}

// =============================================================================
// 查询结果
// =============================================================================

// ScheduledAlarm Alarm 关联其定义和团队 (存储层 join 的结果)
type ScheduledAlarm struct {
	Alarm      Alarm           `json:"alarm"`
	Definition AlarmDefinition `json:"definition"`
	RaidGroup  RaidGroup       `json:"raidGroup"`
}

// DueAlarm 本次 tick 需要投递的闹钟 (每个定义至多一条)
type DueAlarm struct {
	Definition AlarmDefinition `json:"definition"`
	RaidGroup  RaidGroup       `json:"raidGroup"`
}
