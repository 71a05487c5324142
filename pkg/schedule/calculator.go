// 文件: pkg/schedule/calculator.go
// 闹钟时间计算
//
// 输入:  一个团队的所有 WeeklyRaidTime 和若干 AlarmDefinition
// 输出:  笛卡尔积, 每对 (raidTime, def) 一条 Alarm
//
// 算法:
//   t       = UTCHour*60 + UTCMinute
//   raw     = t - OffsetHour*60
//   wrapped = ((raw % 1440) + 1440) % 1440
//   hour    = wrapped / 60, minute = wrapped % 60
//   raw < 0 时闹钟落在前一天, 掩码整体往前挪一天
//
// 纯函数, 不做 IO, 可重复调用

package schedule

const minutesPerDay = 24 * 60

// ComputeAlarms 计算笛卡尔积
//
// 输出顺序: 外层 raidTimes, 内层 defs
// 任一输入为空时返回空切片
func ComputeAlarms(raidTimes []WeeklyRaidTime, defs []AlarmDefinition) []Alarm {
	alarms := make([]Alarm, 0, len(raidTimes)*len(defs))
	for i := range raidTimes {
		for j := range defs {
			alarms = append(alarms, ComputeAlarm(&raidTimes[i], &defs[j]))
		}
	}
	return alarms
}

// ComputeAlarm 单对计算
func ComputeAlarm(rt *WeeklyRaidTime, def *AlarmDefinition) Alarm {
	t := rt.UTCHour*60 + rt.UTCMinute
	raw := t - def.OffsetHour*60
	wrapped := ((raw % minutesPerDay) + minutesPerDay) % minutesPerDay

	mask := rt.UTCWeekMask
	if raw < 0 {
		mask = RotateBack(mask)
	}

	return Alarm{
		AlarmDefinitionID: def.ID,
		WeeklyRaidTimeID:  rt.ID,
		UTCHour:           wrapped / 60,
		UTCMinute:         wrapped % 60,
		UTCWeekMask:       mask,
	}
}
