// 文件: pkg/schedule/timezone.go
// 本地时间 <-> UTC 转换
//
// 开团时间以 UTC 存储, 创建时按用户时区换算一次:
//   offset = 本地 - UTC (分钟), 例如 UTC+8 为 480
//   UTC    = 本地 - offset
// 换算跨过午夜时掩码整体挪一天

package schedule

// FromLocal 本地开团时间 -> UTC WeeklyRaidTime
func FromLocal(localHour, localMinute, localMask, tzOffset int) WeeklyRaidTime {
	hour, minute, mask := shiftClock(localHour, localMinute, localMask, -tzOffset)
	offset := tzOffset
	return WeeklyRaidTime{
		UTCWeekMask:       mask,
		UTCHour:           hour,
		UTCMinute:         minute,
		UTCTimezoneOffset: &offset,
	}
}

// LocalRaidTime 创建者本地时区的开团时间
type LocalRaidTime struct {
	Hour     int `json:"hour"`
	Minute   int `json:"minute"`
	WeekMask int `json:"weekMask"`
}

// FromLocalTimes 批量换算, 先校验本地字段和时区偏移
func FromLocalTimes(local []LocalRaidTime, tzOffset int) ([]WeeklyRaidTime, error) {
	if tzOffset < -12*60 || tzOffset > MaxTimezoneOffset {
		return nil, invalid("utcTimezoneOffset", "Timezone offset is out of range.")
	}
	times := make([]WeeklyRaidTime, 0, len(local))
	for _, lt := range local {
		if lt.Hour < 0 || lt.Hour > 23 {
			return nil, invalid("hour", "Hour must be between 0 and 23.")
		}
		if !IsQuarterHour(lt.Minute) {
			return nil, invalid("minute", "Minutes must be 0, 15, 30, or 45.")
		}
		if !ValidMask(lt.WeekMask) {
			return nil, invalid("weekMask", "At least one day must be selected.")
		}
		times = append(times, FromLocal(lt.Hour, lt.Minute, lt.WeekMask, tzOffset))
	}
	return times, nil
}

// Local UTC -> 创建者本地时间 (无偏移时原样返回 UTC)
func (rt *WeeklyRaidTime) Local() (hour, minute, mask int) {
	if rt.UTCTimezoneOffset == nil {
		return rt.UTCHour, rt.UTCMinute, rt.UTCWeekMask
	}
	return shiftClock(rt.UTCHour, rt.UTCMinute, rt.UTCWeekMask, *rt.UTCTimezoneOffset)
}

// shiftClock 时刻平移 delta 分钟, 跨天时旋转掩码
// |delta| 不超过一天
func shiftClock(hour, minute, mask, delta int) (int, int, int) {
	raw := hour*60 + minute + delta
	switch {
	case raw < 0:
		mask = RotateBack(mask)
	case raw >= minutesPerDay:
		mask = RotateForward(mask)
	}
	wrapped := ((raw % minutesPerDay) + minutesPerDay) % minutesPerDay
	return wrapped / 60, wrapped % 60, mask
}
