// 文件: pkg/schedule/days.go
// 星期位掩码模型
//
// 位分配 (规范序, 周一开头):
//   Mon=1 Tue=2 Wed=4 Thu=8 Fri=16 Sat=32 Sun=64
//
// 两张表:
// - DaysOfWeek:     规范序, 下标 0=周一 ... 6=周日
// - DaysByClockDay: 时钟序, 下标 0=周日 ... 6=周六 (与 time.Weekday 一致)
//
// 规范序与时钟序的转换只在这里做, 其余代码一律走这两张表

package schedule

import (
	"errors"
	"strings"
	"time"
)

// =============================================================================
// 常量
// =============================================================================

const (
	Monday    = 1 << iota // 1
	Tuesday               // 2
	Wednesday             // 4
	Thursday              // 8
	Friday                // 16
	Saturday              // 32
	Sunday                // 64
)

const (
	// AllDays 七天全选
	AllDays = 127

	// daysPerWeek 一周天数
	daysPerWeek = 7
)

// ErrInvalidDay 星期下标越界
var ErrInvalidDay = errors.New("day index out of range")

// =============================================================================
// Day 描述符
// =============================================================================

// Day 星期描述符
type Day struct {
	Index    int          // 规范序下标 (0=周一)
	ClockDay time.Weekday // 时钟序 (0=周日)
	Bit      int          // 位值
	Short    string       // Mon
	Long     string       // Monday
}

// DaysOfWeek 规范序表 (周一开头)
var DaysOfWeek = [daysPerWeek]Day{
	{Index: 0, ClockDay: time.Monday, Bit: Monday, Short: "Mon", Long: "Monday"},
	{Index: 1, ClockDay: time.Tuesday, Bit: Tuesday, Short: "Tue", Long: "Tuesday"},
	{Index: 2, ClockDay: time.Wednesday, Bit: Wednesday, Short: "Wed", Long: "Wednesday"},
	{Index: 3, ClockDay: time.Thursday, Bit: Thursday, Short: "Thu", Long: "Thursday"},
	{Index: 4, ClockDay: time.Friday, Bit: Friday, Short: "Fri", Long: "Friday"},
	{Index: 5, ClockDay: time.Saturday, Bit: Saturday, Short: "Sat", Long: "Saturday"},
	{Index: 6, ClockDay: time.Sunday, Bit: Sunday, Short: "Sun", Long: "Sunday"},
}

// DaysByClockDay 时钟序表 (周日开头, 直接用 time.Weekday 作下标)
var DaysByClockDay = [daysPerWeek]Day{
	DaysOfWeek[6],
	DaysOfWeek[0],
	DaysOfWeek[1],
	DaysOfWeek[2],
	DaysOfWeek[3],
	DaysOfWeek[4],
	DaysOfWeek[5],
}

// =============================================================================
// 查询
// =============================================================================

// BitForWeekday 规范序下标 -> 位值
func BitForWeekday(index int) (int, error) {
	if index < 0 || index >= daysPerWeek {
		return 0, ErrInvalidDay
	}
	return DaysOfWeek[index].Bit, nil
}

// DescriptorForClockDay 时钟序 -> 描述符
func DescriptorForClockDay(day time.Weekday) (Day, error) {
	if day < time.Sunday || day > time.Saturday {
		return Day{}, ErrInvalidDay
	}
	return DaysByClockDay[day], nil
}

// ValidMask 掩码是否在 1..127 之间 (至少选中一天)
func ValidMask(mask int) bool {
	return mask >= 1 && mask <= AllDays
}

// HasDay 掩码是否包含指定时钟日
func HasDay(mask int, day time.Weekday) bool {
	d, err := DescriptorForClockDay(day)
	if err != nil {
		return false
	}
	return mask&d.Bit != 0
}

// =============================================================================
// 旋转
// =============================================================================

// RotateBack 整体往前挪一天 (周二->周一, 周一->周日)
func RotateBack(mask int) int {
	mask &= AllDays
	return (mask >> 1) | ((mask & Monday) << 6)
}

// RotateForward 整体往后挪一天 (周一->周二, 周日->周一)
func RotateForward(mask int) int {
	mask &= AllDays
	return ((mask << 1) & AllDays) | ((mask & Sunday) >> 6)
}

// =============================================================================
// 展示
// =============================================================================

// MaskDays 掩码展开为描述符列表 (规范序)
func MaskDays(mask int) []Day {
	days := make([]Day, 0, daysPerWeek)
	for _, d := range DaysOfWeek {
		if mask&d.Bit != 0 {
			days = append(days, d)
		}
	}
	return days
}

// FormatMask 掩码格式化, 例如 "Mon, Wed"
func FormatMask(mask int) string {
	days := MaskDays(mask)
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.Short
	}
	return strings.Join(names, ", ")
}
