// 文件: pkg/schedule/validation.go
// 参数校验与错误定义

package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrDuplicateAlarm = errors.New("There's already an alarm like that! Maybe someone in your raid group already set one up?")
)

// ValidationError 参数校验失败, Property 指出哪个字段
type ValidationError struct {
	Property string
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Property, e.Message)
}

// IsValidation 是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(property, message string) error {
	return &ValidationError{Property: property, Message: message}
}

// =============================================================================
// 取值范围
// =============================================================================

const (
	MaxOffsetHour = 24

	// MaxTimezoneOffset 时区偏移上限 (分钟), UTC-12 ~ UTC+14
	MaxTimezoneOffset = 14 * 60

	maxIDLength = 64
)

// AllowedMinutes 开团时间只能落在整刻钟
var AllowedMinutes = [...]int{0, 15, 30, 45}

// IsQuarterHour 分钟是否为 0/15/30/45
func IsQuarterHour(minute int) bool {
	for _, m := range AllowedMinutes {
		if m == minute {
			return true
		}
	}
	return false
}

// =============================================================================
// 校验
// =============================================================================

// ValidateWeeklyRaidTime 校验开团时间
func ValidateWeeklyRaidTime(rt *WeeklyRaidTime) error {
	if rt.UTCHour < 0 || rt.UTCHour > 23 {
		return invalid("utcHour", "Hour must be between 0 and 23.")
	}
	if !IsQuarterHour(rt.UTCMinute) {
		return invalid("utcMinute", "Minutes must be 0, 15, 30, or 45.")
	}
	if !ValidMask(rt.UTCWeekMask) {
		return invalid("utcWeekMask", "At least one day must be selected.")
	}
	if rt.UTCTimezoneOffset != nil {
		off := *rt.UTCTimezoneOffset
		if off < -12*60 || off > MaxTimezoneOffset {
			return invalid("utcTimezoneOffset", "Timezone offset is out of range.")
		}
	}
	return nil
}

// ValidateWeeklyRaidTimes 批量校验, 返回第一个错误
func ValidateWeeklyRaidTimes(times []WeeklyRaidTime) error {
	for i := range times {
		if err := ValidateWeeklyRaidTime(&times[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAlarmDefinition 校验闹钟定义
func ValidateAlarmDefinition(def *AlarmDefinition) error {
	if !def.Type.Valid() {
		return invalid("type", "Alarm type must be user or channel.")
	}
	if def.OffsetHour < 0 || def.OffsetHour > MaxOffsetHour {
		return invalid("offsetHour", "Offset must be between 0 and 24 hours.")
	}
	if def.TargetGuildID == "" || len(def.TargetGuildID) > maxIDLength {
		return invalid("targetGuildId", "A server must be selected.")
	}
	if def.Type == AlarmTypeChannel && (def.TargetID == "" || len(def.TargetID) > maxIDLength) {
		return invalid("targetId", "A channel must be selected.")
	}
	if def.TargetRoleID != nil && len(*def.TargetRoleID) > maxIDLength {
		return invalid("targetRoleId", "Role id is too long.")
	}
	return nil
}
