package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWeeklyRaidTime(t *testing.T) {
	offset := 480
	tooFar := 15 * 60

	tests := []struct {
		name     string
		rt       WeeklyRaidTime
		property string
	}{
		{"ok", WeeklyRaidTime{UTCHour: 20, UTCMinute: 45, UTCWeekMask: 5, UTCTimezoneOffset: &offset}, ""},
		{"hour too big", WeeklyRaidTime{UTCHour: 24, UTCMinute: 0, UTCWeekMask: 1}, "utcHour"},
		{"negative hour", WeeklyRaidTime{UTCHour: -1, UTCMinute: 0, UTCWeekMask: 1}, "utcHour"},
		{"minute not quarter", WeeklyRaidTime{UTCHour: 1, UTCMinute: 10, UTCWeekMask: 1}, "utcMinute"},
		{"empty mask", WeeklyRaidTime{UTCHour: 1, UTCMinute: 0, UTCWeekMask: 0}, "utcWeekMask"},
		{"mask overflow", WeeklyRaidTime{UTCHour: 1, UTCMinute: 0, UTCWeekMask: 128}, "utcWeekMask"},
		{"offset out of range", WeeklyRaidTime{UTCHour: 1, UTCMinute: 0, UTCWeekMask: 1, UTCTimezoneOffset: &tooFar}, "utcTimezoneOffset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWeeklyRaidTime(&tt.rt)
			if tt.property == "" {
				require.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
			assert.Equal(t, tt.property, ve.Property)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestValidateWeeklyRaidTime_MinuteMessage(t *testing.T) {
	err := ValidateWeeklyRaidTime(&WeeklyRaidTime{UTCHour: 1, UTCMinute: 5, UTCWeekMask: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Minutes must be 0, 15, 30, or 45.")
}

func TestValidateAlarmDefinition(t *testing.T) {
	role := "r1"
	base := AlarmDefinition{Type: AlarmTypeChannel, TargetGuildID: "g1", TargetID: "c1", TargetRoleID: &role, OffsetHour: 24}
	require.NoError(t, ValidateAlarmDefinition(&base))

	cases := map[string]func(d *AlarmDefinition){
		"type":          func(d *AlarmDefinition) { d.Type = "sms" },
		"offsetHour":    func(d *AlarmDefinition) { d.OffsetHour = 25 },
		"targetGuildId": func(d *AlarmDefinition) { d.TargetGuildID = "" },
		"targetId":      func(d *AlarmDefinition) { d.TargetID = "" },
	}
	for property, mutate := range cases {
		d := base
		mutate(&d)
		var ve *ValidationError
		err := ValidateAlarmDefinition(&d)
		require.True(t, errors.As(err, &ve), property)
		assert.Equal(t, property, ve.Property)
	}

	neg := base
	neg.OffsetHour = -1
	assert.True(t, IsValidation(ValidateAlarmDefinition(&neg)))

	// 私信的 TargetID 在保存时填入, 校验阶段允许为空
	dm := AlarmDefinition{Type: AlarmTypeUser, TargetGuildID: "g1"}
	assert.NoError(t, ValidateAlarmDefinition(&dm))
}

func TestTargetRoundTrip(t *testing.T) {
	var d AlarmDefinition
	d.SetTarget(ChannelMessage{ChannelID: "c1", RoleID: "r1"})
	assert.Equal(t, AlarmTypeChannel, d.Type)
	require.NotNil(t, d.TargetRoleID)
	assert.Equal(t, ChannelMessage{ChannelID: "c1", RoleID: "r1"}, d.Target())

	name := "raiders"
	d.TargetRoleName = &name
	d.SetTarget(ChannelMessage{ChannelID: "c2"})
	assert.Nil(t, d.TargetRoleID)
	assert.Nil(t, d.TargetRoleName)

	d.SetTarget(DirectMessage{UserID: "u1"})
	assert.Equal(t, AlarmTypeUser, d.Type)
	assert.Equal(t, DirectMessage{UserID: "u1"}, d.Target())
}
