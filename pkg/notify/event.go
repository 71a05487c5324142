// 文件: pkg/notify/event.go
// 到点闹钟事件
//
// 轮询方每投递一条到点闹钟就发布一个 DueAlarmEvent,
// 通知进程 (cmd/notifier) 消费后渲染消息并投递到聊天平台
//
// EventID 由雪花算法生成, 消费方可据此去重

package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"raidhub.com/pkg/kafka"
	"raidhub.com/pkg/schedule"
)

const (
	// SubjectAlarmDue NATS subject
	SubjectAlarmDue = "raid.alarms.due"
	// TopicAlarmDue Kafka topic
	TopicAlarmDue = "raid_alarm_due"
	// QueueNotifiers NATS 队列组, 同组只有一个通知进程处理
	QueueNotifiers = "raid-notifiers"
)

// DueAlarmEvent 到点闹钟事件
type DueAlarmEvent struct {
	EventID int64     `json:"eventId,string"`
	FireAt  time.Time `json:"fireAt"` // 触发的 UTC 分钟

	RaidGroupID   int64  `json:"raidGroupId"`
	RaidGroupName string `json:"raidGroupName"`

	DefinitionID int64              `json:"definitionId"`
	OwnerID      int64              `json:"ownerId"`
	OffsetHour   int                `json:"offsetHour"`
	Type         schedule.AlarmType `json:"type"`
	GuildID      string             `json:"guildId"`
	TargetID     string             `json:"targetId"`
	TargetName   string             `json:"targetName"`
	RoleID       string             `json:"roleId,omitempty"`
	RoleName     string             `json:"roleName,omitempty"`
}

var _ kafka.Message = (*DueAlarmEvent)(nil)

// NewDueAlarmEvent 由匹配结果构建事件
func NewDueAlarmEvent(eventID int64, fireAt time.Time, due schedule.DueAlarm) *DueAlarmEvent {
	def := &due.Definition
	ev := &DueAlarmEvent{
		EventID:       eventID,
		FireAt:        fireAt.UTC().Truncate(time.Minute),
		RaidGroupID:   due.RaidGroup.ID,
		RaidGroupName: due.RaidGroup.Name,
		DefinitionID:  def.ID,
		OwnerID:       def.OwnerID,
		OffsetHour:    def.OffsetHour,
		Type:          def.Type,
		GuildID:       def.TargetGuildID,
		TargetID:      def.TargetID,
		TargetName:    def.TargetName,
	}
	if ch, ok := def.Target().(schedule.ChannelMessage); ok && ch.RoleID != "" {
		ev.RoleID = ch.RoleID
		if def.TargetRoleName != nil {
			ev.RoleName = *def.TargetRoleName
		}
	}
	return ev
}

// Target 还原投递目标
func (e *DueAlarmEvent) Target() schedule.Target {
	if e.Type == schedule.AlarmTypeChannel {
		return schedule.ChannelMessage{ChannelID: e.TargetID, RoleID: e.RoleID}
	}
	return schedule.DirectMessage{UserID: e.TargetID}
}

// Text 渲染提醒文本
func (e *DueAlarmEvent) Text() string {
	var mention string
	if e.RoleName != "" {
		mention = "@" + e.RoleName + " "
	}
	switch e.OffsetHour {
	case 0:
		return fmt.Sprintf("%sRaid %s is starting now!", mention, e.RaidGroupName)
	case 1:
		return fmt.Sprintf("%sRaid %s starts in 1 hour", mention, e.RaidGroupName)
	default:
		return fmt.Sprintf("%sRaid %s starts in %d hours", mention, e.RaidGroupName, e.OffsetHour)
	}
}

// =============================================================================
// kafka.Message
// =============================================================================

func (e *DueAlarmEvent) Topic() string { return TopicAlarmDue }

// Key 同一团队的事件进同一分区
func (e *DueAlarmEvent) Key() string { return strconv.FormatInt(e.RaidGroupID, 10) }

func (e *DueAlarmEvent) Value() ([]byte, error) { return json.Marshal(e) }

// Decode 反序列化事件
func Decode(data []byte) (*DueAlarmEvent, error) {
	var ev DueAlarmEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode due alarm event: %w", err)
	}
	return &ev, nil
}
