// 文件: pkg/schedule/target.go
// 投递目标
//
// 投递目标只有两种:
// - DirectMessage:  私信给某个聊天用户
// - ChannelMessage: 发到某个频道, 可选 @ 某个角色
//
// 解析 (校验频道 / 角色是否存在, 取展示名) 只在保存时做一次

package schedule

// Target 投递目标
type Target interface {
	Kind() AlarmType
	ID() string
}

// DirectMessage 私信
type DirectMessage struct {
	UserID string
}

func (t DirectMessage) Kind() AlarmType { return AlarmTypeUser }
func (t DirectMessage) ID() string      { return t.UserID }

// ChannelMessage 频道消息
type ChannelMessage struct {
	ChannelID string
	RoleID    string // 空串表示不 @ 任何角色
}

func (t ChannelMessage) Kind() AlarmType { return AlarmTypeChannel }
func (t ChannelMessage) ID() string      { return t.ChannelID }

// Target 从存储字段还原投递目标
func (d *AlarmDefinition) Target() Target {
	if d.Type == AlarmTypeChannel {
		t := ChannelMessage{ChannelID: d.TargetID}
		if d.TargetRoleID != nil {
			t.RoleID = *d.TargetRoleID
		}
		return t
	}
	return DirectMessage{UserID: d.TargetID}
}

// SetTarget 把投递目标写回存储字段
// 角色为空或私信时会清空角色字段
func (d *AlarmDefinition) SetTarget(t Target) {
	d.Type = t.Kind()
	d.TargetID = t.ID()

	if ch, ok := t.(ChannelMessage); ok && ch.RoleID != "" {
		roleID := ch.RoleID
		d.TargetRoleID = &roleID
		return
	}
	d.TargetRoleID = nil
	d.TargetRoleName = nil
}
