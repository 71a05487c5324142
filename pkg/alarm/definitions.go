package alarm

import (
	"context"

	"go.uber.org/zap"

	"raidhub.com/pkg/schedule"
	"raidhub.com/pkg/store"
)

// =============================================================================
// 查询
// =============================================================================

// ListAlarmDefinitions 当前用户的全部闹钟定义, 按团队排序
func (s *Service) ListAlarmDefinitions(ctx context.Context, user User) ([]schedule.AlarmDefinition, error) {
	return s.repo.ListAlarmDefinitionsByOwner(ctx, user.ID)
}

// =============================================================================
// 写入
// =============================================================================

// CreateAlarmDefinition 创建闹钟定义, 需要团队查看权限
func (s *Service) CreateAlarmDefinition(ctx context.Context, user User, def schedule.AlarmDefinition) (*schedule.AlarmDefinition, error) {
	def.ID = 0
	return s.saveAlarmDefinition(ctx, user, def, 0)
}

// UpdateAlarmDefinition 修改闹钟定义
//
// 只有创建者可以修改, 且需要目标团队的查看权限 (允许换团队)
func (s *Service) UpdateAlarmDefinition(ctx context.Context, user User, def schedule.AlarmDefinition) (*schedule.AlarmDefinition, error) {
	existing, err := s.ownedDefinition(ctx, user, def.ID)
	if err != nil {
		return nil, err
	}
	return s.saveAlarmDefinition(ctx, user, def, existing.RaidGroupID)
}

// DeleteAlarmDefinition 删除闹钟定义及其闹钟
func (s *Service) DeleteAlarmDefinition(ctx context.Context, user User, id int64) error {
	existing, err := s.ownedDefinition(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAlarmDefinition(ctx, id); err != nil {
		return err
	}
	s.syncIndex(ctx, existing.RaidGroupID)
	s.log.Info("[Alarm] definition deleted", zap.Int64("definition_id", id), zap.Int64("user_id", user.ID))
	return nil
}

// SetAlarmsEnabled 批量启用/禁用当前用户的闹钟, channelID 非空时只影响该频道
//
// 闹钟行不需要重算, 匹配时按定义的启用状态过滤
func (s *Service) SetAlarmsEnabled(ctx context.Context, user User, enabled bool, channelID string) error {
	groups, err := s.repo.SetAlarmDefinitionsEnabled(ctx, user.ID, enabled, channelID)
	if err != nil {
		return err
	}
	for _, id := range groups {
		s.syncIndex(ctx, id)
	}
	s.log.Info("[Alarm] status updated",
		zap.Int64("user_id", user.ID),
		zap.Bool("enabled", enabled),
		zap.String("channel_id", channelID),
		zap.Int("raid_groups", len(groups)))
	return nil
}

// ownedDefinition 查询定义并检查所有权
func (s *Service) ownedDefinition(ctx context.Context, user User, id int64) (*schedule.AlarmDefinition, error) {
	def, err := s.repo.GetAlarmDefinition(ctx, id)
	if err != nil {
		return nil, err
	}
	if def.OwnerID != user.ID {
		return nil, schedule.ErrForbidden
	}
	return def, nil
}

// saveAlarmDefinition 校验、解析目标并在一个事务内保存定义和它的闹钟
// previousGroupID 为修改前所属团队, 换团队时两边索引都要刷新
func (s *Service) saveAlarmDefinition(ctx context.Context, user User, def schedule.AlarmDefinition, previousGroupID int64) (*schedule.AlarmDefinition, error) {
	if err := s.requireView(ctx, user.ID, def.RaidGroupID); err != nil {
		return nil, err
	}
	if err := schedule.ValidateAlarmDefinition(&def); err != nil {
		return nil, err
	}
	if err := s.resolveTarget(ctx, user, &def); err != nil {
		return nil, err
	}
	def.OwnerID = user.ID

	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		if err := tx.SaveAlarmDefinition(ctx, &def); err != nil {
			return err
		}
		times, err := tx.ListWeeklyRaidTimes(ctx, def.RaidGroupID)
		if err != nil {
			return err
		}
		alarms := schedule.ComputeAlarms(times, []schedule.AlarmDefinition{def})
		return tx.ReplaceAlarms(ctx, store.ForDefinition(def.ID), alarms)
	})
	if err != nil {
		return nil, err
	}

	if previousGroupID != 0 && previousGroupID != def.RaidGroupID {
		s.syncIndex(ctx, previousGroupID)
	}
	s.syncIndex(ctx, def.RaidGroupID)

	s.log.Info("[Alarm] definition saved",
		zap.Int64("definition_id", def.ID),
		zap.Int64("raid_group_id", def.RaidGroupID),
		zap.String("type", string(def.Type)),
		zap.Int("offset_hour", def.OffsetHour))
	return &def, nil
}

// =============================================================================
// 目标解析
// =============================================================================

// resolveTarget 确认服务器 / 频道 / 角色存在并填充展示名
func (s *Service) resolveTarget(ctx context.Context, user User, def *schedule.AlarmDefinition) error {
	guild, err := s.resolver.ResolveGuild(ctx, def.TargetGuildID)
	if err != nil {
		return err
	}
	if guild == nil {
		return &schedule.ValidationError{
			Property: "targetGuildId",
			Message:  "Invalid discord server. You and the bot both need to be in the server.",
		}
	}

	if def.Type == schedule.AlarmTypeUser {
		if user.ChatUserID == "" {
			return &schedule.ValidationError{Property: "targetId", Message: "Your account is not linked to a chat user."}
		}
		def.SetTarget(schedule.DirectMessage{UserID: user.ChatUserID})
		def.TargetName = guild.Name + " / DM to you"
		return nil
	}

	channel, ok := guild.Channel(def.TargetID)
	if !ok {
		return &schedule.ValidationError{
			Property: "targetId",
			Message:  "Invalid discord channel. Perhaps the channel was deleted, or the bot can't see the channel.",
		}
	}
	target := schedule.ChannelMessage{ChannelID: channel.ID}

	var roleName string
	if def.TargetRoleID != nil && *def.TargetRoleID != "" {
		role, ok := guild.Role(*def.TargetRoleID)
		if !ok {
			return &schedule.ValidationError{
				Property: "targetRoleId",
				Message:  "Invalid discord role. Perhaps the role was deleted before you saved the alarm.",
			}
		}
		target.RoleID = role.ID
		roleName = role.Name
	}

	def.SetTarget(target)
	if target.RoleID != "" {
		def.TargetRoleName = &roleName
	}
	def.TargetName = guild.Name + " / " + channel.Name
	return nil
}
