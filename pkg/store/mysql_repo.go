// 文件: pkg/store/mysql_repo.go
// 团队排期 MySQL 存储实现
//
// 【设计】
// - 使用 GORM 作为 ORM
// - 所有操作带 context 支持超时控制
// - 级联删除在事务里显式执行, 不依赖外键
// - FindEnabledAlarmsAt 走 idx_alarm_slot (utc_hour, utc_minute) 索引

package store

import (
	"context"
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"raidhub.com/pkg/schedule"
)

// 确保实现了接口
var _ Repository = (*MySQLRepository)(nil)

// mysqlDuplicateEntry MySQL 唯一键冲突错误码
const mysqlDuplicateEntry = 1062

// MySQLRepository MySQL 实现
type MySQLRepository struct {
	db *gorm.DB
}

// NewMySQLRepository 创建 MySQL 存储
func NewMySQLRepository(db *gorm.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schedule.RaidGroup{},
		&schedule.WeeklyRaidTime{},
		&schedule.AlarmDefinition{},
		&schedule.Alarm{},
	)
}

// =============================================================================
// 事务
// =============================================================================

// Transaction 在事务中执行
func (r *MySQLRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&MySQLRepository{db: tx})
	})
}

// =============================================================================
// 团队
// =============================================================================

// GetRaidGroup 查询团队
func (r *MySQLRepository) GetRaidGroup(ctx context.Context, id int64) (*schedule.RaidGroup, error) {
	var group schedule.RaidGroup
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, schedule.ErrNotFound
		}
		return nil, err
	}
	return &group, nil
}

// ListRaidGroups 查询全部团队
func (r *MySQLRepository) ListRaidGroups(ctx context.Context) ([]schedule.RaidGroup, error) {
	var groups []schedule.RaidGroup
	err := r.db.WithContext(ctx).Order("id").Find(&groups).Error
	return groups, err
}

// SaveRaidGroup 创建或更新团队
func (r *MySQLRepository) SaveRaidGroup(ctx context.Context, group *schedule.RaidGroup) error {
	if group.ID == 0 {
		return r.db.WithContext(ctx).Create(group).Error
	}
	return r.db.WithContext(ctx).Save(group).Error
}

// SetHasSchedule 更新排期标记
func (r *MySQLRepository) SetHasSchedule(ctx context.Context, raidGroupID int64, hasSchedule bool) error {
	return r.db.WithContext(ctx).
		Model(&schedule.RaidGroup{}).
		Where("id = ?", raidGroupID).
		Update("has_schedule", hasSchedule).Error
}

// DeleteRaidGroup 级联删除团队
func (r *MySQLRepository) DeleteRaidGroup(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("alarm_definition_id IN (?)", definitionIDs(tx, id)).
			Delete(&schedule.Alarm{}).Error; err != nil {
			return err
		}
		if err := tx.Where("raid_group_id = ?", id).Delete(&schedule.AlarmDefinition{}).Error; err != nil {
			return err
		}
		if err := tx.Where("raid_group_id = ?", id).Delete(&schedule.WeeklyRaidTime{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&schedule.RaidGroup{}).Error
	})
}

// definitionIDs 团队下定义 ID 的子查询
func definitionIDs(db *gorm.DB, raidGroupID int64) *gorm.DB {
	return db.Model(&schedule.AlarmDefinition{}).Select("id").Where("raid_group_id = ?", raidGroupID)
}

// =============================================================================
// 开团时间
// =============================================================================

// ListWeeklyRaidTimes 查询团队开团时间
func (r *MySQLRepository) ListWeeklyRaidTimes(ctx context.Context, raidGroupID int64) ([]schedule.WeeklyRaidTime, error) {
	var times []schedule.WeeklyRaidTime
	err := r.db.WithContext(ctx).
		Where("raid_group_id = ?", raidGroupID).
		Order("id").
		Find(&times).Error
	return times, err
}

// ReplaceWeeklyRaidTimes 删除旧开团时间并写入新的
func (r *MySQLRepository) ReplaceWeeklyRaidTimes(ctx context.Context, raidGroupID int64, times []schedule.WeeklyRaidTime) ([]schedule.WeeklyRaidTime, int64, error) {
	saved := make([]schedule.WeeklyRaidTime, len(times))
	var deleted int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("raid_group_id = ?", raidGroupID).Delete(&schedule.WeeklyRaidTime{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected

		if len(times) == 0 {
			return nil
		}
		for i, rt := range times {
			rt.ID = 0
			rt.RaidGroupID = raidGroupID
			saved[i] = rt
		}
		return tx.CreateInBatches(saved, 100).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return saved, deleted, nil
}

// =============================================================================
// 闹钟定义
// =============================================================================

// ListAlarmDefinitions 查询团队闹钟定义
func (r *MySQLRepository) ListAlarmDefinitions(ctx context.Context, raidGroupID int64) ([]schedule.AlarmDefinition, error) {
	var defs []schedule.AlarmDefinition
	err := r.db.WithContext(ctx).
		Where("raid_group_id = ?", raidGroupID).
		Order("id").
		Find(&defs).Error
	return defs, err
}

// ListAlarmDefinitionsByOwner 查询用户的闹钟定义
func (r *MySQLRepository) ListAlarmDefinitionsByOwner(ctx context.Context, ownerID int64) ([]schedule.AlarmDefinition, error) {
	var defs []schedule.AlarmDefinition
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("raid_group_id").
		Order("id").
		Find(&defs).Error
	return defs, err
}

// GetAlarmDefinition 查询闹钟定义
func (r *MySQLRepository) GetAlarmDefinition(ctx context.Context, id int64) (*schedule.AlarmDefinition, error) {
	var def schedule.AlarmDefinition
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&def).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, schedule.ErrNotFound
		}
		return nil, err
	}
	return &def, nil
}

// SaveAlarmDefinition 创建或更新闹钟定义
func (r *MySQLRepository) SaveAlarmDefinition(ctx context.Context, def *schedule.AlarmDefinition) error {
	var err error
	if def.ID == 0 {
		err = r.db.WithContext(ctx).Create(def).Error
	} else {
		err = r.db.WithContext(ctx).Save(def).Error
	}
	if err != nil {
		if isDuplicateKeyError(err) {
			return schedule.ErrDuplicateAlarm
		}
		return err
	}
	return nil
}

// DeleteAlarmDefinition 删除闹钟定义及其闹钟
func (r *MySQLRepository) DeleteAlarmDefinition(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("alarm_definition_id = ?", id).Delete(&schedule.Alarm{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&schedule.AlarmDefinition{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return schedule.ErrNotFound
		}
		return nil
	})
}

// DeleteRaidGroupAlarmDefinitions 删除团队下 (某用户) 的闹钟定义
func (r *MySQLRepository) DeleteRaidGroupAlarmDefinitions(ctx context.Context, raidGroupID, ownerID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := definitionIDs(tx, raidGroupID)
		defs := tx.Where("raid_group_id = ?", raidGroupID)
		if ownerID != 0 {
			ids = ids.Where("owner_id = ?", ownerID)
			defs = defs.Where("owner_id = ?", ownerID)
		}
		if err := tx.Where("alarm_definition_id IN (?)", ids).Delete(&schedule.Alarm{}).Error; err != nil {
			return err
		}
		return defs.Delete(&schedule.AlarmDefinition{}).Error
	})
}

// SetAlarmDefinitionsEnabled 批量更新启用状态
func (r *MySQLRepository) SetAlarmDefinitionsEnabled(ctx context.Context, ownerID int64, enabled bool, channelID string) ([]int64, error) {
	var groupIDs []int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scope := func(db *gorm.DB) *gorm.DB {
			db = db.Model(&schedule.AlarmDefinition{}).Where("owner_id = ?", ownerID)
			if channelID != "" {
				db = db.Where("type = ? AND target_id = ?", schedule.AlarmTypeChannel, channelID)
			}
			return db
		}
		if err := tx.Scopes(scope).Distinct().Order("raid_group_id").Pluck("raid_group_id", &groupIDs).Error; err != nil {
			return err
		}
		return tx.Scopes(scope).Update("is_enabled", enabled).Error
	})
	if err != nil {
		return nil, err
	}
	return groupIDs, nil
}

// =============================================================================
// 闹钟
// =============================================================================

// ReplaceAlarms 删除范围内旧闹钟并批量插入
func (r *MySQLRepository) ReplaceAlarms(ctx context.Context, scope AlarmScope, alarms []schedule.Alarm) error {
	if !scope.valid() {
		return ErrInvalidScope
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Where("alarm_definition_id = ?", scope.AlarmDefinitionID)
		if scope.RaidGroupID != 0 {
			del = tx.Where("alarm_definition_id IN (?)", definitionIDs(tx, scope.RaidGroupID))
		}
		if err := del.Delete(&schedule.Alarm{}).Error; err != nil {
			return err
		}

		if len(alarms) == 0 {
			return nil
		}
		rows := make([]schedule.Alarm, len(alarms))
		for i, a := range alarms {
			a.ID = 0
			rows[i] = a
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

// ListScheduledAlarms 团队全部闹钟
func (r *MySQLRepository) ListScheduledAlarms(ctx context.Context, raidGroupID int64) ([]schedule.ScheduledAlarm, error) {
	var out []schedule.ScheduledAlarm
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var alarms []schedule.Alarm
		err := tx.Where("alarm_definition_id IN (?)", definitionIDs(tx, raidGroupID)).
			Order("id").
			Find(&alarms).Error
		if err != nil {
			return err
		}
		out, err = assemble(tx, alarms)
		return err
	})
	return out, err
}

// FindEnabledAlarmsAt 查询某时刻的启用闹钟
//
// 一致性: 三次查询放在同一事务, InnoDB 默认 REPEATABLE READ 下读到同一快照
func (r *MySQLRepository) FindEnabledAlarmsAt(ctx context.Context, hour, minute int) ([]schedule.ScheduledAlarm, error) {
	var out []schedule.ScheduledAlarm
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var alarms []schedule.Alarm
		err := tx.Table("raid_group_alarms AS a").
			Select("a.*").
			Joins("JOIN raid_group_alarm_definitions AS d ON d.id = a.alarm_definition_id").
			Where("a.utc_hour = ? AND a.utc_minute = ? AND d.is_enabled = ?", hour, minute, true).
			Order("a.id").
			Find(&alarms).Error
		if err != nil {
			return err
		}
		out, err = assemble(tx, alarms)
		return err
	})
	return out, err
}

// assemble 为闹钟补上定义和团队
func assemble(tx *gorm.DB, alarms []schedule.Alarm) ([]schedule.ScheduledAlarm, error) {
	if len(alarms) == 0 {
		return nil, nil
	}

	defIDs := make([]int64, 0, len(alarms))
	for _, a := range alarms {
		defIDs = append(defIDs, a.AlarmDefinitionID)
	}
	var defs []schedule.AlarmDefinition
	if err := tx.Where("id IN ?", defIDs).Find(&defs).Error; err != nil {
		return nil, err
	}
	defByID := make(map[int64]schedule.AlarmDefinition, len(defs))
	groupIDs := make([]int64, 0, len(defs))
	for _, d := range defs {
		defByID[d.ID] = d
		groupIDs = append(groupIDs, d.RaidGroupID)
	}

	var groups []schedule.RaidGroup
	if err := tx.Where("id IN ?", groupIDs).Find(&groups).Error; err != nil {
		return nil, err
	}
	groupByID := make(map[int64]schedule.RaidGroup, len(groups))
	for _, g := range groups {
		groupByID[g.ID] = g
	}

	out := make([]schedule.ScheduledAlarm, 0, len(alarms))
	for _, a := range alarms {
		def, ok := defByID[a.AlarmDefinitionID]
		if !ok {
			continue
		}
		out = append(out, schedule.ScheduledAlarm{
			Alarm:      a,
			Definition: def,
			RaidGroup:  groupByID[def.RaidGroupID],
		})
	}
	return out, nil
}

// =============================================================================
// 辅助函数
// =============================================================================

// isDuplicateKeyError 判断是否是唯一键冲突
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
