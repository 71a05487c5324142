// 文件: pkg/store/memory_repo.go
// 团队排期内存存储 (开发测试用)
//
// 【事务】
// - 写事务串行执行 (txMu)
// - 事务在状态副本上执行, 成功后整体替换, 失败直接丢弃副本
// - 读操作只拿读锁, 要么看到事务前的完整状态, 要么看到事务后的完整状态
// - 事务外的单个写操作自动包一层事务

package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"raidhub.com/pkg/schedule"
)

var _ Repository = (*MemoryRepository)(nil)

// memState 一份完整状态
type memState struct {
	nextID int64
	groups map[int64]schedule.RaidGroup
	times  map[int64]schedule.WeeklyRaidTime
	defs   map[int64]schedule.AlarmDefinition
	alarms map[int64]schedule.Alarm
}

func newMemState() *memState {
	return &memState{
		groups: make(map[int64]schedule.RaidGroup),
		times:  make(map[int64]schedule.WeeklyRaidTime),
		defs:   make(map[int64]schedule.AlarmDefinition),
		alarms: make(map[int64]schedule.Alarm),
	}
}

func (s *memState) clone() *memState {
	return &memState{
		nextID: s.nextID,
		groups: maps.Clone(s.groups),
		times:  maps.Clone(s.times),
		defs:   maps.Clone(s.defs),
		alarms: maps.Clone(s.alarms),
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

// MemoryRepository 内存实现
type MemoryRepository struct {
	mu    *sync.RWMutex
	txMu  *sync.Mutex
	state *memState
	inTx  bool
}

// NewMemoryRepository 创建内存存储
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		mu:    &sync.RWMutex{},
		txMu:  &sync.Mutex{},
		state: newMemState(),
	}
}

// =============================================================================
// 事务
// =============================================================================

// Transaction 在状态副本上执行 fn, 成功后提交
func (r *MemoryRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// 嵌套事务: 相当于 savepoint
	if r.inTx {
		work := r.state.clone()
		if err := fn(&MemoryRepository{state: work, inTx: true}); err != nil {
			return err
		}
		*r.state = *work
		return nil
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.RLock()
	work := r.state.clone()
	r.mu.RUnlock()

	if err := fn(&MemoryRepository{state: work, inTx: true}); err != nil {
		return err
	}

	r.mu.Lock()
	r.state = work
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) read(fn func(s *memState)) {
	if r.inTx {
		fn(r.state)
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn(r.state)
}

func (r *MemoryRepository) write(ctx context.Context, fn func(s *memState) error) error {
	if r.inTx {
		return fn(r.state)
	}
	return r.Transaction(ctx, func(tx Repository) error {
		return fn(tx.(*MemoryRepository).state)
	})
}

// =============================================================================
// 团队
// =============================================================================

func (r *MemoryRepository) GetRaidGroup(ctx context.Context, id int64) (*schedule.RaidGroup, error) {
	var (
		group schedule.RaidGroup
		ok    bool
	)
	r.read(func(s *memState) { group, ok = s.groups[id] })
	if !ok {
		return nil, schedule.ErrNotFound
	}
	return &group, nil
}

func (r *MemoryRepository) ListRaidGroups(ctx context.Context) ([]schedule.RaidGroup, error) {
	var out []schedule.RaidGroup
	r.read(func(s *memState) {
		out = sortedValues(s.groups, func(schedule.RaidGroup) bool { return true },
			func(g schedule.RaidGroup) int64 { return g.ID })
	})
	return out, nil
}

func (r *MemoryRepository) SaveRaidGroup(ctx context.Context, group *schedule.RaidGroup) error {
	return r.write(ctx, func(s *memState) error {
		if group.ID == 0 {
			group.ID = s.id()
		} else if group.ID > s.nextID {
			s.nextID = group.ID
		}
		s.groups[group.ID] = *group
		return nil
	})
}

func (r *MemoryRepository) SetHasSchedule(ctx context.Context, raidGroupID int64, hasSchedule bool) error {
	return r.write(ctx, func(s *memState) error {
		g, ok := s.groups[raidGroupID]
		if !ok {
			return nil
		}
		g.HasSchedule = hasSchedule
		s.groups[raidGroupID] = g
		return nil
	})
}

func (r *MemoryRepository) DeleteRaidGroup(ctx context.Context, id int64) error {
	return r.write(ctx, func(s *memState) error {
		s.deleteDefinitions(func(d schedule.AlarmDefinition) bool { return d.RaidGroupID == id })
		maps.DeleteFunc(s.times, func(_ int64, rt schedule.WeeklyRaidTime) bool { return rt.RaidGroupID == id })
		delete(s.groups, id)
		return nil
	})
}

// =============================================================================
// 开团时间
// =============================================================================

func (r *MemoryRepository) ListWeeklyRaidTimes(ctx context.Context, raidGroupID int64) ([]schedule.WeeklyRaidTime, error) {
	var out []schedule.WeeklyRaidTime
	r.read(func(s *memState) {
		out = sortedValues(s.times, func(rt schedule.WeeklyRaidTime) bool { return rt.RaidGroupID == raidGroupID },
			func(rt schedule.WeeklyRaidTime) int64 { return rt.ID })
	})
	return out, nil
}

func (r *MemoryRepository) ReplaceWeeklyRaidTimes(ctx context.Context, raidGroupID int64, times []schedule.WeeklyRaidTime) ([]schedule.WeeklyRaidTime, int64, error) {
	saved := make([]schedule.WeeklyRaidTime, len(times))
	var deleted int64

	err := r.write(ctx, func(s *memState) error {
		for id, rt := range s.times {
			if rt.RaidGroupID == raidGroupID {
				delete(s.times, id)
				deleted++
			}
		}
		for i, rt := range times {
			rt.ID = s.id()
			rt.RaidGroupID = raidGroupID
			if rt.UTCTimezoneOffset != nil {
				off := *rt.UTCTimezoneOffset
				rt.UTCTimezoneOffset = &off
			}
			s.times[rt.ID] = rt
			saved[i] = rt
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return saved, deleted, nil
}

// =============================================================================
// 闹钟定义
// =============================================================================

func (r *MemoryRepository) ListAlarmDefinitions(ctx context.Context, raidGroupID int64) ([]schedule.AlarmDefinition, error) {
	var out []schedule.AlarmDefinition
	r.read(func(s *memState) {
		out = sortedValues(s.defs, func(d schedule.AlarmDefinition) bool { return d.RaidGroupID == raidGroupID },
			func(d schedule.AlarmDefinition) int64 { return d.ID })
	})
	return out, nil
}

func (r *MemoryRepository) ListAlarmDefinitionsByOwner(ctx context.Context, ownerID int64) ([]schedule.AlarmDefinition, error) {
	var out []schedule.AlarmDefinition
	r.read(func(s *memState) {
		out = sortedValues(s.defs, func(d schedule.AlarmDefinition) bool { return d.OwnerID == ownerID },
			func(d schedule.AlarmDefinition) int64 { return d.ID })
	})
	slices.SortStableFunc(out, func(a, b schedule.AlarmDefinition) int {
		return cmp.Compare(a.RaidGroupID, b.RaidGroupID)
	})
	return out, nil
}

func (r *MemoryRepository) GetAlarmDefinition(ctx context.Context, id int64) (*schedule.AlarmDefinition, error) {
	var (
		def schedule.AlarmDefinition
		ok  bool
	)
	r.read(func(s *memState) { def, ok = s.defs[id] })
	if !ok {
		return nil, schedule.ErrNotFound
	}
	def = copyDefinition(def)
	return &def, nil
}

func (r *MemoryRepository) SaveAlarmDefinition(ctx context.Context, def *schedule.AlarmDefinition) error {
	return r.write(ctx, func(s *memState) error {
		if def.ID != 0 {
			if _, ok := s.defs[def.ID]; !ok {
				return schedule.ErrNotFound
			}
		}
		// 唯一约束 (raid_group_id, target_id, type, offset_hour)
		for _, other := range s.defs {
			if other.ID != def.ID &&
				other.RaidGroupID == def.RaidGroupID &&
				other.TargetID == def.TargetID &&
				other.Type == def.Type &&
				other.OffsetHour == def.OffsetHour {
				return schedule.ErrDuplicateAlarm
			}
		}
		if def.ID == 0 {
			def.ID = s.id()
		}
		s.defs[def.ID] = copyDefinition(*def)
		return nil
	})
}

func (r *MemoryRepository) DeleteAlarmDefinition(ctx context.Context, id int64) error {
	return r.write(ctx, func(s *memState) error {
		if _, ok := s.defs[id]; !ok {
			return schedule.ErrNotFound
		}
		s.deleteDefinitions(func(d schedule.AlarmDefinition) bool { return d.ID == id })
		return nil
	})
}

func (r *MemoryRepository) DeleteRaidGroupAlarmDefinitions(ctx context.Context, raidGroupID, ownerID int64) error {
	return r.write(ctx, func(s *memState) error {
		s.deleteDefinitions(func(d schedule.AlarmDefinition) bool {
			return d.RaidGroupID == raidGroupID && (ownerID == 0 || d.OwnerID == ownerID)
		})
		return nil
	})
}

func (r *MemoryRepository) SetAlarmDefinitionsEnabled(ctx context.Context, ownerID int64, enabled bool, channelID string) ([]int64, error) {
	var groupIDs []int64
	err := r.write(ctx, func(s *memState) error {
		seen := make(map[int64]struct{})
		for id, d := range s.defs {
			if d.OwnerID != ownerID {
				continue
			}
			if channelID != "" && (d.Type != schedule.AlarmTypeChannel || d.TargetID != channelID) {
				continue
			}
			d.IsEnabled = enabled
			s.defs[id] = d
			if _, ok := seen[d.RaidGroupID]; !ok {
				seen[d.RaidGroupID] = struct{}{}
				groupIDs = append(groupIDs, d.RaidGroupID)
			}
		}
		return nil
	})
	slices.Sort(groupIDs)
	return groupIDs, err
}

// deleteDefinitions 删除匹配的定义及其闹钟
func (s *memState) deleteDefinitions(match func(d schedule.AlarmDefinition) bool) {
	removed := make(map[int64]struct{})
	for id, d := range s.defs {
		if match(d) {
			removed[id] = struct{}{}
			delete(s.defs, id)
		}
	}
	maps.DeleteFunc(s.alarms, func(_ int64, a schedule.Alarm) bool {
		_, ok := removed[a.AlarmDefinitionID]
		return ok
	})
}

// =============================================================================
// 闹钟
// =============================================================================

func (r *MemoryRepository) ReplaceAlarms(ctx context.Context, scope AlarmScope, alarms []schedule.Alarm) error {
	if !scope.valid() {
		return ErrInvalidScope
	}
	return r.write(ctx, func(s *memState) error {
		maps.DeleteFunc(s.alarms, func(_ int64, a schedule.Alarm) bool {
			if scope.AlarmDefinitionID != 0 {
				return a.AlarmDefinitionID == scope.AlarmDefinitionID
			}
			d, ok := s.defs[a.AlarmDefinitionID]
			return ok && d.RaidGroupID == scope.RaidGroupID
		})
		for _, a := range alarms {
			a.ID = s.id()
			s.alarms[a.ID] = a
		}
		return nil
	})
}

func (r *MemoryRepository) ListScheduledAlarms(ctx context.Context, raidGroupID int64) ([]schedule.ScheduledAlarm, error) {
	var out []schedule.ScheduledAlarm
	r.read(func(s *memState) {
		out = s.joined(func(a schedule.Alarm, d schedule.AlarmDefinition) bool {
			return d.RaidGroupID == raidGroupID
		})
	})
	return out, nil
}

func (r *MemoryRepository) FindEnabledAlarmsAt(ctx context.Context, hour, minute int) ([]schedule.ScheduledAlarm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []schedule.ScheduledAlarm
	r.read(func(s *memState) {
		out = s.joined(func(a schedule.Alarm, d schedule.AlarmDefinition) bool {
			return d.IsEnabled && a.UTCHour == hour && a.UTCMinute == minute
		})
	})
	return out, nil
}

// joined 闹钟 join 定义和团队, 按闹钟 ID 排序
func (s *memState) joined(match func(a schedule.Alarm, d schedule.AlarmDefinition) bool) []schedule.ScheduledAlarm {
	ids := slices.Sorted(maps.Keys(s.alarms))
	out := make([]schedule.ScheduledAlarm, 0)
	for _, id := range ids {
		a := s.alarms[id]
		d, ok := s.defs[a.AlarmDefinitionID]
		if !ok || !match(a, d) {
			continue
		}
		out = append(out, schedule.ScheduledAlarm{
			Alarm:      a,
			Definition: copyDefinition(d),
			RaidGroup:  s.groups[d.RaidGroupID],
		})
	}
	return out
}

// =============================================================================
// 辅助函数
// =============================================================================

func sortedValues[V any](m map[int64]V, keep func(V) bool, id func(V) int64) []V {
	out := make([]V, 0)
	for _, v := range m {
		if keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b V) int { return cmp.Compare(id(a), id(b)) })
	return out
}

// copyDefinition 复制指针字段, 避免外部修改存储内容
func copyDefinition(d schedule.AlarmDefinition) schedule.AlarmDefinition {
	if d.TargetRoleID != nil {
		v := *d.TargetRoleID
		d.TargetRoleID = &v
	}
	if d.TargetRoleName != nil {
		v := *d.TargetRoleName
		d.TargetRoleName = &v
	}
	return d
}
