package alarm

import (
	"context"
	"sync"
	"time"

	"raidhub.com/pkg/schedule"
)

// Index 闹钟触发索引
//
// 数据库是唯一可信来源, 索引是按时刻分桶的只读副本
// 每次团队重算提交后整体替换该团队的条目
type Index interface {
	schedule.AlarmFinder

	// ReplaceGroup 用 alarms 整体替换团队的索引条目 (原子)
	ReplaceGroup(ctx context.Context, raidGroupID int64, alarms []schedule.ScheduledAlarm) error

	// RemoveGroup 删除团队的全部条目
	RemoveGroup(ctx context.Context, raidGroupID int64) error

	// Claim 抢占某个定义在 fireAt 这一分钟的投递权
	// 多个轮询实例同时运行时保证同一分钟只投递一次
	Claim(ctx context.Context, definitionID int64, fireAt time.Time) (bool, error)
}

// MemoryIndex 内存版索引 (单实例 / 测试用)
type MemoryIndex struct {
	mu      sync.RWMutex
	groups  map[int64][]schedule.ScheduledAlarm // key: RaidGroupID
	claimed map[claimKey]time.Time
	ttl     time.Duration
}

type claimKey struct {
	definitionID int64
	minute       int64
}

// NewMemoryIndex 创建内存索引
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		groups:  make(map[int64][]schedule.ScheduledAlarm),
		claimed: make(map[claimKey]time.Time),
		ttl:     claimTTL,
	}
}

var _ Index = (*MemoryIndex)(nil)

// ReplaceGroup 替换团队条目
func (m *MemoryIndex) ReplaceGroup(ctx context.Context, raidGroupID int64, alarms []schedule.ScheduledAlarm) error {
	rows := make([]schedule.ScheduledAlarm, len(alarms))
	copy(rows, alarms)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(rows) == 0 {
		delete(m.groups, raidGroupID)
		return nil
	}
	m.groups[raidGroupID] = rows
	return nil
}

// RemoveGroup 删除团队条目
func (m *MemoryIndex) RemoveGroup(ctx context.Context, raidGroupID int64) error {
	m.mu.Lock()
	delete(m.groups, raidGroupID)
	m.mu.Unlock()
	return nil
}

// FindEnabledAlarmsAt 模拟按时刻分桶查询
func (m *MemoryIndex) FindEnabledAlarmsAt(ctx context.Context, hour, minute int) ([]schedule.ScheduledAlarm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []schedule.ScheduledAlarm
	for _, rows := range m.groups {
		for _, r := range rows {
			if r.Definition.IsEnabled && r.Alarm.UTCHour == hour && r.Alarm.UTCMinute == minute {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// Claim 同一分钟只有第一次调用返回 true
func (m *MemoryIndex) Claim(ctx context.Context, definitionID int64, fireAt time.Time) (bool, error) {
	now := time.Now()
	key := claimKey{definitionID: definitionID, minute: fireAt.Unix() / 60}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 顺手清理过期记录
	for k, exp := range m.claimed {
		if now.After(exp) {
			delete(m.claimed, k)
		}
	}
	if _, ok := m.claimed[key]; ok {
		return false, nil
	}
	m.claimed[key] = now.Add(m.ttl)
	return true, nil
}
