// 文件: pkg/alarm/service.go
// 闹钟业务服务
//
// 写路径 (开团时间 / 闹钟定义变更):
// 1. 权限检查 + 参数校验
// 2. 一个事务内: 写源数据 -> ComputeAlarms -> ReplaceAlarms
// 3. 提交后刷新索引 (失败只记日志, 数据库仍是可信来源)
//
// 读路径 (到点查询) 走 schedule.Matcher, 不经过本服务

package alarm

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"raidhub.com/pkg/schedule"
	"raidhub.com/pkg/store"
)

// Service 闹钟服务
type Service struct {
	repo     store.Repository
	auth     Authorizer
	resolver TargetResolver
	index    Index // 可选
	log      *zap.Logger

	// groupLocks 团队 ID -> *sync.Mutex
	// 读库 + 替换索引必须整体串行, 否则旧快照会覆盖新快照
	groupLocks sync.Map
}

// NewService 创建闹钟服务
func NewService(repo store.Repository, auth Authorizer, resolver TargetResolver, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		auth:     auth,
		resolver: resolver,
		log:      log,
	}
}

// SetIndex 设置触发索引
func (s *Service) SetIndex(index Index) {
	s.index = index
}

// =============================================================================
// 权限
// =============================================================================

func (s *Service) requireView(ctx context.Context, userID, raidGroupID int64) error {
	ok, err := s.auth.CanViewRaidGroup(ctx, userID, raidGroupID)
	if err != nil {
		return err
	}
	if !ok {
		return schedule.ErrForbidden
	}
	return nil
}

func (s *Service) requireEdit(ctx context.Context, userID, raidGroupID int64) error {
	ok, err := s.auth.CanEditRaidGroup(ctx, userID, raidGroupID)
	if err != nil {
		return err
	}
	if !ok {
		return schedule.ErrForbidden
	}
	return nil
}

// =============================================================================
// 重算
// =============================================================================

// Recompute 按当前源数据重建团队全部闹钟
func (s *Service) Recompute(ctx context.Context, raidGroupID int64) error {
	err := s.repo.Transaction(ctx, func(tx store.Repository) error {
		return recomputeGroup(ctx, tx, raidGroupID, nil)
	})
	if err != nil {
		return err
	}
	s.syncIndex(ctx, raidGroupID)
	return nil
}

// recomputeGroup 在事务 tx 内重建团队闹钟, times 为 nil 时从存储读取
func recomputeGroup(ctx context.Context, tx store.Repository, raidGroupID int64, times []schedule.WeeklyRaidTime) error {
	if times == nil {
		var err error
		times, err = tx.ListWeeklyRaidTimes(ctx, raidGroupID)
		if err != nil {
			return err
		}
	}
	defs, err := tx.ListAlarmDefinitions(ctx, raidGroupID)
	if err != nil {
		return err
	}
	return tx.ReplaceAlarms(ctx, store.ForRaidGroup(raidGroupID), schedule.ComputeAlarms(times, defs))
}

// =============================================================================
// 索引同步
// =============================================================================

// lockGroup 锁住团队的索引刷新, 返回解锁函数
func (s *Service) lockGroup(raidGroupID int64) func() {
	v, _ := s.groupLocks.LoadOrStore(raidGroupID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// refreshGroup 读库并替换团队索引, 调用方持有团队锁
func (s *Service) refreshGroup(ctx context.Context, raidGroupID int64) (int, error) {
	rows, err := s.repo.ListScheduledAlarms(ctx, raidGroupID)
	if err != nil {
		return 0, err
	}
	return len(rows), s.index.ReplaceGroup(ctx, raidGroupID, rows)
}

// syncIndex 用数据库中的闹钟刷新团队索引
func (s *Service) syncIndex(ctx context.Context, raidGroupID int64) {
	if s.index == nil {
		return
	}
	unlock := s.lockGroup(raidGroupID)
	n, err := s.refreshGroup(ctx, raidGroupID)
	unlock()
	if err != nil {
		s.log.Warn("[Alarm] index sync failed", zap.Int64("raid_group_id", raidGroupID), zap.Error(err))
		return
	}
	s.log.Debug("[Alarm] index synced", zap.Int64("raid_group_id", raidGroupID), zap.Int("alarms", n))
}

// RebuildIndex 重建全部团队索引 (启动时调用)
func (s *Service) RebuildIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	groups, err := s.repo.ListRaidGroups(ctx)
	if err != nil {
		return err
	}
	for _, g := range groups {
		unlock := s.lockGroup(g.ID)
		_, err := s.refreshGroup(ctx, g.ID)
		unlock()
		if err != nil {
			return err
		}
	}
	s.log.Info("[Alarm] index rebuilt", zap.Int("raid_groups", len(groups)))
	return nil
}

// =============================================================================
// 团队
// =============================================================================

// DeleteRaidGroup 删除团队 (级联)
func (s *Service) DeleteRaidGroup(ctx context.Context, user User, raidGroupID int64) error {
	if err := s.requireEdit(ctx, user.ID, raidGroupID); err != nil {
		return err
	}
	if err := s.repo.DeleteRaidGroup(ctx, raidGroupID); err != nil {
		return err
	}
	if s.index != nil {
		unlock := s.lockGroup(raidGroupID)
		err := s.index.RemoveGroup(ctx, raidGroupID)
		unlock()
		if err != nil {
			s.log.Warn("[Alarm] index remove failed", zap.Int64("raid_group_id", raidGroupID), zap.Error(err))
		}
	}
	s.log.Info("[Alarm] raid group deleted", zap.Int64("raid_group_id", raidGroupID), zap.Int64("user_id", user.ID))
	return nil
}

// RemoveMemberAlarms 成员离开团队时删除其闹钟定义, ownerID 为 0 时删除全部
func (s *Service) RemoveMemberAlarms(ctx context.Context, raidGroupID, ownerID int64) error {
	if err := s.repo.DeleteRaidGroupAlarmDefinitions(ctx, raidGroupID, ownerID); err != nil {
		return err
	}
	s.syncIndex(ctx, raidGroupID)
	return nil
}
