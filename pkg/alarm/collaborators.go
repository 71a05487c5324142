// 文件: pkg/alarm/collaborators.go
// 外部协作方接口
//
// - Authorizer:     团队查看 / 编辑权限
// - TargetResolver: 聊天平台的服务器、频道、角色查询
//
// 两者都由会话层 / 聊天平台适配层实现, 这里只给出开发用的简单实现

package alarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"raidhub.com/pkg/schedule"
	"raidhub.com/pkg/store"
)

// =============================================================================
// 用户
// =============================================================================

// User 发起操作的用户
type User struct {
	ID         int64  // 站内用户 ID
	ChatUserID string // 聊天平台用户 ID, 私信闹钟的投递目标
}

// =============================================================================
// 权限
// =============================================================================

// Authorizer 团队权限检查
type Authorizer interface {
	CanViewRaidGroup(ctx context.Context, userID, raidGroupID int64) (bool, error)
	CanEditRaidGroup(ctx context.Context, userID, raidGroupID int64) (bool, error)
}

// OwnerAuthorizer 只有团队所有者可以查看和编辑
type OwnerAuthorizer struct {
	repo store.Repository
}

// NewOwnerAuthorizer 创建所有者权限检查
func NewOwnerAuthorizer(repo store.Repository) *OwnerAuthorizer {
	return &OwnerAuthorizer{repo: repo}
}

func (a *OwnerAuthorizer) CanViewRaidGroup(ctx context.Context, userID, raidGroupID int64) (bool, error) {
	return a.isOwner(ctx, userID, raidGroupID)
}

func (a *OwnerAuthorizer) CanEditRaidGroup(ctx context.Context, userID, raidGroupID int64) (bool, error) {
	return a.isOwner(ctx, userID, raidGroupID)
}

func (a *OwnerAuthorizer) isOwner(ctx context.Context, userID, raidGroupID int64) (bool, error) {
	group, err := a.repo.GetRaidGroup(ctx, raidGroupID)
	if errors.Is(err, schedule.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return group.OwnerID == userID, nil
}

// =============================================================================
// 投递目标解析
// =============================================================================

// Channel 频道
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Role 角色
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Guild 聊天服务器
type Guild struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Channels []Channel `json:"channels"`
	Roles    []Role    `json:"roles"`
}

// Channel 按 ID 查频道
func (g *Guild) Channel(id string) (Channel, bool) {
	for _, c := range g.Channels {
		if c.ID == id {
			return c, true
		}
	}
	return Channel{}, false
}

// Role 按 ID 查角色
func (g *Guild) Role(id string) (Role, bool) {
	for _, r := range g.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// TargetResolver 聊天平台查询
//
// 服务器不存在或机器人不可见时返回 (nil, nil)
type TargetResolver interface {
	ResolveGuild(ctx context.Context, guildID string) (*Guild, error)
}

// StaticResolver 固定的服务器目录 (开发测试用)
type StaticResolver struct {
	mu     sync.RWMutex
	guilds map[string]Guild
}

// NewStaticResolver 创建固定目录
func NewStaticResolver(guilds ...Guild) *StaticResolver {
	r := &StaticResolver{guilds: make(map[string]Guild, len(guilds))}
	for _, g := range guilds {
		r.guilds[g.ID] = g
	}
	return r
}

// LoadStaticResolver 从 JSON 文件 ([]Guild) 加载目录
func LoadStaticResolver(path string) (*StaticResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var guilds []Guild
	if err := json.Unmarshal(data, &guilds); err != nil {
		return nil, fmt.Errorf("parse guild directory %s: %w", path, err)
	}
	return NewStaticResolver(guilds...), nil
}

// Put 添加或替换服务器
func (r *StaticResolver) Put(g Guild) {
	r.mu.Lock()
	r.guilds[g.ID] = g
	r.mu.Unlock()
}

func (r *StaticResolver) ResolveGuild(ctx context.Context, guildID string) (*Guild, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.guilds[guildID]
	if !ok {
		return nil, nil
	}
	return &g, nil
}
