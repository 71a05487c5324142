// 文件: pkg/alarm/redis_index.go
// Redis 闹钟触发索引
//
// Key 设计:
//   raid:alarms:{hh}:{mm}        SET   时刻分桶, member = groupID:defID:alarmID:raidTimeID:mask
//   raid:alarm:def:{defID}       STRING 定义 + 团队详情 (JSON)
//   raid:group:{id}:entries      SET   团队占用的 "slotKey|member", 替换时用来清理旧条目
//   raid:group:{id}:defs         SET   团队的详情 key
//   raid:alarm:fired:{defID}:{m} STRING 投递抢占标记 (SetNX + TTL)
//
// 替换和查询都用 Lua 脚本, 轮询方要么看到完整的旧集合, 要么看到完整的新集合

package alarm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"raidhub.com/pkg/schedule"
)

const (
	slotKeyPrefix   = "raid:alarms:"
	detailKeyPrefix = "raid:alarm:def:"
	firedKeyPrefix  = "raid:alarm:fired:"

	// claimTTL 抢占标记存活时间, 覆盖轮询补偿窗口即可
	claimTTL = 2 * time.Hour
)

// RedisIndex Redis 实现
type RedisIndex struct {
	client *redis.Client
}

var _ Index = (*RedisIndex)(nil)

// NewRedisIndex 创建 Redis 索引
func NewRedisIndex(addr string) *RedisIndex {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return NewRedisIndexWithClient(rdb)
}

// NewRedisIndexWithClient 复用已有连接
func NewRedisIndexWithClient(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client}
}

// Ping 检查连接
func (x *RedisIndex) Ping(ctx context.Context) error {
	return x.client.Ping(ctx).Err()
}

// Close 关闭连接
func (x *RedisIndex) Close() error {
	return x.client.Close()
}

func slotKey(hour, minute int) string {
	return fmt.Sprintf("%s%02d:%02d", slotKeyPrefix, hour, minute)
}

func groupEntriesKey(id int64) string {
	return "raid:group:" + strconv.FormatInt(id, 10) + ":entries"
}

func groupDefsKey(id int64) string {
	return "raid:group:" + strconv.FormatInt(id, 10) + ":defs"
}

func detailKey(defID int64) string {
	return detailKeyPrefix + strconv.FormatInt(defID, 10)
}

// =============================================================================
// 替换
// =============================================================================

// luaReplaceGroup 替换团队条目
// KEYS[1]: groupEntriesKey
// KEYS[2]: groupDefsKey
// ARGV[1]: N 条分桶条目, 之后 N 组 (slotKey, member)
// ARGV[2+2N]: M 条详情, 之后 M 组 (detailKey, json)
const luaReplaceGroup = `
	-- 1. 清理旧条目
	local old = redis.call('SMEMBERS', KEYS[1])
	for _, entry in ipairs(old) do
		local sep = string.find(entry, '|', 1, true)
		redis.call('SREM', string.sub(entry, 1, sep - 1), string.sub(entry, sep + 1))
	end
	redis.call('DEL', KEYS[1])
	local oldDefs = redis.call('SMEMBERS', KEYS[2])
	for _, key in ipairs(oldDefs) do
		redis.call('DEL', key)
	end
	redis.call('DEL', KEYS[2])

	-- 2. 写入新条目
	local n = tonumber(ARGV[1])
	local i = 2
	for _ = 1, n do
		redis.call('SADD', ARGV[i], ARGV[i + 1])
		redis.call('SADD', KEYS[1], ARGV[i] .. '|' .. ARGV[i + 1])
		i = i + 2
	end
	local m = tonumber(ARGV[i])
	i = i + 1
	for _ = 1, m do
		redis.call('SET', ARGV[i], ARGV[i + 1])
		redis.call('SADD', KEYS[2], ARGV[i])
		i = i + 2
	end
	return n
`

// ReplaceGroup 整体替换团队条目
func (x *RedisIndex) ReplaceGroup(ctx context.Context, raidGroupID int64, alarms []schedule.ScheduledAlarm) error {
	args := make([]interface{}, 0, 2+len(alarms)*4)
	args = append(args, len(alarms))
	for i := range alarms {
		a := &alarms[i]
		args = append(args, slotKey(a.Alarm.UTCHour, a.Alarm.UTCMinute), encodeMember(a))
	}

	// 详情按定义去重
	details := make(map[int64]schedule.DueAlarm)
	order := make([]int64, 0)
	for i := range alarms {
		a := &alarms[i]
		if _, ok := details[a.Definition.ID]; !ok {
			order = append(order, a.Definition.ID)
		}
		details[a.Definition.ID] = schedule.DueAlarm{Definition: a.Definition, RaidGroup: a.RaidGroup}
	}
	args = append(args, len(order))
	for _, id := range order {
		data, err := json.Marshal(details[id])
		if err != nil {
			return err
		}
		args = append(args, detailKey(id), data)
	}

	keys := []string{groupEntriesKey(raidGroupID), groupDefsKey(raidGroupID)}
	return x.client.Eval(ctx, luaReplaceGroup, keys, args...).Err()
}

// RemoveGroup 删除团队条目
func (x *RedisIndex) RemoveGroup(ctx context.Context, raidGroupID int64) error {
	return x.ReplaceGroup(ctx, raidGroupID, nil)
}

// =============================================================================
// 查询
// =============================================================================

// luaFindSlot 读取分桶和对应详情
// KEYS[1]: slotKey
// ARGV[1]: detailKeyPrefix
// 返回平铺数组: member1, detail1, member2, detail2 ...
const luaFindSlot = `
	local members = redis.call('SMEMBERS', KEYS[1])
	local out = {}
	for _, member in ipairs(members) do
		local defID = string.match(member, '^%d+:(%d+):')
		local detail = false
		if defID then
			detail = redis.call('GET', ARGV[1] .. defID)
		end
		table.insert(out, member)
		table.insert(out, detail or '')
	end
	return out
`

// FindEnabledAlarmsAt 查询时刻分桶中启用的闹钟
func (x *RedisIndex) FindEnabledAlarmsAt(ctx context.Context, hour, minute int) ([]schedule.ScheduledAlarm, error) {
	res, err := x.client.Eval(ctx, luaFindSlot, []string{slotKey(hour, minute)}, detailKeyPrefix).StringSlice()
	if err != nil {
		return nil, err
	}

	out := make([]schedule.ScheduledAlarm, 0, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		alarm, ok := decodeMember(res[i])
		if !ok || res[i+1] == "" {
			continue
		}
		var detail schedule.DueAlarm
		if err := json.Unmarshal([]byte(res[i+1]), &detail); err != nil {
			return nil, fmt.Errorf("decode alarm detail %d: %w", alarm.AlarmDefinitionID, err)
		}
		if !detail.Definition.IsEnabled {
			continue
		}
		alarm.UTCHour = hour
		alarm.UTCMinute = minute
		out = append(out, schedule.ScheduledAlarm{
			Alarm:      alarm,
			Definition: detail.Definition,
			RaidGroup:  detail.RaidGroup,
		})
	}
	return out, nil
}

// Claim SetNX 抢占投递权
func (x *RedisIndex) Claim(ctx context.Context, definitionID int64, fireAt time.Time) (bool, error) {
	key := firedKeyPrefix + strconv.FormatInt(definitionID, 10) + ":" + strconv.FormatInt(fireAt.Unix()/60, 10)
	return x.client.SetNX(ctx, key, "1", claimTTL).Result()
}

// =============================================================================
// Member 编解码
// =============================================================================

// encodeMember groupID:defID:alarmID:raidTimeID:mask
func encodeMember(a *schedule.ScheduledAlarm) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(a.RaidGroup.ID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(a.Definition.ID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(a.Alarm.ID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(a.Alarm.WeeklyRaidTimeID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(a.Alarm.UTCWeekMask))
	return b.String()
}

func decodeMember(member string) (schedule.Alarm, bool) {
	parts := strings.Split(member, ":")
	if len(parts) != 5 {
		return schedule.Alarm{}, false
	}
	nums := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return schedule.Alarm{}, false
		}
		nums[i] = n
	}
	return schedule.Alarm{
		AlarmDefinitionID: nums[1],
		ID:                nums[2],
		WeeklyRaidTimeID:  nums[3],
		UTCWeekMask:       int(nums[4]),
	}, true
}
