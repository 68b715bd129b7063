package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// 注单结算锁
// 同一注单可能被重复进入结算（重复消息、多实例编排），必须保证只结算一次。
// 实现为共享状态上的单次原子 check-and-set（SETNX），不能用进程内列表：
// 编排器可能以多副本运行。

// 结算锁 TTL：应覆盖结算阶段（credit + 落库）的最长耗时，防止崩溃后死锁
const settleLockTTL = 30 * time.Second

// Lua 脚本：仅当锁值匹配时删除，避免误删其他持有者的锁
const releaseScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// SettleGuard 注单级并发守卫
type SettleGuard struct {
	r   *goredis.Client
	ttl time.Duration
}

// NewSettleGuard 构造结算守卫
func NewSettleGuard(c *goredis.Client) *SettleGuard {
	return &SettleGuard{r: c, ttl: settleLockTTL}
}

// TryAcquire 尝试获取注单结算锁
// 成功返回锁 token（Release 时必须回传）；已被持有返回 ok=false。
func (g *SettleGuard) TryAcquire(ctx context.Context, wagerID string) (string, bool, error) {
	token := uuid.New().String()
	ok, err := g.r.SetNX(ctx, SettleLockKey(wagerID), token, g.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release 释放结算锁；token 不匹配（已过期被他人持有）时静默返回
func (g *SettleGuard) Release(ctx context.Context, wagerID, token string) error {
	_, err := g.r.Eval(ctx, releaseScript, []string{SettleLockKey(wagerID)}, token).Result()
	return err
}
