package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	decimal "github.com/shopspring/decimal"
)

// Store 基于 Redis 的共享状态存储：玩家余额快照 + 在途注单临时记录
// 注意：这层只是缓存，钱的权威在外部钱包方与持久库；缓存丢失不能造成账务不一致。
type Store struct {
	r *goredis.Client
}

// NewStore 用已初始化的客户端构造 Store
func NewStore(c *goredis.Client) *Store { return &Store{r: c} }

// 在途注单的兜底 TTL：正常路径由 EvictWager 删除，TTL 只防泄漏
const wagerTTL = 10 * time.Minute

// CacheWager 写入在途注单的字段集合（hash）
func (s *Store) CacheWager(ctx context.Context, playerID, operatorID, wagerID string, fields map[string]any) error {
	key := WagerKey(playerID, operatorID, wagerID)
	if err := s.r.HSet(ctx, key, fields).Err(); err != nil {
		return err
	}
	return s.r.Expire(ctx, key, wagerTTL).Err()
}

// UpdateWager 更新在途注单的部分字段
func (s *Store) UpdateWager(ctx context.Context, playerID, operatorID, wagerID string, fields map[string]any) error {
	return s.r.HSet(ctx, WagerKey(playerID, operatorID, wagerID), fields).Err()
}

// EvictWager 删除在途注单记录（管道终止时调用）
func (s *Store) EvictWager(ctx context.Context, playerID, operatorID, wagerID string) error {
	return s.r.Del(ctx, WagerKey(playerID, operatorID, wagerID)).Err()
}

// GetBalance 读取玩家余额快照
// 第二个返回值为 false 表示记录不存在：上层必须硬失败，绝不能默认为 0。
func (s *Store) GetBalance(ctx context.Context, playerID, operatorID string) (decimal.Decimal, bool, error) {
	val, err := s.r.Get(ctx, BalanceKey(playerID, operatorID)).Result()
	if err == goredis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

// SetBalance 写入玩家余额快照
// 无过期：余额常驻。首次灌入由运营方对接流程负责（演示模式下开通会话时灌入）。
func (s *Store) SetBalance(ctx context.Context, playerID, operatorID string, v decimal.Decimal) error {
	return s.r.Set(ctx, BalanceKey(playerID, operatorID), v.StringFixed(2), 0).Err()
}

// CacheWagerResult 将结算结果写入短期缓存，便于结果查询/回放
func (s *Store) CacheWagerResult(ctx context.Context, wagerID string, payload []byte, ttl time.Duration) error {
	return s.r.Set(ctx, WagerResultKey(wagerID), payload, ttl).Err()
}
