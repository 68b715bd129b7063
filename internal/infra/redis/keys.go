package redis

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串，便于统一维护与变更。

const (
	// PrefixBalance：玩家余额快照缓存 Key 的前缀。
	// 作用：准入校验时快速拒绝余额明显不足的注单；金额权威在外部钱包方。
	PrefixBalance = "player:balance:"
	// PrefixWager：在途注单临时记录 Key 的前缀。
	// 作用：注单在结算管道内的临时态，管道终止（成功或定义的失败路径）后删除。
	PrefixWager = "wager:pending:"

	// PrefixSettleLock：注单结算锁 Key 的前缀。
	// 作用：SETNX + TTL 保证同一注单不被并发重复结算。
	PrefixSettleLock = "wager:settle:lock:"
	// PrefixWagerResult：结算结果短期缓存，用于结果查询/回放
	PrefixWagerResult = "wager:result:"
)

// BalanceKey：构造玩家余额快照的完整 Key。形如：player:balance:{operator_id}:{player_id}
func BalanceKey(playerID, operatorID string) string {
	return PrefixBalance + operatorID + ":" + playerID
}

// WagerKey：构造在途注单的完整 Key。形如：wager:pending:{operator_id}:{player_id}:{wager_id}
func WagerKey(playerID, operatorID, wagerID string) string {
	return PrefixWager + operatorID + ":" + playerID + ":" + wagerID
}

// SettleLockKey：构造注单结算锁的完整 Key。形如：wager:settle:lock:{wager_id}
func SettleLockKey(wagerID string) string { return PrefixSettleLock + wagerID }

// WagerResultKey：构造结算结果缓存 Key。形如：wager:result:{wager_id}
func WagerResultKey(wagerID string) string { return PrefixWagerResult + wagerID }
