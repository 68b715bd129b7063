package service

import (
	"context"
	"testing"

	"spin-server/internal/model"
)

// 持久化关闭（未注入数据库）时仓储必须安全降级：
// 扣款已成功的注单不能因为落库层空指针而整单失败。
func TestWagerRepoWithoutDatabaseIsNoOp(t *testing.T) {
	repo := NewSQLWagerRepo()
	ctx := context.Background()

	if err := repo.InsertPending(ctx, &model.Wager{
		WagerID:     "SP202601010000010001ABC",
		PlayerID:    "p1",
		OperatorID:  "op1",
		StakeAmount: 10,
	}); err != nil {
		t.Fatalf("insert pending without db: %v", err)
	}
	if err := repo.UpdateSettled(ctx, "SP202601010000010001ABC", model.OutcomeWin, 42.4,
		[]int{0, 0, 0, 1, 1}, "full_house", "txn-1", model.CreditOK); err != nil {
		t.Fatalf("update settled without db: %v", err)
	}
	if err := repo.CreateOutbox(ctx, "spin_side_effect", "SP202601010000010001ABC",
		map[string]string{"k": "v"}); err != nil {
		t.Fatalf("create outbox without db: %v", err)
	}
}
