package service

import (
	"context"

	"spin-server/common/logger"
	infmysql "spin-server/internal/infra/mysql"
	"spin-server/internal/model"
)

// sqlWagerRepo 把 model 层的裸函数适配成编排器需要的仓储接口
// 未注入数据库句柄（持久化关闭）时退化为只告警的空操作，不能在扣款后打穿管道。
type sqlWagerRepo struct{}

func NewSQLWagerRepo() WagerRepo { return sqlWagerRepo{} }

func (sqlWagerRepo) InsertPending(ctx context.Context, w *model.Wager) error {
	db := infmysql.SQLX()
	if db == nil {
		logger.Warn("persistence disabled, skip pending wager write")
		return nil
	}
	return w.InsertPending(ctx, db)
}

func (sqlWagerRepo) UpdateSettled(ctx context.Context, wagerID string, outcome int8, payout float64,
	symbols []int, pattern, creditTxnID string, creditStatus int8) error {
	db := infmysql.SQLX()
	if db == nil {
		logger.Warn("persistence disabled, skip settled wager write")
		return nil
	}
	return model.UpdateSettled(ctx, db, wagerID, outcome, payout, symbols, pattern, creditTxnID, creditStatus)
}

func (sqlWagerRepo) CreateOutbox(ctx context.Context, topic, bizKey string, payload any) error {
	db := infmysql.SQLX()
	if db == nil {
		logger.Warn("persistence disabled, skip outbox write")
		return nil
	}
	return model.CreateOutbox(ctx, db, topic, bizKey, payload)
}
