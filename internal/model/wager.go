package model

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Wager 对应 wagers 表
// 每笔注单写库两次：扣款确认后插入 pending，结算完成后更新终态。
// outcome: 0=pending 1=win 2=lose
// credit_status: 0=无需派彩 1=派彩成功 2=派彩失败（待对账）
type Wager struct {
	WagerID      string  `db:"wager_id"`      // 注单号(主键)
	PlayerID     string  `db:"player_id"`     // 玩家ID（运营方侧）
	OperatorID   string  `db:"operator_id"`   // 运营方ID
	GameID       string  `db:"game_id"`       // 游戏ID
	StakeAmount  float64 `db:"stake_amount"`  // 投注金额(非负)
	DebitTxnID   string  `db:"debit_txn_id"`  // 扣款交易号（本端生成）
	CreditTxnID  string  `db:"credit_txn_id"` // 派彩交易号（本端生成，未派彩为空）
	Outcome      int8    `db:"outcome"`       // 结算结果
	PayoutAmount float64 `db:"payout_amount"` // 派彩金额
	Symbols      string  `db:"symbols"`       // 开奖符号（逗号分隔）
	Pattern      string  `db:"pattern"`       // 命中牌型
	CreditStatus int8    `db:"credit_status"` // 派彩状态
	SourceIP     string  `db:"source_ip"`     // 来源IP
	TraceID      string  `db:"trace_id"`      // 链路追踪ID
	CreatedAt    int64   `db:"created_at"`    // 创建时间（毫秒戳）
	UpdatedAt    int64   `db:"updated_at"`    // 更新时间
}

// outcome 枚举
const (
	OutcomePending int8 = 0
	OutcomeWin     int8 = 1
	OutcomeLose    int8 = 2
)

// credit_status 枚举
const (
	CreditNone   int8 = 0
	CreditOK     int8 = 1
	CreditFailed int8 = 2
)

// InsertPending 第一次写库：扣款确认后落 pending 记录
func (w *Wager) InsertPending(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()

	// 使用原生 SQL 以避免 goqu 在某些 MySQL 版本上的兼容性问题
	sqlStr := `INSERT INTO wagers (wager_id, player_id, operator_id, game_id, stake_amount, debit_txn_id,
		credit_txn_id, outcome, payout_amount, symbols, pattern, credit_status, source_ip, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, sqlStr, w.WagerID, w.PlayerID, w.OperatorID, w.GameID, w.StakeAmount, w.DebitTxnID,
		"", OutcomePending, 0, "", "", CreditNone, w.SourceIP, w.TraceID, now, now)
	return err
}

// UpdateSettled 第二次写库：结算完成后更新终态（win/lose、派彩金额、符号与派彩状态）
func UpdateSettled(ctx context.Context, exec sqlx.ExtContext, wagerID string, outcome int8, payout float64,
	symbols []int, pattern, creditTxnID string, creditStatus int8) error {
	now := time.Now().UnixMilli()

	sqlStr := `UPDATE wagers SET outcome = ?, payout_amount = ?, symbols = ?, pattern = ?,
		credit_txn_id = ?, credit_status = ?, updated_at = ? WHERE wager_id = ?`
	_, err := exec.ExecContext(ctx, sqlStr, outcome, payout, joinSymbols(symbols), pattern,
		creditTxnID, creditStatus, now, wagerID)
	return err
}

// joinSymbols 符号序列转逗号分隔字符串，如 [0 0 0 1 1] -> "0,0,0,1,1"
func joinSymbols(symbols []int) string {
	parts := make([]string, len(symbols))
	for i, s := range symbols {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ",")
}

// WagerRecord 注单记录（用于查询接口）
type WagerRecord struct {
	WagerID      string  `db:"wager_id" json:"wager_id"`
	GameID       string  `db:"game_id" json:"game_id"`
	StakeAmount  float64 `db:"stake_amount" json:"stake_amount"`
	Outcome      int8    `db:"outcome" json:"outcome"`
	PayoutAmount float64 `db:"payout_amount" json:"payout_amount"`
	Symbols      string  `db:"symbols" json:"symbols"`
	Pattern      string  `db:"pattern" json:"pattern"`
	CreditStatus int8    `db:"credit_status" json:"credit_status"`
	CreatedAt    int64   `db:"created_at" json:"created_at"`
	UpdatedAt    int64   `db:"updated_at" json:"updated_at"`
}

// ListPlayerWagers 查询玩家的注单历史（按时间倒序）
func ListPlayerWagers(ctx context.Context, db *sqlx.DB, playerID, operatorID string, limit int) ([]WagerRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100 // 最多返回 100 条
	}

	sqlStr := `SELECT wager_id, game_id, stake_amount, outcome, payout_amount, symbols, pattern, credit_status, created_at, updated_at
		FROM wagers
		WHERE player_id = ? AND operator_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	var records []WagerRecord
	if err := db.SelectContext(ctx, &records, sqlStr, playerID, operatorID, limit); err != nil {
		return nil, err
	}
	return records, nil
}

// ListCreditFailed 查询派彩失败待对账的注单（对账工具使用）
func ListCreditFailed(ctx context.Context, db *sqlx.DB, limit int) ([]WagerRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	sqlStr := `SELECT wager_id, game_id, stake_amount, outcome, payout_amount, symbols, pattern, credit_status, created_at, updated_at
		FROM wagers WHERE credit_status = ? ORDER BY created_at ASC LIMIT ?`

	var records []WagerRecord
	if err := db.SelectContext(ctx, &records, sqlStr, CreditFailed, limit); err != nil {
		return nil, err
	}
	return records, nil
}
