package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	chelper "spin-server/common/helper"
	"spin-server/common/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 钱包方结算客户端
// 每笔注单做两次同步调用：下注时 Debit 扣款，中奖时 Credit 派彩。
// 交易号由本端生成（扣款/派彩各一个），钱包方依此对重试去重。
// 扣款被拒不做补偿调用（钱未动）；派彩被拒由上层标记待对账。

// Result 钱包方应答
type Result struct {
	Accepted bool
	Msg      string
}

// DebitRequest 扣款请求
type DebitRequest struct {
	TxnID    string `json:"txn_id"`
	PlayerID string `json:"player_id"`
	Amount   string `json:"amount"`
	IP       string `json:"ip"`
	MatchID  string `json:"match_id"`
}

// CreditRequest 派彩请求
type CreditRequest struct {
	TxnID    string `json:"txn_id"`
	PlayerID string `json:"player_id"`
	Amount   string `json:"amount"`
	MatchID  string `json:"match_id"`
}

// Client 钱包方接口，测试可替换
type Client interface {
	Debit(ctx context.Context, req DebitRequest) (*Result, error)
	Credit(ctx context.Context, req CreditRequest) (*Result, error)
}

// NewTxnID 生成本端唯一交易号
func NewTxnID() string { return uuid.New().String() }

// httpClient 基于 fasthttp 的钱包方实现
type httpClient struct {
	base       string
	debitPath  string
	creditPath string
	timeout    time.Duration
}

// NewClient 创建钱包方HTTP客户端
// debitPath/creditPath 为空时默认 /debit 与 /credit。
func NewClient(base, debitPath, creditPath string, timeoutMs int) Client {
	if debitPath == "" {
		debitPath = "/debit"
	}
	if creditPath == "" {
		creditPath = "/credit"
	}
	to := chelper.WalletTimeout
	if timeoutMs > 0 {
		to = time.Duration(timeoutMs) * time.Millisecond
	}
	return &httpClient{base: base, debitPath: debitPath, creditPath: creditPath, timeout: to}
}

// 钱包方统一应答体
type walletResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"msg"`
}

func (c *httpClient) Debit(ctx context.Context, req DebitRequest) (*Result, error) {
	return c.post(ctx, c.base+c.debitPath, req)
}

func (c *httpClient) Credit(ctx context.Context, req CreditRequest) (*Result, error) {
	return c.post(ctx, c.base+c.creditPath, req)
}

func (c *httpClient) post(ctx context.Context, uri string, payload any) (*Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"Content-Type": "application/json"}
	respBytes, status, err := chelper.HttpDoTimeoutForWallet(body, "POST", uri, headers, c.timeout)
	if err != nil {
		logger.Warn("wallet call failed",
			zap.String("uri", uri),
			zap.String("trace_id", logger.GetTraceID(ctx)),
			zap.Error(err))
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("wallet authority status %d", status)
	}

	var wr walletResponse
	if err := json.Unmarshal(respBytes, &wr); err != nil {
		return nil, fmt.Errorf("wallet authority malformed response: %w", err)
	}
	return &Result{Accepted: wr.Status, Msg: wr.Msg}, nil
}
