package rtpctl

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"context"

	chelper "spin-server/common/helper"
	"spin-server/internal/engine"

	decimal "github.com/shopspring/decimal"
)

// 控盘服务客户端
// 查询协议：GET {base}/result?game_id={id}&count={n}
// 应答：{"data":{"status":bool,"probability":number}}
// status=true 且 probability=0 表示本次抽取需替换为控盘表。
// 该服务只是顾问角色：任何网络/格式错误都由引擎降级为"不控"。

const defaultTimeout = 2 * time.Second

type Client struct {
	base    string
	timeout time.Duration
}

// NewClient 创建控盘客户端；timeoutMs<=0 时使用默认 2 秒
func NewClient(base string, timeoutMs int) *Client {
	to := defaultTimeout
	if timeoutMs > 0 {
		to = time.Duration(timeoutMs) * time.Millisecond
	}
	return &Client{base: base, timeout: to}
}

// 应答体；probability 用 json.Number 接收避免浮点误差
type resultPayload struct {
	Data struct {
		Status      bool        `json:"status"`
		Probability json.Number `json:"probability"`
	} `json:"data"`
}

// Query 查询是否需要控盘
func (c *Client) Query(ctx context.Context, gameID string, count int64) (*engine.ControlDecision, error) {
	uri := fmt.Sprintf("%s/result?game_id=%s&count=%s",
		c.base, url.QueryEscape(gameID), strconv.FormatInt(count, 10))

	body, status, err := chelper.HttpDoTimeout(nil, "GET", uri, nil, c.timeout)
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("control service status %d", status)
	}

	var payload resultPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("control service malformed payload: %w", err)
	}

	// probability 缺失也按协议违规处理：缺省为 0 会被误判成强制输的裁决
	s := payload.Data.Probability.String()
	if s == "" {
		return nil, fmt.Errorf("control service malformed payload: probability missing")
	}
	prob, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("control service malformed probability: %w", err)
	}

	return &engine.ControlDecision{Control: payload.Data.Status, Probability: prob}, nil
}
