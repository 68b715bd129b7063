package engine

import (
	"context"
	"time"

	"spin-server/common/logger"
	"spin-server/internal/metrics"

	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

// 开奖引擎：加权抽取 + RTP 控盘闸口
//
// 抽取流程：
// 1. 先按常规转轮表各轮独立抽一个符号；
// 2. 当累计抽取次数达到阈值时，查询外部控盘服务：
//    - status=true 且 probability 恰好为 0：废弃第 1 步结果，改用控盘表重抽；
//    - status=false：计数器清零，用常规表重抽；
//    - 服务不可达或响应非法：视为"不控"，沿用第 1 步结果，绝不阻塞结算；
// 3. 按符号频次形态解析赔率倍数，winAmount = stake * multiplier。

// ControlDecision 控盘服务的应答
type ControlDecision struct {
	Control     bool
	Probability decimal.Decimal
}

// ControlClient 控盘服务查询接口，测试可替换
type ControlClient interface {
	Query(ctx context.Context, gameID string, count int64) (*ControlDecision, error)
}

// DrawResult 一次抽取的完整结果
type DrawResult struct {
	Symbols          []int
	Pattern          string
	Multiplier       decimal.Decimal
	WinAmount        decimal.Decimal
	Win              bool
	ControlConsulted bool
	NextCounter      int64
}

// Engine 持有转轮配置与控盘客户端；随机源可注入以便测试
type Engine struct {
	gameID    string
	threshold int64
	control   ControlClient
	rnd       func(n int) int
}

// New 创建开奖引擎。threshold 为控盘查询阈值；src 为空时使用时间种子。
func New(gameID string, threshold int64, control ControlClient, src rand.Source) *Engine {
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	r := rand.New(src)
	return &Engine{
		gameID:    gameID,
		threshold: threshold,
		control:   control,
		rnd:       r.Intn,
	}
}

// Draw 为一笔注单产出开奖结果
// counter 为进程级的累计抽取计数；返回值中的 NextCounter 由调用方写回共享计数器。
func (e *Engine) Draw(ctx context.Context, stake decimal.Decimal, counter int64) (*DrawResult, error) {
	symbols := drawFrom(&normalReels, e.rnd)
	consulted := false
	next := counter + 1

	if counter >= e.threshold && e.control != nil {
		dec, err := e.control.Query(ctx, e.gameID, counter)
		switch {
		case err != nil || dec == nil:
			// 控盘服务掉线不影响出奖，沿用首抽
			logger.Warn("rtp control unreachable, keep first draw",
				zap.String("game_id", e.gameID), zap.Int64("counter", counter), zap.Error(err))
			metrics.RecordControlConsult("unreachable")
		case dec.Control && dec.Probability.IsZero():
			consulted = true
			symbols = drawFrom(&forcedLossReels, e.rnd)
			next = 0
			metrics.RecordControlConsult("force")
		default:
			// 明确应答"不控"：计数器清零并按常规表重抽
			consulted = true
			symbols = drawFrom(&normalReels, e.rnd)
			next = 0
			metrics.RecordControlConsult("pass")
		}
	}

	mult, pattern := Multiplier(symbols)
	winAmount := stake.Mul(mult).Round(2)
	return &DrawResult{
		Symbols:          symbols,
		Pattern:          pattern,
		Multiplier:       mult,
		WinAmount:        winAmount,
		Win:              winAmount.GreaterThan(decimal.Zero),
		ControlConsulted: consulted,
		NextCounter:      next,
	}, nil
}
