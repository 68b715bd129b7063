package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	chelper "spin-server/common/helper"
	"spin-server/common/logger"
	"spin-server/internal/engine"
	infmq "spin-server/internal/infra/rocketmq"
	"spin-server/internal/metrics"
	"spin-server/internal/model"
	"spin-server/internal/state"
	"spin-server/internal/wallet"

	decimal "github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 处理投注结算业务逻辑

// BetInput 输入参数
// 身份字段由传输层认证中间件注入
type BetInput struct {
	PlayerID    string
	OperatorID  string
	StakeAmount string
	SourceIP    string
	TraceID     string
}

type BetOutput struct {
	WagerID      string
	Symbols      []int
	Pattern      string
	Outcome      string // win|lose
	WinAmount    string
	Balance      string // 结算后余额快照
	CreditFailed bool   // 派彩被拒（注单仍按计算结果完结，待对账）
}

type BetService interface {
	PlaceBet(ctx context.Context, in BetInput) (*BetOutput, error)
}

// Notification 推送给调用方通道的带标签消息
// Win 在每次结算完成后都会发出（包括输），标签名是历史遗留。
type Action string

const (
	ActionBetPlaced Action = "BetPlaced"
	ActionWin       Action = "Win"
	ActionError     Action = "Error"
)

type Notification struct {
	Action  Action `json:"action"`
	Message any    `json:"message"`
}

type Notifier interface {
	Notify(n Notification)
}

// StateStore 共享状态存储：玩家余额快照 + 在途注单
// 余额记录缺失必须硬失败，绝不默认为 0。
type StateStore interface {
	CacheWager(ctx context.Context, playerID, operatorID, wagerID string, fields map[string]any) error
	UpdateWager(ctx context.Context, playerID, operatorID, wagerID string, fields map[string]any) error
	EvictWager(ctx context.Context, playerID, operatorID, wagerID string) error
	GetBalance(ctx context.Context, playerID, operatorID string) (decimal.Decimal, bool, error)
	SetBalance(ctx context.Context, playerID, operatorID string, v decimal.Decimal) error
	CacheWagerResult(ctx context.Context, wagerID string, payload []byte, ttl time.Duration) error
}

// Guard 注单级并发守卫：同一注单只允许一次结算
type Guard interface {
	TryAcquire(ctx context.Context, wagerID string) (token string, ok bool, err error)
	Release(ctx context.Context, wagerID, token string) error
}

// Drawer 开奖引擎接口，测试可替换
type Drawer interface {
	Draw(ctx context.Context, stake decimal.Decimal, counter int64) (*engine.DrawResult, error)
}

// WagerRepo 注单持久化：每笔注单两次写库 + 对账 outbox
type WagerRepo interface {
	InsertPending(ctx context.Context, w *model.Wager) error
	UpdateSettled(ctx context.Context, wagerID string, outcome int8, payout float64,
		symbols []int, pattern, creditTxnID string, creditStatus int8) error
	CreateOutbox(ctx context.Context, topic, bizKey string, payload any) error
}

// Deps 编排器依赖集合
type Deps struct {
	Store    StateStore
	Guard    Guard
	Wallet   wallet.Client
	Engine   Drawer
	Repo     WagerRepo
	Pub      infmq.Publisher
	Notifier Notifier

	GameID   string
	Topic    string // 侧效消息主题
	StakeMin decimal.Decimal
	StakeMax decimal.Decimal
}

type betService struct {
	d Deps
}

func NewBetService(d Deps) BetService { return &betService{d: d} }

// 进程级抽取计数器：控盘闸口的"距上次询问抽了几次"
// 并发抽取在该计数器上竞争是可接受的（近似控盘），注单锁必须精确。
var drawCounter atomic.Int64

// 结算结果缓存 TTL
const wagerResultTTL = 2 * time.Minute

var (
	ErrInvalidStake        = errors.New("invalid stake amount")
	ErrStakeOutOfRange     = errors.New("stake amount out of range")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrPlayerStateNotFound = errors.New("player state not found")
	ErrDebitRejected       = errors.New("bet cancelled by upstream")
	ErrAlreadyProcessing   = errors.New("wager already processing")
	ErrInternal            = errors.New("internal error")
)

// PlaceBet 处理下注结算主流程：
// validating -> debiting -> drawing -> settling -> completed
// （rejected 仅从 validating/debiting 可达）
func (s *betService) PlaceBet(ctx context.Context, in BetInput) (out *BetOutput, err error) {

	start := time.Now()
	result := "fail"
	outcomeLabel := "none"
	defer func() { metrics.RecordSpin(result, outcomeLabel, start) }()

	var wagerID string

	// 顶层兜底：管道内任何 panic 记录完整上下文后按通用错误上报，不击穿进程
	defer func() {
		if r := recover(); r != nil {
			logger.Error("spin pipeline panic",
				zap.String("wager_id", wagerID),
				zap.String("player_id", in.PlayerID),
				zap.String("operator_id", in.OperatorID),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
				zap.String("trace_id", in.TraceID))
			s.notify(ActionError, map[string]any{"reason": "internal error", "wager_id": wagerID})
			out, err = nil, ErrInternal
		}
	}()

	cur := state.StateValidating
	advance := func(evt string) {
		next, terr := state.NextState(cur, evt)
		if terr != nil {
			// 状态机被违反说明编排有 bug，记录后继续（不再 panic）
			logger.Error("wager state machine violation", zap.String("wager_id", wagerID), zap.Error(terr))
			return
		}
		cur = next
	}

	// ========== 投注金额解析和验证 ==========
	// 1. 解析金额字符串
	// 2. 验证金额为正数
	// 3. 验证配置的最小/最大投注限制
	// ================================================

	stake, perr := decimal.NewFromString(strings.TrimSpace(in.StakeAmount))
	if perr != nil {
		fmt.Printf("[Spin]  无效的投注金额格式: stake=%s, error=%v, trace_id=%s\n",
			in.StakeAmount, perr, in.TraceID)
		return s.reject(&cur, ErrInvalidStake, "invalid stake amount format")
	}
	if stake.LessThanOrEqual(decimal.Zero) {
		return s.reject(&cur, ErrInvalidStake, "stake amount must be positive")
	}
	if stake.LessThan(s.d.StakeMin) {
		return s.reject(&cur, ErrStakeOutOfRange,
			fmt.Sprintf("stake amount below minimum limit: %s", s.d.StakeMin.String()))
	}
	if stake.GreaterThan(s.d.StakeMax) {
		return s.reject(&cur, ErrStakeOutOfRange,
			fmt.Sprintf("stake amount exceeds maximum limit: %s", s.d.StakeMax.String()))
	}

	fmt.Printf("[Spin]  收到投注请求: player_id=%s, operator_id=%s, stake=%s, trace_id=%s\n",
		in.PlayerID, in.OperatorID, in.StakeAmount, in.TraceID)

	// ========== 余额快照准入校验 ==========
	// 快照缺失是硬失败：宁可拒单也不默认为 0（金额权威在钱包方）
	balance, found, berr := s.d.Store.GetBalance(ctx, in.PlayerID, in.OperatorID)
	if berr != nil {
		logger.Error("read balance snapshot failed", zap.String("player_id", in.PlayerID), zap.Error(berr))
		return s.reject(&cur, ErrInternal, "internal error")
	}
	if !found {
		return s.reject(&cur, ErrPlayerStateNotFound, "player state not found")
	}
	if balance.LessThan(stake) {
		return s.reject(&cur, ErrInsufficientBalance, "insufficient balance")
	}

	advance(state.EvtStakeAccepted) // -> debiting

	// ========== 扣款阶段 ==========
	// 1. 生成注单号与扣款交易号（本端唯一，供钱包方去重）
	// 2. 缓存在途注单
	// 3. 调用钱包方 Debit；被拒则回滚缓存并终止，不做补偿调用
	// ================================================
	wagerID = generateWagerNo(in.PlayerID)
	debitTxnID := wallet.NewTxnID()

	if cerr := s.d.Store.CacheWager(ctx, in.PlayerID, in.OperatorID, wagerID, map[string]any{
		"wager_id":     wagerID,
		"player_id":    in.PlayerID,
		"operator_id":  in.OperatorID,
		"stake_amount": stake.StringFixed(2),
		"debit_txn_id": debitTxnID,
		"outcome":      "pending",
		"source_ip":    in.SourceIP,
		"created_at":   time.Now().UnixMilli(),
	}); cerr != nil {
		logger.Error("cache wager failed", zap.String("wager_id", wagerID), zap.Error(cerr))
		return s.reject(&cur, ErrInternal, "internal error")
	}

	dres, derr := s.d.Wallet.Debit(ctx, wallet.DebitRequest{
		TxnID:    debitTxnID,
		PlayerID: in.PlayerID,
		Amount:   stake.StringFixed(2),
		IP:       in.SourceIP,
		MatchID:  wagerID,
	})
	if derr != nil || !dres.Accepted {
		msg := "debit call failed"
		if derr == nil {
			msg = dres.Msg
		}
		fmt.Printf("[Spin]  扣款被拒，回滚注单缓存: wager_id=%s, msg=%s, err=%v, trace_id=%s\n",
			wagerID, msg, derr, in.TraceID)
		_ = s.d.Store.EvictWager(ctx, in.PlayerID, in.OperatorID, wagerID)
		return s.reject(&cur, ErrDebitRejected, "cancelled by upstream: "+msg)
	}

	// 扣款确认后、开奖前更新余额快照：崩溃在开奖中间时快照已是扣款后状态，
	// 与钱包方（权威）对账即可恢复
	balance = balance.Sub(stake)
	if serr := s.d.Store.SetBalance(ctx, in.PlayerID, in.OperatorID, balance); serr != nil {
		logger.Warn("update balance snapshot failed", zap.String("wager_id", wagerID), zap.Error(serr))
	}
	if uerr := s.d.Store.UpdateWager(ctx, in.PlayerID, in.OperatorID, wagerID, map[string]any{
		"debit_status": "accepted",
	}); uerr != nil {
		logger.Warn("update wager cache failed", zap.String("wager_id", wagerID), zap.Error(uerr))
	}

	// 第一次落库：pending 注单
	if ierr := s.d.Repo.InsertPending(ctx, &model.Wager{
		WagerID:     wagerID,
		PlayerID:    in.PlayerID,
		OperatorID:  in.OperatorID,
		GameID:      s.d.GameID,
		StakeAmount: stake.Round(2).InexactFloat64(),
		DebitTxnID:  debitTxnID,
		SourceIP:    in.SourceIP,
		TraceID:     in.TraceID,
	}); ierr != nil {
		// 钱已扣：落库失败只告警不回滚，由对账兜底
		logger.Error("insert pending wager failed", zap.String("wager_id", wagerID), zap.Error(ierr))
	}

	// 侧效消息：fire-and-forget，发送失败不影响结算
	s.publishSideEffect(stake, wagerID)

	s.notify(ActionBetPlaced, map[string]any{
		"wager_id": wagerID,
		"balance":  chelper.TrimDecimal(balance),
	})

	advance(state.EvtDebitAccepted) // -> drawing

	// ========== 开奖阶段 ==========
	// 扣款确认严格先于开奖；计数器为进程级共享，近似控盘即可
	cnt := drawCounter.Load()
	res, drawErr := s.d.Engine.Draw(ctx, stake, cnt)
	if drawErr != nil {
		logger.Error("draw failed", zap.String("wager_id", wagerID), zap.Error(drawErr))
		s.notify(ActionError, map[string]any{"reason": "internal error", "wager_id": wagerID})
		return nil, ErrInternal
	}
	drawCounter.Store(res.NextCounter)

	drawOutcome := "lose"
	if res.Win {
		drawOutcome = "win"
	}
	if uerr := s.d.Store.UpdateWager(ctx, in.PlayerID, in.OperatorID, wagerID, map[string]any{
		"outcome":    drawOutcome,
		"pattern":    res.Pattern,
		"win_amount": res.WinAmount.StringFixed(2),
	}); uerr != nil {
		logger.Warn("update wager cache failed", zap.String("wager_id", wagerID), zap.Error(uerr))
	}

	advance(state.EvtDrawProduced) // -> settling

	// ========== 结算阶段 ==========
	// 1. 获取注单结算锁（共享存储上的原子 check-and-set）
	// 2. 中奖则派彩；派彩被拒不回滚开奖（重抽会让控盘计数被操纵）
	// 3. 第二次落库 + 更新余额快照 + 通知 + 驱逐缓存
	// ================================================
	token, acquired, gerr := s.d.Guard.TryAcquire(ctx, wagerID)
	if gerr != nil {
		logger.Error("settle guard acquire failed", zap.String("wager_id", wagerID), zap.Error(gerr))
		s.notify(ActionError, map[string]any{"reason": "internal error", "wager_id": wagerID})
		return nil, ErrInternal
	}
	if !acquired {
		fmt.Printf("[Spin]  注单结算中，拒绝重复结算: wager_id=%s, trace_id=%s\n", wagerID, in.TraceID)
		s.notify(ActionError, map[string]any{"reason": "already processing", "wager_id": wagerID})
		return nil, ErrAlreadyProcessing
	}
	released := false
	releaseGuard := func() {
		if released {
			return
		}
		released = true
		_ = s.d.Guard.Release(ctx, wagerID, token)
	}
	// 兜底释放：panic 时不把锁留到 TTL 过期
	defer releaseGuard()

	creditTxnID := ""
	creditStatus := model.CreditNone
	creditFailed := false
	if res.Win {
		creditTxnID = wallet.NewTxnID()
		cres, cerr := s.d.Wallet.Credit(ctx, wallet.CreditRequest{
			TxnID:    creditTxnID,
			PlayerID: in.PlayerID,
			Amount:   res.WinAmount.StringFixed(2),
			MatchID:  wagerID,
		})
		if cerr != nil || !cres.Accepted {
			creditFailed = true
			creditStatus = model.CreditFailed
			msg := "credit call failed"
			if cerr == nil {
				msg = cres.Msg
			}
			logger.Error("credit rejected, wager settles with computed outcome",
				zap.String("wager_id", wagerID),
				zap.String("win_amount", res.WinAmount.StringFixed(2)),
				zap.String("msg", msg),
				zap.Error(cerr))
			// 对账事件：钱包方少付了这笔派彩
			if oerr := s.d.Repo.CreateOutbox(ctx, "wager_credit_failed", wagerID, map[string]any{
				"event":         "wager_credit_failed",
				"wager_id":      wagerID,
				"player_id":     in.PlayerID,
				"operator_id":   in.OperatorID,
				"credit_txn_id": creditTxnID,
				"win_amount":    res.WinAmount.StringFixed(2),
				"msg":           msg,
				"trace_id":      in.TraceID,
			}); oerr != nil {
				logger.Error("write credit reconciliation outbox failed", zap.String("wager_id", wagerID), zap.Error(oerr))
			}
		} else {
			creditStatus = model.CreditOK
		}
	}

	outcomeCode := model.OutcomeLose
	outcomeStr := "lose"
	if res.Win {
		outcomeCode = model.OutcomeWin
		outcomeStr = "win"
	}
	outcomeLabel = outcomeStr

	// 第二次落库：终态
	if uerr := s.d.Repo.UpdateSettled(ctx, wagerID, outcomeCode, res.WinAmount.InexactFloat64(),
		res.Symbols, res.Pattern, creditTxnID, creditStatus); uerr != nil {
		logger.Error("update settled wager failed", zap.String("wager_id", wagerID), zap.Error(uerr))
	}

	// 终态已落库，立即放锁：余额快照/通知/驱逐不需要在锁内做
	releaseGuard()

	// 派彩成功才把奖金计入快照：快照要贴近钱包方的真实余额
	if res.Win && !creditFailed {
		balance = balance.Add(res.WinAmount)
	}
	if serr := s.d.Store.SetBalance(ctx, in.PlayerID, in.OperatorID, balance); serr != nil {
		logger.Warn("update balance snapshot failed", zap.String("wager_id", wagerID), zap.Error(serr))
	}

	advance(state.EvtSettled) // -> completed

	out = &BetOutput{
		WagerID:      wagerID,
		Symbols:      res.Symbols,
		Pattern:      res.Pattern,
		Outcome:      outcomeStr,
		WinAmount:    chelper.TrimDecimal(res.WinAmount),
		Balance:      chelper.TrimDecimal(balance),
		CreditFailed: creditFailed,
	}

	// Win 通知无论输赢都发（标签历史遗留），派彩失败一并带出
	s.notify(ActionWin, map[string]any{
		"wager_id":      wagerID,
		"symbols":       res.Symbols,
		"pattern":       res.Pattern,
		"outcome":       outcomeStr,
		"win_amount":    out.WinAmount,
		"balance":       out.Balance,
		"credit_failed": creditFailed,
	})

	// 结算结果短期缓存，便于查询/回放（降级容错）
	if b, e := json.Marshal(out); e == nil {
		_ = s.d.Store.CacheWagerResult(ctx, wagerID, b, wagerResultTTL)
	}

	if eerr := s.d.Store.EvictWager(ctx, in.PlayerID, in.OperatorID, wagerID); eerr != nil {
		logger.Warn("evict wager cache failed", zap.String("wager_id", wagerID), zap.Error(eerr))
	}

	result = "success"
	fmt.Printf("[Spin]  注单结算完成: wager_id=%s, outcome=%s, win_amount=%s, balance=%s, credit_failed=%v, trace_id=%s\n",
		wagerID, outcomeStr, out.WinAmount, out.Balance, creditFailed, in.TraceID)
	return out, nil
}

// EnsureBalanceSeed 余额快照不存在时灌入初始值，返回是否发生灌入
// 生产流程中快照由运营方对接灌入；演示会话开通走这里。已有快照绝不覆盖。
func EnsureBalanceSeed(ctx context.Context, st StateStore, playerID, operatorID string, initial decimal.Decimal) (bool, error) {
	_, found, err := st.GetBalance(ctx, playerID, operatorID)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if err := st.SetBalance(ctx, playerID, operatorID, initial); err != nil {
		return false, err
	}
	return true, nil
}

// reject 统一的拒单出口：推进状态机到 rejected 并通知调用方
func (s *betService) reject(cur *string, cause error, reason string) (*BetOutput, error) {
	if next, terr := state.NextState(*cur, state.EvtReject); terr == nil {
		*cur = next
	}
	s.notify(ActionError, map[string]any{"reason": reason})
	if reason != cause.Error() {
		return nil, fmt.Errorf("%w: %s", cause, reason)
	}
	return nil, cause
}

func (s *betService) notify(a Action, msg any) {
	if s.d.Notifier == nil {
		return
	}
	s.d.Notifier.Notify(Notification{Action: a, Message: msg})
}

// publishSideEffect 发布下注侧效消息（下游消费，本端不关心投递结果）
func (s *betService) publishSideEffect(stake decimal.Decimal, wagerID string) {
	if s.d.Pub == nil {
		return
	}
	body, _ := json.Marshal(map[string]any{
		"game_id":   s.d.GameID,
		"betAmount": stake.StringFixed(2),
		"matchId":   wagerID,
	})
	if err := s.d.Pub.Publish(s.d.Topic, body); err != nil {
		logger.Warn("publish bet side-effect failed", zap.String("wager_id", wagerID), zap.Error(err))
	}
}

// generateWagerNo 生成可读的注单号
// 格式：SP{YYYYMMDD}{HHmmss}{玩家散列后4位}{随机3位十六进制}
// 时间有序、可读、可追踪；时间+玩家+随机数保证唯一性
func generateWagerNo(playerID string) string {
	now := time.Now()
	dateTime := now.Format("20060102150405")

	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	playerSuffix := fmt.Sprintf("%04d", h.Sum32()%10000)

	randomBytes := make([]byte, 2)
	_, _ = rand.Read(randomBytes)
	randomHex := strings.ToUpper(hex.EncodeToString(randomBytes)[:3])

	return fmt.Sprintf("SP%s%s%s", dateTime, playerSuffix, randomHex)
}
