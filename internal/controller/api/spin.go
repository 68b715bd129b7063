package api

import (
	"errors"
	"strings"

	helper "spin-server/internal/common/helper"
	"spin-server/internal/common/response"
	"spin-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	beegocontext "github.com/beego/beego/v2/server/web/context"
)

var newSpinService = service.NewDefaultBetService

type SpinController struct{ beego.Controller }

// collectingNotifier 把结算管道产出的通知收集进本次响应
// （HTTP 模式下没有长连接通道，通知随响应一起返回）
type collectingNotifier struct {
	items []service.Notification
}

func (n *collectingNotifier) Notify(v service.Notification) {
	n.items = append(n.items, v)
}

// Spin 处理下注接口：POST /api/spin
// 请求体：{ "stake_amount": "10" }
// 玩家与运营方身份由认证中间件注入。
func (c *SpinController) Spin() {
	traceID := helper.GetTraceID(c.Ctx)

	// 1) 解析入参与基本校验
	// 这里必须要对金额格式严格校验，后续 service 不再重复校验格式
	sp, ok, msg := helper.ParseAndValidateSpin(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	// 2) 从 context 提取玩家信息（由认证中间件注入）
	playerID, operatorID := identityFromCtx(c.Ctx)
	if playerID == "" {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	notifier := &collectingNotifier{}
	svc := newSpinService(notifier)

	// 3) 进行下注结算业务逻辑处理
	out, err := svc.PlaceBet(c.Ctx.Request.Context(), service.BetInput{
		PlayerID:    playerID,
		OperatorID:  operatorID,
		StakeAmount: sp.StakeAmount,
		SourceIP:    c.Ctx.Input.IP(),
		TraceID:     traceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStake):
			response.ErrorWithMessage(&c.Controller, 400, response.CodeInvalidStake, err.Error(), traceID)
		case errors.Is(err, service.ErrStakeOutOfRange):
			response.ErrorWithMessage(&c.Controller, 400, response.CodeStakeOutOfRange, err.Error(), traceID)
		case errors.Is(err, service.ErrInsufficientBalance):
			response.Error(&c.Controller, 400, response.CodeInsufficientBalance, traceID)
		case errors.Is(err, service.ErrPlayerStateNotFound):
			response.ErrorWithMessage(&c.Controller, 404, response.CodePlayerStateNotFound, "player state not found", traceID)
		case errors.Is(err, service.ErrDebitRejected):
			// 上游取消原因透传给调用方
			reason := strings.TrimPrefix(err.Error(), service.ErrDebitRejected.Error()+": ")
			response.ErrorWithMessage(&c.Controller, 409, response.CodeDebitRejected, reason, traceID)
		case errors.Is(err, service.ErrAlreadyProcessing):
			// 同一注单已在结算中：按"已接受、勿重试"应答
			response.Accepted(&c.Controller, "注单结算中，请勿重复提交", traceID)
		default:
			response.InternalError(&c.Controller, traceID)
		}
		return
	}

	// 成功响应
	response.Success(&c.Controller, map[string]interface{}{
		"wager_id":      out.WagerID,
		"symbols":       out.Symbols,
		"pattern":       out.Pattern,
		"outcome":       out.Outcome,
		"win_amount":    out.WinAmount,
		"balance":       out.Balance,
		"credit_failed": out.CreditFailed,
		"notifications": notifier.items,
	}, traceID)
}

// identityFromCtx 提取中间件注入的玩家身份
func identityFromCtx(ctx *beegocontext.Context) (playerID, operatorID string) {
	if v := ctx.Input.GetData("player_id"); v != nil {
		playerID, _ = v.(string)
	}
	if v := ctx.Input.GetData("operator_id"); v != nil {
		operatorID, _ = v.(string)
	}
	return playerID, operatorID
}
