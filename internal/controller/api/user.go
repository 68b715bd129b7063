package api

import (
	"strconv"

	chelper "spin-server/common/helper"
	helper "spin-server/internal/common/helper"
	"spin-server/internal/common/response"
	infmysql "spin-server/internal/infra/mysql"
	infrds "spin-server/internal/infra/redis"
	"spin-server/internal/model"

	beego "github.com/beego/beego/v2/server/web"
)

// UserController 提供玩家侧查询接口
// GET /api/user/balance  余额快照
// GET /api/user/spins    注单历史

type UserController struct{ beego.Controller }

// Balance 查询余额快照
// 快照缺失按业务错误返回，与下注准入的语义一致。
func (c *UserController) Balance() {
	traceID := helper.GetTraceID(c.Ctx)

	playerID, operatorID := identityFromCtx(c.Ctx)
	if playerID == "" {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	store := infrds.NewStore(infrds.Client())
	bal, found, err := store.GetBalance(c.Ctx.Request.Context(), playerID, operatorID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	if !found {
		response.ErrorWithMessage(&c.Controller, 404, response.CodePlayerStateNotFound, "player state not found", traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"player_id": playerID,
		"balance":   chelper.TrimDecimal(bal),
	}, traceID)
}

// Spins 查询注单历史（按时间倒序，limit 默认 10，最大 100）
func (c *UserController) Spins() {
	traceID := helper.GetTraceID(c.Ctx)

	playerID, operatorID := identityFromCtx(c.Ctx)
	if playerID == "" {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	limit := 10
	if v := c.Ctx.Input.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := model.ListPlayerWagers(c.Ctx.Request.Context(), infmysql.SQLX(), playerID, operatorID, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"player_id": playerID,
		"count":     len(records),
		"wagers":    records,
	}, traceID)
}
