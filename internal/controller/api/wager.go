package api

import (
	"encoding/json"

	helper "spin-server/internal/common/helper"
	"spin-server/internal/common/response"
	infrds "spin-server/internal/infra/redis"

	beego "github.com/beego/beego/v2/server/web"
	goredis "github.com/redis/go-redis/v9"
)

// WagerController 提供查询结算结果的接口（便于调试/回放）
// GET /api/wager/:wager_id
// 注意：此接口为读缓存接口，不访问数据库；结果缓存过期后返回 404

type WagerController struct {
	beego.Controller
}

func (c *WagerController) GetWager() {
	traceID := helper.GetTraceID(c.Ctx)

	wagerID := c.Ctx.Input.Param(":wager_id")
	if wagerID == "" {
		response.BadRequest(&c.Controller, "wager_id is required", traceID)
		return
	}

	r := infrds.Client()
	if r == nil {
		response.InternalErrorWithMessage(&c.Controller, "redis unavailable", traceID)
		return
	}

	bs, err := r.Get(c.Ctx.Request.Context(), infrds.WagerResultKey(wagerID)).Bytes()
	if err == goredis.Nil {
		response.NotFound(&c.Controller, "注单结果不存在或已过期", traceID)
		return
	}
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	var result map[string]any
	_ = json.Unmarshal(bs, &result)

	response.Success(&c.Controller, result, traceID)
}
