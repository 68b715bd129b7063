package api

import (
	"strconv"

	helper "spin-server/internal/common/helper"
	"spin-server/internal/common/response"
	infmysql "spin-server/internal/infra/mysql"
	"spin-server/internal/model"

	beego "github.com/beego/beego/v2/server/web"
)

// AdminController 运维接口（管理员 Token 保护）
// GET /api/admin/wagers/credit-failed 列出派彩失败待对账的注单

type AdminController struct{ beego.Controller }

func (c *AdminController) CreditFailed() {
	traceID := helper.GetTraceID(c.Ctx)

	limit := 50
	if v := c.Ctx.Input.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := model.ListCreditFailed(c.Ctx.Request.Context(), infmysql.SQLX(), limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"count":  len(records),
		"wagers": records,
	}, traceID)
}
