package api

import (
	"strings"
	"time"

	"spin-server/internal/auth"
	helper "spin-server/internal/common/helper"
	"spin-server/internal/common/response"
	"spin-server/internal/config"
	infrds "spin-server/internal/infra/redis"
	"spin-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/shopspring/decimal"
)

// 演示玩家的初始余额快照
var demoInitialBalance = decimal.NewFromInt(1000)

// SessionController 会话管理
// POST   /api/session  换取玩家访问令牌（演示模式下开放）
// DELETE /api/session  注销当前令牌（加入黑名单）

type SessionController struct{ beego.Controller }

// Create 为玩家签发访问/刷新令牌
// 生产部署中令牌由运营方对接流程换发，这里仅在演示模式下开放。
func (c *SessionController) Create() {
	traceID := helper.GetTraceID(c.Ctx)

	cfg := config.Get()
	if cfg == nil || !cfg.Auth.DemoMode {
		response.Error(&c.Controller, 403, response.CodeForbidden, traceID)
		return
	}

	playerID := strings.TrimSpace(c.Ctx.Input.Query("player_id"))
	if playerID == "" {
		playerID = strings.TrimSpace(c.Ctx.Input.Header("X-Player-Id"))
	}
	if playerID == "" {
		response.BadRequest(&c.Controller, "player_id is required", traceID)
		return
	}

	operatorID := cfg.Auth.DemoOperator.OperatorID
	if operatorID == "" {
		operatorID = "demo_operator"
	}

	access, err := auth.GenerateAccessToken(playerID, operatorID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	refresh, err := auth.GenerateRefreshToken(playerID, operatorID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 演示玩家没有运营方对接流程灌余额，会话开通时补灌一次（已有快照不覆盖）
	seeded, err := service.EnsureBalanceSeed(c.Ctx.Request.Context(),
		infrds.NewStore(infrds.Client()), playerID, operatorID, demoInitialBalance)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"access_token":   access,
		"refresh_token":  refresh,
		"expires_in":     cfg.Auth.JWT.AccessTokenTTL,
		"balance_seeded": seeded,
	}, traceID)
}

// Destroy 注销当前令牌
func (c *SessionController) Destroy() {
	traceID := helper.GetTraceID(c.Ctx)

	claims, err := auth.VerifyJWTToken(c.Ctx)
	if err != nil {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	authHeader := strings.TrimSpace(c.Ctx.Input.Header("Authorization"))
	parts := strings.Split(authHeader, " ")
	tokenString := parts[len(parts)-1]

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	_ = auth.RevokeToken(c.Ctx.Request.Context(), tokenString, expiresAt)

	response.Success(&c.Controller, map[string]interface{}{"revoked": true}, traceID)
}
