package middleware

import (
	"spin-server/common/logger"
	"spin-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// DemoAuthFilter 演示模式认证过滤器（简化版）
// 用于演示和测试，跳过 JWT 验证，直接从请求头/参数注入玩家身份
func DemoAuthFilter(ctx *beegocontext.Context) {
	cfg := config.Get()
	if cfg == nil || !cfg.Auth.DemoMode {
		return
	}

	// 检查是否已经通过正式认证
	if ctx.Input.GetData("player_id") != nil {
		return // 已认证，跳过
	}

	// 演示模式：从请求参数或请求头中提取玩家信息
	playerID := ctx.Input.Header("X-Player-Id")
	if playerID == "" {
		playerID = ctx.Input.Query("player_id")
	}
	if playerID == "" {
		playerID = "demo_player_001" // 默认演示玩家
	}

	operatorID := cfg.Auth.DemoOperator.OperatorID
	if operatorID == "" {
		operatorID = "demo_operator"
	}

	ctx.Input.SetData("player_id", playerID)
	ctx.Input.SetData("operator_id", operatorID)
	ctx.Input.SetData("demo_mode", true)

	logger.Debug("demo mode authentication",
		zap.String("player_id", playerID),
		zap.String("operator_id", operatorID))
}
