package middleware

import (
	"time"

	"spin-server/common/logger"
	"spin-server/internal/auth"
	"spin-server/internal/common/helper"
	"spin-server/internal/common/response"
	"spin-server/internal/config"

	beegocontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

// PlayerAuthFilter 玩家认证过滤器（JWT Token）
// 验证玩家的 JWT Token，把玩家与运营方身份注入请求上下文。
// 演示模式下降级为 DemoAuthFilter 的简化注入。
func PlayerAuthFilter(ctx *beegocontext.Context) {
	cfg := config.Get()
	if cfg != nil && cfg.Auth.DemoMode {
		DemoAuthFilter(ctx)
		return
	}

	traceID := helper.GetTraceID(ctx)

	// 辅助函数：返回错误
	returnError := func(httpCode int, bizCode int, message string) {
		ctx.Output.SetStatus(httpCode)
		ctx.Output.JSON(response.APIResponse{
			Code:      bizCode,
			Message:   message,
			Data:      nil,
			TraceID:   traceID,
			Timestamp: time.Now().UnixMilli(),
		}, false, false)
	}

	// 1. 验证 JWT Token
	claims, err := auth.VerifyJWTToken(ctx)
	if err != nil {
		logger.Warn("player authentication failed",
			zap.String("trace_id", traceID),
			zap.Error(err))

		// 根据错误类型返回不同的错误码
		switch err {
		case auth.ErrMissingToken:
			returnError(401, response.CodeUnauthorized, "缺少认证Token")
		case auth.ErrInvalidTokenFormat:
			returnError(401, response.CodeInvalidToken, "Token格式无效")
		case auth.ErrInvalidToken:
			returnError(401, response.CodeInvalidToken, "Token无效")
		case auth.ErrTokenExpired:
			returnError(401, response.CodeTokenExpired, "Token已过期")
		case auth.ErrTokenRevoked:
			returnError(401, response.CodeTokenRevoked, "Token已撤销")
		default:
			returnError(401, response.CodeUnauthorized, "认证失败")
		}
		return
	}

	// 2. 仅接受访问令牌
	if claims.TokenType != "access" {
		returnError(401, response.CodeInvalidToken, "Token类型错误")
		return
	}

	// 3. 将玩家信息存入 context
	ctx.Input.SetData("player_id", claims.PlayerID)
	ctx.Input.SetData("operator_id", claims.OperatorID)
	ctx.Input.SetData("jwt_claims", claims)

	logger.Debug("player authentication successful",
		zap.String("trace_id", traceID),
		zap.String("player_id", claims.PlayerID),
		zap.String("operator_id", claims.OperatorID))
}
