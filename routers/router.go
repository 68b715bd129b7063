package routers

import (
	"spin-server/internal/config"
	"spin-server/internal/controller/api"
	"spin-server/internal/metrics"
	"spin-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// init 注册HTTP路由与全局过滤器
func init() {
	cfg := config.Get()

	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（如果启用）
	if cfg != nil && cfg.CORS.Enabled {
		beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)
	}

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查与指标（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")
	beego.Handler("/metrics", promhttp.Handler())

	// 会话接口：签发/注销玩家令牌
	beego.Router("/api/session", &api.SessionController{}, "post:Create;delete:Destroy")

	// ========== 业务 API（需要认证） ==========

	// 下注接口：玩家认证 + 限流
	beego.InsertFilter("/api/spin", beego.BeforeExec, middleware.PlayerAuthFilter)
	if cfg != nil && cfg.RateLimit.Enabled {
		beego.InsertFilter("/api/spin", beego.BeforeExec, middleware.RateLimitFilter)
	}
	beego.Router("/api/spin", &api.SpinController{}, "post:Spin")

	// 玩家查询接口：玩家认证（只能查询自己的数据）
	beego.InsertFilter("/api/user/*", beego.BeforeExec, middleware.PlayerAuthFilter)
	beego.Router("/api/user/balance", &api.UserController{}, "get:Balance")
	beego.Router("/api/user/spins", &api.UserController{}, "get:Spins")

	// 注单结果调试接口：从 Redis 读取结算结果缓存
	beego.Router("/api/wager/:wager_id", &api.WagerController{}, "get:GetWager")

	// ========== 管理 API（需要管理员认证） ==========

	// 对账查询接口：管理员认证
	if cfg != nil && cfg.Auth.Admin.Enabled {
		beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter)
	}
	beego.Router("/api/admin/wagers/credit-failed", &api.AdminController{}, "get:CreditFailed")
}
