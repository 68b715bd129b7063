package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"spin-server/common"
	"spin-server/common/logger"
	"spin-server/internal/config"
	infmysql "spin-server/internal/infra/mysql"
	infrds "spin-server/internal/infra/redis"
	"spin-server/internal/service"
	"spin-server/internal/worker"
	_ "spin-server/routers"

	_ "github.com/go-sql-driver/mysql"

	beego "github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	// 1. 日志
	logger.InitLogger()
	defer logger.Sync()

	// 2. 配置：Nacos 优先，本地文件兜底
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	config.Set(cfg)
	config.SetCurrent(cfg)
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}

	// 3. Redis：余额快照、在途注单、结算锁、限流
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := infrds.Ping(ctx, 3*time.Second); err != nil {
		logger.Fatalf("redis ping failed", zap.Error(err))
	}

	// 4. MySQL：注单与对账 outbox
	if cfg.Database.DSN != "" {
		db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
		infmysql.UseDB(db.DB)
	} else {
		logger.Warn("database dsn empty, persistence disabled")
	}

	// 5. 配置热更新：日志级别立即生效，业务依赖按新配置重建
	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		if newCfg.Server.LogLevel != "" && (oldCfg == nil || oldCfg.Server.LogLevel != newCfg.Server.LogLevel) {
			logger.SetLevel(newCfg.Server.LogLevel)
		}
		config.Set(newCfg)
		config.SetCurrent(newCfg)
		service.Rewire()
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// 6. 后台 worker：对账事件分发
	workerCtx, stopWorkers := context.WithCancel(ctx)
	var wg sync.WaitGroup
	worker.StartOutboxDispatcher(workerCtx, &wg)

	// 7. 优雅退出
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		fmt.Printf("[Main]  收到退出信号，开始优雅关闭: signal=%v\n", s)
		stopWorkers()
		wg.Wait()
		logger.Sync()
		os.Exit(0)
	}()

	// 8. 启动 HTTP 服务
	if cfg.Server.Port > 0 {
		beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	}
	beego.BConfig.CopyRequestBody = true
	fmt.Printf("[Main]  spin-server 启动: port=%d, demo_mode=%v\n",
		beego.BConfig.Listen.HTTPPort, cfg.Auth.DemoMode)
	beego.Run()
}
