package service

import (
	"sync"

	"spin-server/internal/config"
	"spin-server/internal/engine"
	infredis "spin-server/internal/infra/redis"
	infmq "spin-server/internal/infra/rocketmq"
	"spin-server/internal/rtpctl"
	"spin-server/internal/wallet"

	decimal "github.com/shopspring/decimal"
)

// 从全局配置组装编排器依赖
// 依赖集在首次使用时构建一次；配置热更新后调用 Rewire 使其重建。

var (
	wireMu    sync.Mutex
	wiredDeps *Deps
)

const (
	defaultGameID       = "fruit777"
	defaultStakeMin     = "1"
	defaultStakeMax     = "1000"
	defaultRTPThreshold = int64(30)
)

// NewDefaultBetService 按全局配置构建编排器；notifier 逐请求传入
func NewDefaultBetService(n Notifier) BetService {
	d := buildDeps()
	d.Notifier = n
	return NewBetService(d)
}

// Rewire 丢弃缓存的依赖集，下一次请求按新配置重建
func Rewire() {
	wireMu.Lock()
	wiredDeps = nil
	wireMu.Unlock()
}

func buildDeps() Deps {
	wireMu.Lock()
	defer wireMu.Unlock()
	if wiredDeps != nil {
		return *wiredDeps
	}

	cfg := config.GetCurrent()

	gameID := defaultGameID
	stakeMin := mustDecimal(defaultStakeMin)
	stakeMax := mustDecimal(defaultStakeMax)
	threshold := defaultRTPThreshold
	topic := "spin_side_effect"

	var control engine.ControlClient
	var walletClient wallet.Client

	if cfg != nil {
		if cfg.Game.GameID != "" {
			gameID = cfg.Game.GameID
		}
		if v, err := decimal.NewFromString(cfg.Game.StakeMin); err == nil && v.IsPositive() {
			stakeMin = v
		}
		if v, err := decimal.NewFromString(cfg.Game.StakeMax); err == nil && v.IsPositive() {
			stakeMax = v
		}
		if cfg.RTPControl.Threshold > 0 {
			threshold = cfg.RTPControl.Threshold
		}
		if cfg.RocketMQ.TopicSettle != "" {
			topic = cfg.RocketMQ.TopicSettle
		}
		if cfg.RTPControl.BaseURL != "" {
			control = rtpctl.NewClient(cfg.RTPControl.BaseURL, cfg.RTPControl.TimeoutMs)
		}
		if cfg.Wallet.BaseURL != "" {
			walletClient = wallet.NewClient(cfg.Wallet.BaseURL, cfg.Wallet.DebitPath, cfg.Wallet.CreditPath, cfg.Wallet.TimeoutMs)
		}
	}

	// 动态阈值优先于静态配置
	threshold = config.GetThreshold("rtp_consult", threshold)

	// 运维开关：紧急关闭控盘查询（所有抽取走常规表）
	if config.GetFeatureFlag("rtp_control_disabled") {
		control = nil
	}

	if walletClient == nil {
		// 未配置钱包地址时调用会直接失败并走拒单路径，不会空指针
		walletClient = wallet.NewClient("http://127.0.0.1:9200", "", "", 0)
	}

	d := Deps{
		Store:    infredis.NewStore(infredis.Client()),
		Guard:    infredis.NewSettleGuard(infredis.Client()),
		Wallet:   walletClient,
		Engine:   engine.New(gameID, threshold, control, nil),
		Repo:     NewSQLWagerRepo(),
		Pub:      infmq.PublisherInstance(),
		GameID:   gameID,
		Topic:    topic,
		StakeMin: stakeMin,
		StakeMax: stakeMax,
	}
	wiredDeps = &d
	return d
}

func mustDecimal(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}
