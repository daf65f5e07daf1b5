package web

import (
	"context"
	"log/slog"
	"math/big"
	"time"
)

// PriceSource 行情数据来源。Estimator实现了这个接口，
// 推送走的是和估算请求相同的缓存路径，不额外消耗RPC额度。
type PriceSource interface {
	CurrentGasPrice(ctx context.Context) (*big.Int, error)
}

// PriceFeed 周期性拉取当前gas价格并广播给所有WebSocket订阅者
type PriceFeed struct {
	source   PriceSource
	hub      *Hub
	interval time.Duration
}

func NewPriceFeed(source PriceSource, hub *Hub, interval time.Duration) *PriceFeed {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PriceFeed{source: source, hub: hub, interval: interval}
}

func (f *PriceFeed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	slog.Info("📈 Gas price feed started", "interval", f.interval.String())
	for {
		select {
		case <-ctx.Done():
			slog.Info("gas_price_feed_stopped")
			return
		case <-ticker.C:
			f.tick(ctx)
		}
	}
}

func (f *PriceFeed) tick(ctx context.Context) {
	// 没有订阅者就不拉取，避免空转消耗缓存miss后的RPC调用
	if f.hub.ClientCount() == 0 {
		return
	}

	price, err := f.source.CurrentGasPrice(ctx)
	if err != nil {
		slog.Warn("gas_price_feed_fetch_failed", "err", err)
		return
	}

	gwei := new(big.Float).Quo(new(big.Float).SetInt(price), big.NewFloat(1e9))
	gweiVal, _ := gwei.Float64()

	f.hub.Broadcast(WSEvent{
		Type: "gas_price",
		Data: map[string]interface{}{
			"wei":  price.String(),
			"gwei": gweiVal,
			"ts":   time.Now().Unix(),
		},
	})
}
