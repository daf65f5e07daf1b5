package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"gas-estimator-go/internal/config"
	"gas-estimator-go/internal/engine"
	"gas-estimator-go/internal/monitor"
	"gas-estimator-go/internal/recovery"
	"gas-estimator-go/internal/web"
	"gas-estimator-go/pkg/network"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	engine.InitLogger(cfg.LogLevel)

	// 2. 构建端点池并校验网络
	pool, err := engine.NewEndpointPool(cfg)
	if err != nil {
		log.Fatalf("Endpoint pool error: %v", err)
	}
	defer pool.Close()

	readers := make(map[string]network.ChainIDReader)
	for url, client := range pool.Clients() {
		readers[url] = client
	}
	if err := network.VerifyEndpoints(readers, cfg.ChainID); err != nil {
		log.Fatalf("Network verification failed: %v", err)
	}

	// 3. 初始化估算引擎
	quota := monitor.NewQuotaMonitor()
	estimator := engine.NewEstimator(pool, quota, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. WebSocket行情推送
	wsHub := web.NewHub()
	recovery.WithRecovery(func() { wsHub.Run(ctx) }, "ws_hub")
	feed := web.NewPriceFeed(estimator, wsHub, cfg.CacheTTL)
	recovery.WithRecovery(func() { feed.Run(ctx) }, "price_feed")

	// 5. HTTP服务（阻塞直到收到退出信号）
	server := NewServer(estimator, wsHub, cfg.ListenAddr())
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
