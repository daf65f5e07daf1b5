package engine

import (
	"context"
	"log/slog"
	"time"

	"gas-estimator-go/internal/config"
	"gas-estimator-go/internal/limiter"

	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultFailThreshold = 3

// NewEndpointPool dials every configured URL and builds the pool.
// 拨号失败的端点只告警跳过；一个可用端点都没有时直接报错。
func NewEndpointPool(cfg *config.Config) (*EndpointPool, error) {
	if len(cfg.RPCURLs) == 0 {
		return nil, ErrNoEndpoints
	}

	threshold := cfg.FailThreshold
	if threshold <= 0 {
		threshold = defaultFailThreshold
	}

	pool := &EndpointPool{
		failThreshold: threshold,
		limiter:       limiter.NewRateLimiter(cfg.RPCRateLimit),
		metrics:       GetMetrics(),
	}

	for _, url := range cfg.RPCURLs {
		client, err := ethclient.Dial(url)
		if err != nil {
			slog.Warn("⚠️ Failed to dial RPC endpoint, skipping", "endpoint", url, "err", err)
			continue
		}
		pool.endpoints = append(pool.endpoints, &endpoint{
			url:       url,
			client:    client,
			isHealthy: true,
		})
	}

	if len(pool.endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	pool.metrics.RPCHealthyNodes.Set(float64(len(pool.endpoints)))
	slog.Info("🌐 Endpoint pool ready",
		"endpoints", len(pool.endpoints),
		"fail_threshold", threshold)
	return pool, nil
}

// NextCandidates returns every endpoint ordered from the first currently-alive
// one, wrapping around the full list. Suspected-dead endpoints stay in the
// sequence so they get retried on the next cycle.
func (p *EndpointPool) NextCandidates() []*endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := len(p.endpoints)
	if n == 0 {
		return nil
	}

	start := 0
	for i, ep := range p.endpoints {
		if ep.isHealthy {
			start = i
			break
		}
	}

	candidates := make([]*endpoint, 0, n)
	for i := 0; i < n; i++ {
		candidates = append(candidates, p.endpoints[(start+i)%n])
	}
	return candidates
}

// ReportFailure 失败计数加一，达到阈值后标记为疑似宕机
func (p *EndpointPool) ReportFailure(ep *endpoint) {
	p.mu.Lock()
	ep.failCount++
	ep.lastError = time.Now()
	if ep.isHealthy && ep.failCount >= p.failThreshold {
		ep.isHealthy = false
		LogEndpointSuspectedDead(ep.url, ep.failCount)
	}
	p.mu.Unlock()

	p.metrics.RPCHealthyNodes.Set(float64(p.HealthyCount()))
}

// ReportSuccess 重置失败计数并恢复健康状态
func (p *EndpointPool) ReportSuccess(ep *endpoint) {
	p.mu.Lock()
	recovered := !ep.isHealthy
	ep.isHealthy = true
	ep.failCount = 0
	p.mu.Unlock()

	if recovered {
		LogEndpointRecovered(ep.url)
	}
	p.metrics.RPCHealthyNodes.Set(float64(p.HealthyCount()))
}

// Wait 令牌桶限速：在每次上游请求前阻塞等待令牌
func (p *EndpointPool) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// HealthyCount returns the number of endpoints currently considered alive
func (p *EndpointPool) HealthyCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, ep := range p.endpoints {
		if ep.isHealthy {
			count++
		}
	}
	return count
}

// TotalCount returns the total number of endpoints in the pool
func (p *EndpointPool) TotalCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.endpoints)
}

// Clients 返回所有端点的客户端（用于启动时的链ID校验）
func (p *EndpointPool) Clients() map[string]EthClient {
	p.mu.RLock()
	defer p.mu.RUnlock()

	clients := make(map[string]EthClient, len(p.endpoints))
	for _, ep := range p.endpoints {
		clients[ep.url] = ep.client
	}
	return clients
}

// Close closes all client connections
func (p *EndpointPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ep := range p.endpoints {
		if ep.client != nil {
			ep.client.Close()
		}
	}
}
