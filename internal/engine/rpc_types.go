package engine

import (
	"sync"
	"time"

	"gas-estimator-go/internal/limiter"
)

// endpoint represents a single upstream RPC node in the pool
type endpoint struct {
	url       string
	client    EthClient
	isHealthy bool
	failCount int
	lastError time.Time
}

// EndpointPool holds the configured, ordered list of upstream endpoints.
// 节点永远不会被永久移除：疑似宕机的节点在下一轮完整遍历时仍会被重试，
// 因为节点故障大多是暂时的。
type EndpointPool struct {
	endpoints     []*endpoint
	failThreshold int
	mu            sync.RWMutex
	limiter       *limiter.RateLimiter
	metrics       *Metrics
}
