package limiter

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// 🛡️ 工业级硬编码保护：防止错误配置打爆商业节点额度
const (
	MaxSafetyRPS     = 25 // 绝对安全上限：每秒 25 次上游请求
	DefaultBurstSize = 5  // 允许 5 个并发突发
)

// RateLimiter 速率限制器，带有工业级安全保护
type RateLimiter struct {
	limiter *rate.Limiter
	maxRPS  int // 记录配置的 RPS（用于审计）
}

// NewRateLimiter 创建一个新的限流器。
// 如果外部配置的值超过硬编码上限则强制降级。
func NewRateLimiter(envRPS int) *RateLimiter {
	rps := MaxSafetyRPS

	if envRPS > 0 && envRPS <= MaxSafetyRPS {
		rps = envRPS
		slog.Info("✅ Rate limiter configured",
			"rps", rps,
			"mode", "safe")
	} else if envRPS > MaxSafetyRPS {
		slog.Warn("⚠️  Unsafe RPS config detected, forcing safe threshold",
			"requested_rps", envRPS,
			"forced_rps", MaxSafetyRPS,
			"reason", "commercial_quota_protection")
	} else {
		slog.Info("✅ Rate limiter using default safe value",
			"rps", rps,
			"mode", "default")
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), DefaultBurstSize),
		maxRPS:  rps,
	}
}

// Wait 阻塞直到获取令牌（或上下文取消）
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// MaxRPS 返回当前配置的最大 RPS（用于监控）
func (rl *RateLimiter) MaxRPS() int {
	return rl.maxRPS
}
