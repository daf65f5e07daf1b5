package engine

import (
	"context"
	"time"

	"gas-estimator-go/internal/monitor"
)

// callWithFallback 按候选顺序依次尝试每个端点，直到某个端点成功或全部失败。
// 成功向池上报成功并返回结果；失败上报失败并尝试下一个端点。
// 最坏情况下总延迟被 N × 单次超时 约束住。
//
// Revert-class errors abort immediately: the node answered, the call itself
// is doomed, and another endpoint would only repeat the same verdict.
func callWithFallback[T any](ctx context.Context, pool *EndpointPool, quota *monitor.QuotaMonitor, method string, timeout time.Duration, op func(ctx context.Context, client EthClient) (T, error)) (T, error) {
	var zero T

	candidates := pool.NextCandidates()
	if len(candidates) == 0 {
		return zero, ErrNoEndpoints
	}

	metrics := pool.metrics
	failures := make(map[string]error, len(candidates))

	for _, ep := range candidates {
		if err := pool.Wait(ctx); err != nil {
			// 上下文已取消，调用方不再需要结果
			return zero, err
		}
		if quota != nil {
			quota.Inc()
		}
		metrics.RPCRequestsTotal.WithLabelValues(ep.url, method).Inc()

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		started := time.Now()
		value, err := op(reqCtx, ep.client)
		cancel()
		metrics.RPCLatency.WithLabelValues(ep.url, method).Observe(time.Since(started).Seconds())

		if err == nil {
			pool.ReportSuccess(ep)
			return value, nil
		}

		if isRevert(err) {
			// 节点正常响应了，只是调用本身注定失败
			pool.ReportSuccess(ep)
			return zero, &RevertError{Detail: err.Error()}
		}

		pool.ReportFailure(ep)
		metrics.RPCRequestsFailed.WithLabelValues(ep.url, method).Inc()
		failures[ep.url] = err
		LogRPCRequestFailed(method, ep.url, err)

		if ctx.Err() != nil {
			// 调用方超时/断开，没必要继续遍历剩余端点
			return zero, ctx.Err()
		}
	}

	return zero, &UpstreamError{Method: method, Failures: failures}
}
