package engine

import (
	"context"
	"errors"
	"math/big"
	"time"

	"gas-estimator-go/internal/config"
	"gas-estimator-go/internal/monitor"

	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

const (
	gasPriceCacheKey      = "gas_price"
	feeSuggestionCacheKey = "fee_suggestion"
)

// GasEstimate 最终的、可直接序列化的估算结果，构造后不再修改
type GasEstimate struct {
	GasLimit      uint64
	Quote         *FeeQuote
	CostWei       *uint256.Int
	CostEth       string
	ExecutionTime string
}

// Estimator 估算引擎入口。并发获取gas limit与费用数据
// （缓存 → fallback协调器 → 单个端点），分类费用模型后组装结果。
type Estimator struct {
	pool    *EndpointPool
	quota   *monitor.QuotaMonitor
	timeout time.Duration
	prices  *Cache[*big.Int]
	fees    *Cache[*FeeData]
	limits  *Cache[uint64]
	metrics *Metrics
}

func NewEstimator(pool *EndpointPool, quota *monitor.QuotaMonitor, cfg *config.Config) *Estimator {
	return &Estimator{
		pool:    pool,
		quota:   quota,
		timeout: cfg.RPCTimeout,
		prices:  NewCache[*big.Int]("gas_price", cfg.CacheTTL),
		fees:    NewCache[*FeeData]("fee_suggestion", cfg.CacheTTL),
		limits:  NewCache[uint64]("gas_limit", cfg.CacheTTL),
		metrics: GetMetrics(),
	}
}

// Estimate 对一笔待发交易给出gas limit、费用报价和折算成本。
// 任何一路关键数据拿不到就整体失败，绝不返回部分结果。
func (e *Estimator) Estimate(ctx context.Context, desc *TransactionDescriptor) (*GasEstimate, error) {
	started := time.Now()

	var (
		gasLimit uint64
		gasPrice *big.Int
		feeData  *FeeData
		priceErr error
		feeErr   error
	)

	g, gctx := errgroup.WithContext(ctx)

	// gas limit拿不到（比如调用会revert）是整个操作的终止性错误
	g.Go(func() error {
		limit, err := e.limits.GetOrCompute(gctx, desc.CacheKey(), func(ctx context.Context) (uint64, error) {
			return callWithFallback(ctx, e.pool, e.quota, "eth_estimateGas", e.timeout, fetchGasLimit(desc))
		})
		if err != nil {
			return err
		}
		gasLimit = limit
		return nil
	})

	// 两路费用数据的失败先记下来，是否致命等分类阶段再定：
	// 只要还有一路可用，仍然能给出合法的报价
	g.Go(func() error {
		if desc.GasPrice != nil {
			gasPrice = desc.GasPrice
			return nil
		}
		price, err := e.CurrentGasPrice(gctx)
		if err != nil {
			priceErr = err
			return nil
		}
		gasPrice = price
		return nil
	})

	g.Go(func() error {
		fees, err := e.fees.GetOrCompute(gctx, feeSuggestionCacheKey, func(ctx context.Context) (*FeeData, error) {
			return callWithFallback(ctx, e.pool, e.quota, "eth_feeHistory", e.timeout, fetchFeeSuggestion)
		})
		if err != nil {
			feeErr = err
			return nil
		}
		feeData = fees
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, e.fail(err)
	}

	merged := &FeeData{GasPrice: gasPrice}
	if feeData != nil {
		merged.BaseFee = feeData.BaseFee
		merged.TipCap = feeData.TipCap
	}
	if desc.MaxPriorityFeePerGas != nil {
		merged.TipCap = desc.MaxPriorityFeePerGas
	}

	quote, err := ClassifyFeeModel(merged)
	if err != nil {
		// 没有任何可用费用数据：优先透传真实的抓取错误
		if priceErr != nil {
			return nil, e.fail(priceErr)
		}
		if feeErr != nil {
			return nil, e.fail(feeErr)
		}
		return nil, e.fail(err)
	}
	if desc.MaxFeePerGas != nil && quote.Type == TxTypeEIP1559 {
		// 低于当前base fee的上限意味着交易根本无法被打包
		if desc.MaxFeePerGas.Cmp(quote.BaseFee) < 0 {
			return nil, e.fail(invalidInput(
				"max_fee_per_gas %s is below the current base fee %s",
				desc.MaxFeePerGas, quote.BaseFee))
		}
		quote.MaxFee = desc.MaxFeePerGas
		// 钉死的上限压缩了小费空间时按剩余空间截断，
		// 保证 base fee ≤ base fee + tip ≤ max fee
		if headroom := new(big.Int).Sub(quote.MaxFee, quote.BaseFee); quote.PriorityFee.Cmp(headroom) > 0 {
			quote.PriorityFee = headroom
		}
	}

	cost := ComputeCost(gasLimit, quote.EffectivePrice())
	estimate := &GasEstimate{
		GasLimit:      gasLimit,
		Quote:         quote,
		CostWei:       cost,
		CostEth:       FormatEther(cost),
		ExecutionTime: quote.ExecutionTime(),
	}

	elapsed := time.Since(started).Seconds()
	e.metrics.EstimatesServed.Inc()
	e.metrics.EstimateDuration.Observe(elapsed)
	LogEstimateServed(string(quote.Type), gasLimit, elapsed)
	return estimate, nil
}

// CurrentGasPrice 实时gas价格，走与估算相同的缓存与fallback路径。
// WebSocket推送也复用这条路，不会额外增加RPC压力。
func (e *Estimator) CurrentGasPrice(ctx context.Context) (*big.Int, error) {
	return e.prices.GetOrCompute(ctx, gasPriceCacheKey, func(ctx context.Context) (*big.Int, error) {
		return callWithFallback(ctx, e.pool, e.quota, "eth_gasPrice", e.timeout, fetchGasPrice)
	})
}

// PoolStatus 返回端点池健康状况（给/health之类的外围接口用）
func (e *Estimator) PoolStatus() (healthy, total int) {
	return e.pool.HealthyCount(), e.pool.TotalCount()
}

func (e *Estimator) fail(err error) error {
	e.metrics.EstimatesFailed.WithLabelValues(failureReason(err)).Inc()
	return err
}

// failureReason 错误归类，只用于指标label
func failureReason(err error) string {
	var invalid *InvalidInputError
	var revert *RevertError
	var upstream *UpstreamError
	switch {
	case errors.As(err, &invalid):
		return "invalid_input"
	case errors.As(err, &revert):
		return "revert"
	case errors.As(err, &upstream):
		return "upstream_unavailable"
	case errors.Is(err, ErrNoFeeData):
		return "no_fee_data"
	default:
		return "internal"
	}
}
