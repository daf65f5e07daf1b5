package engine

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"gas-estimator-go/internal/config"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestEstimator(pool *EndpointPool, ttl time.Duration) *Estimator {
	return NewEstimator(pool, nil, &config.Config{
		CacheTTL:   ttl,
		RPCTimeout: 2 * time.Second,
	})
}

// legacyFeeHistory pre-1559链的eth_feeHistory响应：base fee全为0
func legacyFeeHistory() *ethereum.FeeHistory {
	return &ethereum.FeeHistory{
		BaseFee: []*big.Int{big.NewInt(0), big.NewInt(0)},
		Reward:  [][]*big.Int{{big.NewInt(0)}},
	}
}

func eip1559FeeHistory(baseFee, tip *big.Int) *ethereum.FeeHistory {
	return &ethereum.FeeHistory{
		BaseFee: []*big.Int{baseFee, baseFee},
		Reward:  [][]*big.Int{{tip}},
	}
}

func mustDescriptor(t *testing.T) *TransactionDescriptor {
	t.Helper()
	desc, err := ParseDescriptor(DescriptorInput{
		From:  testFrom,
		To:    testTo,
		Value: "100000000000000000",
		Data:  "0x",
	})
	require.NoError(t, err)
	return desc
}

func TestEstimate_LegacyEndToEnd(t *testing.T) {
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(20_000_000_000), nil).Once()
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(legacyFeeHistory(), nil).Once()
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil).Once()

	estimator := newTestEstimator(newTestPool(mockEth), 15*time.Second)

	estimate, err := estimator.Estimate(context.Background(), mustDescriptor(t))
	require.NoError(t, err)

	assert.Equal(t, uint64(21000), estimate.GasLimit)
	assert.Equal(t, TxTypeLegacy, estimate.Quote.Type)
	assert.Equal(t, "20000000000", estimate.Quote.GasPrice.String())
	assert.Equal(t, "420000000000000", estimate.CostWei.Dec())
	assert.Equal(t, "0.000420000000000000", estimate.CostEth)
	assert.Equal(t, "~30 seconds", estimate.ExecutionTime)

	mockEth.AssertExpectations(t)
}

func TestEstimate_EIP1559EndToEnd(t *testing.T) {
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(gwei(32), nil).Once()
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(eip1559FeeHistory(gwei(30), gwei(2)), nil).Once()
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil).Once()

	estimator := newTestEstimator(newTestPool(mockEth), 15*time.Second)

	estimate, err := estimator.Estimate(context.Background(), mustDescriptor(t))
	require.NoError(t, err)

	require.Equal(t, TxTypeEIP1559, estimate.Quote.Type)
	assert.Equal(t, gwei(30), estimate.Quote.BaseFee)
	assert.Equal(t, gwei(2), estimate.Quote.PriorityFee)
	assert.Equal(t, gwei(62), estimate.Quote.MaxFee)
	assert.Nil(t, estimate.Quote.GasPrice)

	// cost = 21000 × (base + tip) = 21000 × 32 Gwei
	expected := new(big.Int).Mul(big.NewInt(21000), gwei(32))
	assert.Equal(t, expected.String(), estimate.CostWei.Dec())
	assert.Equal(t, "~15 seconds", estimate.ExecutionTime)
}

func TestEstimate_IdempotentWithinTTL(t *testing.T) {
	// TTL窗口内重复估算同一笔交易，每个cache key至多触发一次RPC
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(20_000_000_000), nil).Once()
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(legacyFeeHistory(), nil).Once()
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil).Once()

	estimator := newTestEstimator(newTestPool(mockEth), time.Minute)
	desc := mustDescriptor(t)

	first, err := estimator.Estimate(context.Background(), desc)
	require.NoError(t, err)
	second, err := estimator.Estimate(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, first.GasLimit, second.GasLimit)
	assert.Equal(t, first.CostWei, second.CostWei)
	mockEth.AssertExpectations(t) // .Once()约束兜住调用次数
}

func TestEstimate_ConcurrentRequestsShareFlight(t *testing.T) {
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(20_000_000_000), nil).Once()
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(legacyFeeHistory(), nil).Once()
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil).Once()

	estimator := newTestEstimator(newTestPool(mockEth), time.Minute)
	desc := mustDescriptor(t)

	const k = 8
	var wg sync.WaitGroup
	results := make([]*GasEstimate, k)
	errs := make([]error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = estimator.Estimate(context.Background(), desc)
		}(i)
	}
	wg.Wait()

	for i := 0; i < k; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, uint64(21000), results[i].GasLimit)
		assert.Equal(t, "420000000000000", results[i].CostWei.Dec())
	}
	mockEth.AssertExpectations(t)
}

func TestEstimate_RevertIsTerminal(t *testing.T) {
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(20_000_000_000), nil)
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(legacyFeeHistory(), nil)
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(0), errors.New("execution reverted: insufficient balance"))

	estimator := newTestEstimator(newTestPool(mockEth), 0)

	_, err := estimator.Estimate(context.Background(), mustDescriptor(t))
	var revert *RevertError
	require.ErrorAs(t, err, &revert)
}

func TestEstimate_AllFeeDataUnavailableFails(t *testing.T) {
	// gas limit可用但两路费用数据全挂：拿不到价格的估算没有意义，整体失败
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(nil, errors.New("connection refused"))
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(nil, errors.New("connection refused"))
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)

	estimator := newTestEstimator(newTestPool(mockEth), 0)

	_, err := estimator.Estimate(context.Background(), mustDescriptor(t))
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
}

func TestEstimate_PinnedGasPriceShortCircuits(t *testing.T) {
	// 调用方钉死了gas_price：不应发起eth_gasPrice请求
	mockEth := new(MockEthClient)
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(legacyFeeHistory(), nil).Once()
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil).Once()

	estimator := newTestEstimator(newTestPool(mockEth), time.Minute)

	desc, err := ParseDescriptor(DescriptorInput{
		From:     testFrom,
		To:       testTo,
		GasPrice: "5000000000",
	})
	require.NoError(t, err)

	estimate, err := estimator.Estimate(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, "5000000000", estimate.Quote.GasPrice.String())
	mockEth.AssertExpectations(t)
}

func TestEstimate_PinnedMaxFeeBelowBaseFeeRejected(t *testing.T) {
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(gwei(32), nil)
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(eip1559FeeHistory(gwei(30), gwei(2)), nil)
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)

	estimator := newTestEstimator(newTestPool(mockEth), 0)

	desc, err := ParseDescriptor(DescriptorInput{
		From:         testFrom,
		To:           testTo,
		MaxFeePerGas: "1",
	})
	require.NoError(t, err)

	// base fee为30 Gwei时上限1 wei的交易永远无法被打包
	_, err = estimator.Estimate(context.Background(), desc)
	var invalid *InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestEstimate_PinnedMaxFeeClampsTip(t *testing.T) {
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(gwei(32), nil)
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(eip1559FeeHistory(gwei(30), gwei(2)), nil)
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)

	estimator := newTestEstimator(newTestPool(mockEth), 0)

	// 上限31 Gwei在base fee(30)之上，但压缩了建议小费(2)的空间
	desc, err := ParseDescriptor(DescriptorInput{
		From:         testFrom,
		To:           testTo,
		MaxFeePerGas: "31000000000",
	})
	require.NoError(t, err)

	estimate, err := estimator.Estimate(context.Background(), desc)
	require.NoError(t, err)
	require.Equal(t, TxTypeEIP1559, estimate.Quote.Type)

	assert.Equal(t, gwei(31), estimate.Quote.MaxFee)
	assert.Equal(t, gwei(1), estimate.Quote.PriorityFee, "小费被截到剩余空间")
	assert.True(t, estimate.Quote.BaseFee.Cmp(estimate.Quote.MaxFee) <= 0)
	// 成本按截断后的有效价计算，绝不超过上限能支付的额度
	assert.Equal(t, gwei(31), estimate.Quote.EffectivePrice())
	expected := new(big.Int).Mul(big.NewInt(21000), gwei(31))
	assert.Equal(t, expected.String(), estimate.CostWei.Dec())
}

func TestEstimate_GasLimitAlwaysPositive(t *testing.T) {
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
	mockEth.On("FeeHistory", mock.Anything, uint64(1), (*big.Int)(nil), []float64{50}).Return(legacyFeeHistory(), nil)
	mockEth.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(53000), nil)

	estimator := newTestEstimator(newTestPool(mockEth), 0)

	estimate, err := estimator.Estimate(context.Background(), mustDescriptor(t))
	require.NoError(t, err)
	assert.Greater(t, estimate.GasLimit, uint64(0))
	assert.NotEmpty(t, estimate.CostWei.Dec())
	assert.NotEmpty(t, estimate.CostEth)
}
