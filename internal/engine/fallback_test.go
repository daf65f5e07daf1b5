package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCallWithFallback_FirstEndpointSucceeds(t *testing.T) {
	mockEth := new(MockEthClient)
	mockEth.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1000), nil).Once()

	pool := newTestPool(mockEth)

	price, err := callWithFallback(context.Background(), pool, nil, "eth_gasPrice", time.Second, fetchGasPrice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), price)
	assert.Equal(t, 0, pool.endpoints[0].failCount)
	mockEth.AssertExpectations(t)
}

func TestCallWithFallback_FallsThroughFailures(t *testing.T) {
	// 前两个节点失败，第三个成功：应返回成功值并准确上报 2 次失败 1 次成功
	bad1 := new(MockEthClient)
	bad1.On("SuggestGasPrice", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	bad2 := new(MockEthClient)
	bad2.On("SuggestGasPrice", mock.Anything).Return(nil, errors.New("i/o timeout")).Once()
	good := new(MockEthClient)
	good.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(42), nil).Once()

	pool := newTestPool(bad1, bad2, good)

	price, err := callWithFallback(context.Background(), pool, nil, "eth_gasPrice", time.Second, fetchGasPrice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), price)

	assert.Equal(t, 1, pool.endpoints[0].failCount)
	assert.Equal(t, 1, pool.endpoints[1].failCount)
	assert.Equal(t, 0, pool.endpoints[2].failCount)
	assert.True(t, pool.endpoints[2].isHealthy)

	bad1.AssertExpectations(t)
	bad2.AssertExpectations(t)
	good.AssertExpectations(t)
}

func TestCallWithFallback_AllEndpointsFail(t *testing.T) {
	bad1 := new(MockEthClient)
	bad1.On("SuggestGasPrice", mock.Anything).Return(nil, errors.New("connection refused")).Once()
	bad2 := new(MockEthClient)
	bad2.On("SuggestGasPrice", mock.Anything).Return(nil, errors.New("502 bad gateway")).Once()

	pool := newTestPool(bad1, bad2)

	_, err := callWithFallback(context.Background(), pool, nil, "eth_gasPrice", time.Second, fetchGasPrice)
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "eth_gasPrice", upstream.Method)
	assert.Len(t, upstream.Failures, 2)
	assert.Contains(t, err.Error(), "node1")
	assert.Contains(t, err.Error(), "node2")
}

func TestCallWithFallback_RevertAbortsImmediately(t *testing.T) {
	first := new(MockEthClient)
	first.On("SuggestGasPrice", mock.Anything).Return(nil, errors.New("execution reverted: ERC20: transfer amount exceeds balance")).Once()
	second := new(MockEthClient)
	// 第二个节点不应该被触碰

	pool := newTestPool(first, second)

	_, err := callWithFallback(context.Background(), pool, nil, "eth_gasPrice", time.Second, fetchGasPrice)
	var revert *RevertError
	require.ErrorAs(t, err, &revert)

	// revert是节点的正常响应，不应计为节点故障
	assert.Equal(t, 0, pool.endpoints[0].failCount)
	assert.True(t, pool.endpoints[0].isHealthy)
	second.AssertExpectations(t)
}

func TestCallWithFallback_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mockEth := new(MockEthClient)
	pool := newTestPool(mockEth)

	_, err := callWithFallback(ctx, pool, nil, "eth_gasPrice", time.Second, fetchGasPrice)
	assert.ErrorIs(t, err, context.Canceled)
}
