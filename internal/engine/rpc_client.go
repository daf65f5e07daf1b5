package engine

import (
	"context"
	"math/big"
)

// 适配器层：三个操作各对应一次RPC往返，不含任何重试/缓存逻辑。
// 超时由fallback协调器通过context强加，这里只管发请求。

// fetchGasPrice 当前网络gas price（eth_gasPrice）
func fetchGasPrice(ctx context.Context, client EthClient) (*big.Int, error) {
	return client.SuggestGasPrice(ctx)
}

// fetchFeeSuggestion EIP-1559费用建议（eth_feeHistory，单次往返）。
// 取下一个区块的base fee和最新区块50分位的小费。
// pre-1559链上base fee为0，FeeData.BaseFee保持nil，由分类器降级为legacy。
func fetchFeeSuggestion(ctx context.Context, client EthClient) (*FeeData, error) {
	hist, err := client.FeeHistory(ctx, 1, nil, []float64{50})
	if err != nil {
		return nil, err
	}

	data := &FeeData{}
	if n := len(hist.BaseFee); n > 0 {
		// 最后一项是下一个（pending）区块的base fee
		if base := hist.BaseFee[n-1]; base != nil && base.Sign() > 0 {
			data.BaseFee = base
		}
	}
	if len(hist.Reward) > 0 && len(hist.Reward[0]) > 0 {
		data.TipCap = hist.Reward[0][0]
	}
	return data, nil
}

// fetchGasLimit 模拟调用估算gas上限（eth_estimateGas）
func fetchGasLimit(desc *TransactionDescriptor) func(ctx context.Context, client EthClient) (uint64, error) {
	msg := desc.CallMsg()
	return func(ctx context.Context, client EthClient) (uint64, error) {
		return client.EstimateGas(ctx, msg)
	}
}
