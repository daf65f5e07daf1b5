package engine

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// TxType 输出的交易费用模型标签
type TxType string

const (
	TxTypeLegacy  TxType = "legacy"
	TxTypeEIP1559 TxType = "eip1559"
)

// defaultPriorityFee 节点无法给出小费建议时的兜底值：1.5 Gwei
var defaultPriorityFee = big.NewInt(1_500_000_000)

// FeeData 从上游取回的原始费用数据。字段均可为nil，
// 分类器根据缺失情况决定输出哪种费用模型。
type FeeData struct {
	GasPrice *big.Int // eth_gasPrice
	BaseFee  *big.Int // 下一个区块base fee，pre-1559链上为nil
	TipCap   *big.Int // 建议的priority fee
}

// FeeQuote 分类后的费用报价。Type决定哪组字段有值，绝不混合：
// legacy只有GasPrice，eip1559只有BaseFee/PriorityFee/MaxFee。
type FeeQuote struct {
	Type     TxType
	GasPrice *big.Int

	BaseFee     *big.Int
	PriorityFee *big.Int
	MaxFee      *big.Int
}

// ClassifyFeeModel decides the output fee model from whatever data was
// obtainable. Policy: prefer EIP-1559 whenever the upstream reports a base
// fee; fall back to legacy when it does not; fail when neither is available.
func ClassifyFeeModel(data *FeeData) (*FeeQuote, error) {
	if data == nil {
		return nil, ErrNoFeeData
	}

	if data.BaseFee != nil && data.BaseFee.Sign() > 0 {
		tip := data.TipCap
		if tip == nil || tip.Sign() == 0 {
			tip = defaultPriorityFee
		}
		// maxFee = 2*baseFee + tip：容忍下一个区块base fee最多翻倍
		maxFee := new(big.Int).Add(
			new(big.Int).Mul(data.BaseFee, big.NewInt(2)),
			tip,
		)
		return &FeeQuote{
			Type:        TxTypeEIP1559,
			BaseFee:     new(big.Int).Set(data.BaseFee),
			PriorityFee: new(big.Int).Set(tip),
			MaxFee:      maxFee,
		}, nil
	}

	if data.GasPrice != nil && data.GasPrice.Sign() > 0 {
		return &FeeQuote{
			Type:     TxTypeLegacy,
			GasPrice: new(big.Int).Set(data.GasPrice),
		}, nil
	}

	return nil, ErrNoFeeData
}

// EffectivePrice 计算成本时使用的单位gas价格：
// legacy取gas price，eip1559取base fee + priority fee。
func (q *FeeQuote) EffectivePrice() *big.Int {
	if q.Type == TxTypeEIP1559 {
		return new(big.Int).Add(q.BaseFee, q.PriorityFee)
	}
	return q.GasPrice
}

// ExecutionTime 粗粒度的预计确认时间标签，静态启发值而非实时拥堵数据
func (q *FeeQuote) ExecutionTime() string {
	if q.Type == TxTypeEIP1559 {
		return "~15 seconds"
	}
	return "~30 seconds"
}

// ComputeCost 饱和乘法计算总成本 gasLimit × price（wei）
func ComputeCost(gasLimit uint64, price *big.Int) *uint256.Int {
	p, overflow := uint256.FromBig(price)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	cost, overflow := new(uint256.Int).MulOverflow(p, uint256.NewInt(gasLimit))
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return cost
}

// weiPerEth = 10^18
var weiPerEth = uint256.NewInt(1_000_000_000_000_000_000)

// FormatEther 把wei格式化为18位小数的ether十进制字符串
func FormatEther(wei *uint256.Int) string {
	quo := new(uint256.Int)
	rem := new(uint256.Int)
	quo.DivMod(wei, weiPerEth, rem)
	return fmt.Sprintf("%s.%018s", quo.Dec(), rem.Dec())
}
