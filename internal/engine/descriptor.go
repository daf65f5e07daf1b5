package engine

import (
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// DescriptorInput 来自HTTP层的原始字段，未经校验
type DescriptorInput struct {
	From                 string
	To                   string
	Value                string
	Data                 string
	GasPrice             string
	MaxFeePerGas         string
	MaxPriorityFeePerGas string
}

// TransactionDescriptor 一次待估算交易的不可变描述。
// GasPrice / MaxFeePerGas / MaxPriorityFeePerGas 是调用方钉死的值，
// 设置后对应的上游查询会被短路。
type TransactionDescriptor struct {
	From  common.Address
	To    *common.Address // nil表示合约创建
	Value *big.Int        // wei，非负
	Data  []byte

	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// ParseDescriptor 校验并构造交易描述。所有格式错误都归为InvalidInputError。
func ParseDescriptor(in DescriptorInput) (*TransactionDescriptor, error) {
	if in.From == "" {
		return nil, invalidInput("missing 'from' address")
	}
	if !common.IsHexAddress(in.From) {
		return nil, invalidInput("invalid 'from' address: %s", in.From)
	}

	desc := &TransactionDescriptor{
		From: common.HexToAddress(in.From),
	}

	if in.To != "" {
		if !common.IsHexAddress(in.To) {
			return nil, invalidInput("invalid 'to' address: %s", in.To)
		}
		to := common.HexToAddress(in.To)
		desc.To = &to
	}

	if in.Value != "" {
		value, err := parseBigInt(in.Value)
		if err != nil {
			return nil, invalidInput("invalid value: %s", in.Value)
		}
		if value.Sign() < 0 {
			return nil, invalidInput("value must not be negative")
		}
		desc.Value = value
	}

	if in.Data != "" && in.Data != "0x" {
		data, err := hexutil.Decode(in.Data)
		if err != nil {
			return nil, invalidInput("invalid transaction data")
		}
		desc.Data = data
	}

	var err error
	if desc.GasPrice, err = parseOptionalBigInt(in.GasPrice); err != nil {
		return nil, invalidInput("invalid gas_price: %s", in.GasPrice)
	}
	if desc.MaxFeePerGas, err = parseOptionalBigInt(in.MaxFeePerGas); err != nil {
		return nil, invalidInput("invalid max_fee_per_gas: %s", in.MaxFeePerGas)
	}
	if desc.MaxPriorityFeePerGas, err = parseOptionalBigInt(in.MaxPriorityFeePerGas); err != nil {
		return nil, invalidInput("invalid max_priority_fee_per_gas: %s", in.MaxPriorityFeePerGas)
	}

	return desc, nil
}

// CallMsg 构造eth_estimateGas使用的调用消息
func (d *TransactionDescriptor) CallMsg() ethereum.CallMsg {
	return ethereum.CallMsg{
		From:  d.From,
		To:    d.To,
		Value: d.Value,
		Data:  d.Data,
	}
}

// CacheKey derives a deterministic key from the semantic call content, so
// identical logical requests within the TTL window share one cache slot.
// Value和Data都是变长字段，必须带长度前缀编码，
// 否则字段边界可以互相挪动，不同交易会撞出同一个key。
func (d *TransactionDescriptor) CacheKey() string {
	var buf []byte
	appendField := func(field []byte) {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(field)))
		buf = append(buf, length[:]...)
		buf = append(buf, field...)
	}

	appendField(d.From.Bytes())
	if d.To != nil {
		appendField(d.To.Bytes())
	} else {
		appendField(nil)
	}
	if d.Value != nil {
		appendField(d.Value.Bytes())
	} else {
		appendField(nil)
	}
	appendField(d.Data)
	return "estimate_gas:" + crypto.Keccak256Hash(buf).Hex()
}

// parseBigInt 支持十进制和0x十六进制两种wei表示
func parseBigInt(s string) (*big.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.DecodeBig(s)
	}
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, invalidInput("not a number: %s", s)
	}
	return value, nil
}

func parseOptionalBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	return parseBigInt(s)
}
