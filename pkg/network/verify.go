package network

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"
)

// 预定义的网络 ID（常量）
const (
	MainnetChainID = 1
	SepoliaChainID = 11155111
	AnvilChainID   = 31337
	HoleskyChainID = 17000
)

// ChainIDReader 只需要eth_chainId一个能力，校验不依赖完整客户端
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Name 返回 Chain ID 对应的网络名称
func Name(chainID int64) string {
	switch chainID {
	case MainnetChainID:
		return "Ethereum Mainnet"
	case SepoliaChainID:
		return "Sepolia Testnet"
	case AnvilChainID:
		return "Anvil Local"
	case HoleskyChainID:
		return "Holesky Testnet"
	default:
		return fmt.Sprintf("Unknown Network (Chain ID: %d)", chainID)
	}
}

// VerifyEndpoint 校验单个RPC端点的 Chain ID。
// 配错链的端点会让估算结果完全失真（比如把L2的费用当主网报出去），
// 所以不匹配直接返回error。
func VerifyEndpoint(url string, client ChainIDReader, expectedChainID int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	actualChainID, err := client.ChainID(ctx)
	if err != nil {
		slog.Warn("❌ 无法获取 RPC 节点的 ChainID",
			"endpoint", url,
			"error", err)
		return fmt.Errorf("failed to get chain ID from %s: %w", url, err)
	}

	if actualChainID.Cmp(big.NewInt(expectedChainID)) != 0 {
		slog.Error("🛑 [SECURITY ALERT] 网络配置冲突！",
			"endpoint", url,
			"expected", fmt.Sprintf("%s (ID: %d)", Name(expectedChainID), expectedChainID),
			"actual", fmt.Sprintf("%s (ID: %d)", Name(actualChainID.Int64()), actualChainID.Int64()),
			"impact", "估算结果不可信",
		)
		return fmt.Errorf("network mismatch on %s: expected %d, got %d", url, expectedChainID, actualChainID.Int64())
	}

	return nil
}

// VerifyEndpoints 校验一组端点，全部通过才算通过
func VerifyEndpoints(clients map[string]ChainIDReader, expectedChainID int64) error {
	slog.Info("📡 网络校验中...",
		"expected_chain_id", expectedChainID,
		"expected_network", Name(expectedChainID),
		"endpoints", len(clients),
	)

	for url, client := range clients {
		if err := VerifyEndpoint(url, client, expectedChainID); err != nil {
			return err
		}
	}

	slog.Info("✅ 网络校验通过，环境匹配",
		"network", Name(expectedChainID),
		"chain_id", expectedChainID,
	)
	return nil
}
