package engine

import (
	"log/slog"
	"os"
)

// Logger 全局结构化日志器
var Logger *slog.Logger

// InitLogger 初始化结构化日志
func InitLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	// 根据环境变量选择输出格式
	if os.Getenv("LOG_FORMAT") == "text" {
		// 文本格式，便于开发调试
		Logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	} else {
		// JSON 格式，便于日志收集系统处理
		Logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	slog.SetDefault(Logger)
}

// LogRPCRequestFailed 记录单个节点RPC请求失败日志
func LogRPCRequestFailed(method, endpoint string, err error) {
	slog.Warn("rpc_request_failed",
		slog.String("method", method),
		slog.String("endpoint", endpoint),
		slog.String("error", err.Error()),
	)
}

// LogEndpointSuspectedDead 记录节点被标记为疑似宕机
func LogEndpointSuspectedDead(endpoint string, failCount int) {
	slog.Warn("endpoint_suspected_dead",
		slog.String("endpoint", endpoint),
		slog.Int("fail_count", failCount),
	)
}

// LogEndpointRecovered 记录节点恢复健康状态
func LogEndpointRecovered(endpoint string) {
	slog.Info("endpoint_recovered",
		slog.String("endpoint", endpoint),
	)
}

// LogEstimateServed 记录一次完整的估算请求
func LogEstimateServed(txType string, gasLimit uint64, durationSec float64) {
	slog.Info("estimate_served",
		slog.String("tx_type", txType),
		slog.Uint64("gas_limit", gasLimit),
		slog.Float64("duration_seconds", durationSec),
	)
}
