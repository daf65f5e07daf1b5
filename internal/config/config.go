package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RPCURLs       []string // 支持多个RPC URL，按顺序故障转移
	ChainID       int64
	CacheTTL      time.Duration // 费用数据缓存TTL，0表示不使用缓存
	RPCTimeout    time.Duration // 单次RPC请求超时
	FailThreshold int           // 连续失败多少次后标记节点为疑似宕机
	RPCRateLimit  int           // 全局RPC限速 (requests/second)
	Host          string
	Port          string
	LogLevel      string
	LogFormat     string
}

func Load() (*Config, error) {
	_ = godotenv.Load() // .env文件是可选的

	// 解析RPC URL列表（支持逗号分隔）
	rpcUrlsStr := os.Getenv("RPC_URLS")
	if rpcUrlsStr == "" {
		return nil, fmt.Errorf("RPC_URLS must be set (comma-separated list of endpoints)")
	}
	var rpcUrls []string
	for _, url := range strings.Split(rpcUrlsStr, ",") {
		url = strings.TrimSpace(url)
		if url != "" {
			rpcUrls = append(rpcUrls, url)
		}
	}
	if len(rpcUrls) == 0 {
		return nil, fmt.Errorf("RPC_URLS contains no usable endpoints")
	}

	return &Config{
		RPCURLs:       rpcUrls,
		ChainID:       getEnvAsInt64("CHAIN_ID", 1),
		CacheTTL:      time.Duration(getEnvAsInt64("CACHE_TTL_SECONDS", 15)) * time.Second,
		RPCTimeout:    time.Duration(getEnvAsInt64("RPC_TIMEOUT_SECONDS", 10)) * time.Second,
		FailThreshold: int(getEnvAsInt64("FAIL_THRESHOLD", 3)),
		RPCRateLimit:  int(getEnvAsInt64("RPC_RATE_LIMIT", 10)),
		Host:          getEnv("HOST", "0.0.0.0"),
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
	}, nil
}

// ListenAddr 返回HTTP服务监听地址
func (c *Config) ListenAddr() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Printf("Invalid %s: %s, using default %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
