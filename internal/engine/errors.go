package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNoEndpoints 配置校验：至少需要一个RPC端点
	ErrNoEndpoints = errors.New("no RPC URLs provided")

	// ErrNoFeeData means the upstream reported neither a base fee nor a
	// legacy gas price, so no fee model can be classified.
	ErrNoFeeData = errors.New("upstream reported neither base fee nor gas price")
)

// InvalidInputError 交易描述参数非法（地址、金额、calldata格式错误）
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

func invalidInput(format string, args ...interface{}) *InvalidInputError {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// RevertError 节点拒绝模拟该调用（链上执行会revert）。
// 这是语义失败，与网络故障严格区分，换节点重试没有意义。
type RevertError struct {
	Detail string
}

func (e *RevertError) Error() string {
	return "transaction would fail: " + e.Detail
}

// UpstreamError 一次逻辑操作在所有端点上都失败了。
// Failures 按端点URL记录每个端点的最后一次错误。
type UpstreamError struct {
	Method   string
	Failures map[string]error
}

func (e *UpstreamError) Error() string {
	urls := make([]string, 0, len(e.Failures))
	for url := range e.Failures {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	var sb strings.Builder
	fmt.Fprintf(&sb, "all %d endpoints failed for %s", len(e.Failures), e.Method)
	for _, url := range urls {
		fmt.Fprintf(&sb, "; %s: %v", url, e.Failures[url])
	}
	return sb.String()
}

// isRevert 通过节点错误文本识别语义失败（与原始JSON-RPC错误码无关，
// 各家节点实现返回的文本不尽相同，这里匹配最常见的两种）
func isRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution reverted") ||
		strings.Contains(msg, "gas required exceeds allowance")
}
