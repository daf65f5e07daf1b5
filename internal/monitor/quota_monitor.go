package monitor

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MaxDailyQuota     = 300000 // 商业节点每日免费额度上限（CU）
	AlertThreshold    = 0.80   // 80% 预警阈值
	CriticalThreshold = 0.90   // 90% 临界阈值
)

// QuotaMonitor RPC 额度监控器。
// 估算引擎的缓存负责压低调用量，这里负责在额度逼近上限时提前告警。
type QuotaMonitor struct {
	dailyCalls  uint64    // 当天 RPC 调用次数
	resetTime   time.Time // 下次重置时间（UTC 0 点）
	usageGauge  prometheus.Gauge
	statusGauge prometheus.Gauge

	alerted  atomic.Bool
	critical atomic.Bool
}

// NewQuotaMonitor 创建新的额度监控器
func NewQuotaMonitor() *QuotaMonitor {
	qm := &QuotaMonitor{
		usageGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "estimator_rpc_quota_usage_percent",
			Help: "Percentage of daily RPC quota used (0-100)",
		}),
		statusGauge: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "estimator_rpc_quota_status",
			Help: "RPC quota status: 0=Safe, 1=Warning, 2=Critical",
		}),
	}
	qm.resetTime = qm.calculateNextReset()
	go qm.startResetTimer()

	slog.Info("🛡️ Quota monitor initialized",
		"max_daily_quota", MaxDailyQuota,
		"alert_threshold", AlertThreshold*100,
		"critical_threshold", CriticalThreshold*100)

	return qm
}

// Inc 每次调用 RPC 前调用此方法
func (m *QuotaMonitor) Inc() {
	current := atomic.AddUint64(&m.dailyCalls, 1)
	usagePercent := float64(current) / float64(MaxDailyQuota)

	m.usageGauge.Set(usagePercent * 100)

	status := 0.0 // Safe
	if usagePercent >= CriticalThreshold {
		status = 2.0 // Critical
		if m.critical.CompareAndSwap(false, true) {
			slog.Error("🚨 RPC quota critical, estimates may start failing",
				"daily_calls", current,
				"usage_percent", usagePercent*100)
		}
	} else if usagePercent >= AlertThreshold {
		status = 1.0 // Warning
		if m.alerted.CompareAndSwap(false, true) {
			slog.Warn("⚠️ RPC quota warning threshold crossed",
				"daily_calls", current,
				"usage_percent", usagePercent*100)
		}
	}
	m.statusGauge.Set(status)
}

// DailyCalls 返回当天已消耗的调用次数
func (m *QuotaMonitor) DailyCalls() uint64 {
	return atomic.LoadUint64(&m.dailyCalls)
}

func (m *QuotaMonitor) calculateNextReset() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

func (m *QuotaMonitor) startResetTimer() {
	for {
		time.Sleep(time.Until(m.resetTime))
		atomic.StoreUint64(&m.dailyCalls, 0)
		m.alerted.Store(false)
		m.critical.Store(false)
		m.usageGauge.Set(0)
		m.statusGauge.Set(0)
		m.resetTime = m.calculateNextReset()
		slog.Info("♻️ Daily RPC quota counter reset")
	}
}
