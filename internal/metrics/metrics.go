package metrics

import (
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// 资金流向
const (
	FlowContributed = "contributed"
	FlowReleased    = "released"
	FlowRefunded    = "refunded"
)

// EscrowMetrics 托管服务指标
type EscrowMetrics struct {
	events         *prometheus.CounterVec
	value          *prometheus.CounterVec
	rewardFailures prometheus.Counter
	jobRuns        *prometheus.CounterVec
	campaigns      prometheus.Gauge
}

var (
	escrowOnce     sync.Once
	escrowRegistry *EscrowMetrics
)

// Escrow 返回全局指标，首次调用时注册到默认 registry
func Escrow() *EscrowMetrics {
	escrowOnce.Do(func() {
		escrowRegistry = &EscrowMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cfs_escrow_events_total",
				Help: "Count of campaign events by type.",
			}, []string{"type"}),
			value: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cfs_escrow_value_wei_total",
				Help: "Native currency moved through campaigns, in wei, by flow.",
			}, []string{"flow"}),
			rewardFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cfs_escrow_reward_failures_total",
				Help: "Number of proof-of-contribution rewards that could not be issued.",
			}),
			jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cfs_escrow_job_runs_total",
				Help: "Keeper job executions by job and result.",
			}, []string{"job", "result"}),
			campaigns: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "cfs_escrow_campaigns",
				Help: "Number of campaigns known to the registry.",
			}),
		}
		prometheus.MustRegister(
			escrowRegistry.events,
			escrowRegistry.value,
			escrowRegistry.rewardFailures,
			escrowRegistry.jobRuns,
			escrowRegistry.campaigns,
		)
	})
	return escrowRegistry
}

// ObserveEvent 事件计数
func (m *EscrowMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

// ObserveValue 累加资金流量，amount 为 wei
func (m *EscrowMetrics) ObserveValue(flow string, amount *uint256.Int) {
	if m == nil || amount == nil || amount.IsZero() {
		return
	}
	v, _ := new(big.Float).SetInt(amount.ToBig()).Float64()
	m.value.WithLabelValues(flow).Add(v)
}

// ObserveRewardFailure 凭证发放失败计数
func (m *EscrowMetrics) ObserveRewardFailure() {
	if m == nil {
		return
	}
	m.rewardFailures.Inc()
}

// ObserveJobRun 定时任务执行计数
func (m *EscrowMetrics) ObserveJobRun(job string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.jobRuns.WithLabelValues(job, result).Inc()
}

// SetCampaigns 活动数量
func (m *EscrowMetrics) SetCampaigns(n int) {
	if m == nil {
		return
	}
	m.campaigns.Set(float64(n))
}
