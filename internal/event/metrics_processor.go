package event

import (
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/metrics"
	"github.com/blues/cfs-escrow/internal/model"
	"github.com/holiman/uint256"
)

// MetricsProcessor 把事件计入 prometheus 指标
type MetricsProcessor struct {
	metrics *metrics.EscrowMetrics
}

// NewMetricsProcessor 创建指标处理器
func NewMetricsProcessor(m *metrics.EscrowMetrics) *MetricsProcessor {
	return &MetricsProcessor{metrics: m}
}

// GetEventTypes 订阅全部事件
func (p *MetricsProcessor) GetEventTypes() []string {
	return []string{AnyEvent}
}

// Process 计数并累加资金流量
func (p *MetricsProcessor) Process(_ *model.EventModel, evt escrow.Event) error {
	p.metrics.ObserveEvent(evt.Type)

	var flow string
	switch evt.Type {
	case escrow.EventContributionReceived:
		flow = metrics.FlowContributed
	case escrow.EventMilestoneFundsReleased, escrow.EventFundsReleased:
		flow = metrics.FlowReleased
	case escrow.EventRefundIssued:
		flow = metrics.FlowRefunded
	case escrow.EventRewardFailed:
		p.metrics.ObserveRewardFailure()
		return nil
	default:
		return nil
	}
	if amount, err := uint256.FromDecimal(evt.Attr("amount")); err == nil {
		p.metrics.ObserveValue(flow, amount)
	}
	return nil
}
