package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/blues/cfs-escrow/internal/config"
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/blues/cfs-escrow/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-co-op/gocron/v2"
)

// FinalizeJob 结算已过截止时间的活动
type FinalizeJob struct {
	campaigns *logic.CampaignLogic
	config    config.TaskConfig
	metrics   *metrics.EscrowMetrics
}

// NewFinalizeJob 创建结算任务
func NewFinalizeJob(campaigns *logic.CampaignLogic, cfg config.TaskConfig, m *metrics.EscrowMetrics) *FinalizeJob {
	return &FinalizeJob{campaigns: campaigns, config: cfg, metrics: m}
}

// GetName 获取任务名称
func (j *FinalizeJob) GetName() string {
	return "campaign_finalizer"
}

// GetSchedule 获取调度配置
func (j *FinalizeJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Interval) * time.Second)
}

// Execute 执行任务
func (j *FinalizeJob) Execute() {
	pending := j.campaigns.PendingFinalize()
	if len(pending) == 0 {
		logger.Debug("No campaigns waiting for finalization")
		j.metrics.ObserveJobRun(j.GetName(), true)
		return
	}

	logger.Info("Finalizing %d campaigns", len(pending))
	failed := runBatch(pending, j.config.Workers, j.finalize)
	logger.Info("Campaign finalization completed: %d/%d succeeded", len(pending)-failed, len(pending))
	j.metrics.ObserveJobRun(j.GetName(), failed == 0)
}

func (j *FinalizeJob) finalize(ctx context.Context, addr common.Address) error {
	_, err := j.campaigns.Finalize(ctx, addr)
	// 手动调用抢先结算不算失败
	if errors.Is(err, escrow.ErrPhaseViolation) && j.finalized(addr) {
		return nil
	}
	return err
}

func (j *FinalizeJob) finalized(addr common.Address) bool {
	c, err := j.campaigns.GetCampaign(addr)
	return err == nil && c.Summary().Finalized
}
