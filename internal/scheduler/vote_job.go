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

// VoteResolveJob 对投票期已结束的里程碑计票
type VoteResolveJob struct {
	campaigns *logic.CampaignLogic
	config    config.TaskConfig
	metrics   *metrics.EscrowMetrics
}

type pendingVote struct {
	campaign  common.Address
	milestone int
}

// NewVoteResolveJob 创建计票任务
func NewVoteResolveJob(campaigns *logic.CampaignLogic, cfg config.TaskConfig, m *metrics.EscrowMetrics) *VoteResolveJob {
	return &VoteResolveJob{campaigns: campaigns, config: cfg, metrics: m}
}

// GetName 获取任务名称
func (j *VoteResolveJob) GetName() string {
	return "milestone_vote_resolver"
}

// GetSchedule 获取调度配置
func (j *VoteResolveJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Interval) * time.Second)
}

// Execute 执行任务
func (j *VoteResolveJob) Execute() {
	var votes []pendingVote
	for addr, ids := range j.campaigns.PendingVotes() {
		for _, id := range ids {
			votes = append(votes, pendingVote{campaign: addr, milestone: id})
		}
	}
	if len(votes) == 0 {
		logger.Debug("No milestone votes waiting for resolution")
		j.metrics.ObserveJobRun(j.GetName(), true)
		return
	}

	logger.Info("Resolving %d milestone votes", len(votes))
	failed := runBatch(votes, j.config.Workers, func(ctx context.Context, v pendingVote) error {
		_, err := j.campaigns.ResolveVote(ctx, v.campaign, v.milestone)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, escrow.ErrInsufficientConsensus):
			// 未达法定人数，投票保持开启，下一轮重试
			logger.Info("Milestone %d of campaign %s has not reached quorum", v.milestone, v.campaign.Hex())
			return nil
		case errors.Is(err, escrow.ErrAlreadyDone):
			return nil
		default:
			return err
		}
	})
	logger.Info("Milestone vote resolution completed: %d/%d succeeded", len(votes)-failed, len(votes))
	j.metrics.ObserveJobRun(j.GetName(), failed == 0)
}
