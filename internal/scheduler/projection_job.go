package scheduler

import (
	"context"
	"time"

	"github.com/blues/cfs-escrow/internal/config"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/metrics"
	"github.com/go-co-op/gocron/v2"
)

const (
	replayBatch  = 100
	replayMinAge = time.Minute // 避开仍在协程池中的投影
)

// Replayer 重新投影未处理的事件
type Replayer interface {
	Replay(ctx context.Context, minAge time.Duration, limit int) (int, error)
}

// ProjectionRetryJob 补投影失败的事件日志
type ProjectionRetryJob struct {
	replayer Replayer
	config   config.TaskConfig
	metrics  *metrics.EscrowMetrics
}

// NewProjectionRetryJob 创建补投影任务
func NewProjectionRetryJob(replayer Replayer, cfg config.TaskConfig, m *metrics.EscrowMetrics) *ProjectionRetryJob {
	return &ProjectionRetryJob{replayer: replayer, config: cfg, metrics: m}
}

// GetName 获取任务名称
func (j *ProjectionRetryJob) GetName() string {
	return "event_projection_retry"
}

// GetSchedule 获取调度配置
func (j *ProjectionRetryJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Interval) * time.Second)
}

// Execute 执行任务
func (j *ProjectionRetryJob) Execute() {
	n, err := j.replayer.Replay(context.Background(), replayMinAge, replayBatch)
	if err != nil {
		logger.Error("Failed to replay events: %v", err)
		j.metrics.ObserveJobRun(j.GetName(), false)
		return
	}
	if n > 0 {
		logger.Info("Projection retry recovered %d events", n)
	}
	j.metrics.ObserveJobRun(j.GetName(), true)
}
