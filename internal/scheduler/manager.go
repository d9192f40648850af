package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/blues/cfs-escrow/internal/config"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/blues/cfs-escrow/internal/metrics"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

// Job 定时任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	campaigns *logic.CampaignLogic
	replayer  Replayer
	config    config.TaskConfig
	metrics   *metrics.EscrowMetrics
}

// NewManager 创建新的任务管理器，replayer 为空时不注册补投影任务
func NewManager(campaigns *logic.CampaignLogic, replayer Replayer, cfg config.TaskConfig, m *metrics.EscrowMetrics) (*Manager, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Manager{
		scheduler: s,
		campaigns: campaigns,
		replayer:  replayer,
		config:    cfg,
		metrics:   m,
	}, nil
}

// Start 注册任务并启动调度器
func (m *Manager) Start() error {
	jobs := []Job{
		NewFinalizeJob(m.campaigns, m.config, m.metrics),
		NewVoteResolveJob(m.campaigns, m.config, m.metrics),
	}
	if m.replayer != nil {
		jobs = append(jobs, NewProjectionRetryJob(m.replayer, m.config, m.metrics))
	}
	for _, job := range jobs {
		if err := m.register(job); err != nil {
			return err
		}
	}
	m.scheduler.Start()
	logger.Info("Task manager started with %d jobs", len(jobs))
	return nil
}

func (m *Manager) register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("register job %s: %w", job.GetName(), err)
	}
	return nil
}

// Stop 停止任务管理器，等待运行中的任务结束
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}

// runBatch 在临时协程池中并发执行，返回失败数
func runBatch[T any](items []T, workers int, fn func(context.Context, T) error) int {
	if len(items) == 0 {
		return 0
	}
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		logger.Error("Failed to create temporary pool: %v", err)
		return len(items)
	}
	defer pool.Release()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	ctx := context.Background()
	for _, item := range items {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := fn(ctx, item); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}
		if err := pool.Submit(task); err != nil {
			logger.Warn("Failed to submit task to pool, running inline: %v", err)
			task()
		}
	}
	wg.Wait()
	return failed
}
