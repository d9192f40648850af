package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/blues/cfs-escrow/internal/chain"
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"
)

const defaultWorkers = 8

// Dispatcher 实现 escrow.Emitter：同步落库事件，再由协程池异步投影成各类记录
type Dispatcher struct {
	db         *gorm.DB
	processors *ProcessorManager
	pool       *ants.Pool // 协程池
	wg         sync.WaitGroup
}

// NewDispatcher 创建事件分发器，workers 为投影协程数
func NewDispatcher(db *gorm.DB, processors *ProcessorManager, workers int) (*Dispatcher, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create projection pool: %w", err)
	}
	return &Dispatcher{
		db:         db,
		processors: processors,
		pool:       pool,
	}, nil
}

// NewDefaultProcessors 注册全部记录处理器与指标处理器
func NewDefaultProcessors(db *gorm.DB, mp *MetricsProcessor) *ProcessorManager {
	pm := NewProcessorManager(
		NewContributeProcessor(db),
		NewRefundProcessor(db),
		NewSettlementProcessor(db),
		NewUpdateProcessor(db),
	)
	if mp != nil {
		pm.RegisterProcessor(mp)
	}
	logger.Info("ProcessorManager initialized for event types: %v", pm.GetSupportedEventTypes())
	return pm
}

// Emit 实现 escrow.Emitter 接口
func (d *Dispatcher) Emit(evt escrow.Event) {
	row, err := d.store(evt)
	if err != nil {
		logger.Error("Failed to save event %s #%d of campaign %s: %v", evt.Type, evt.Seq, evt.Campaign.Hex(), err)
		return
	}

	d.wg.Add(1)
	task := func() {
		defer d.wg.Done()
		d.project(row, evt)
	}
	if err := d.pool.Submit(task); err != nil {
		logger.Warn("Failed to submit projection to pool, running inline: %v", err)
		task()
	}
}

// store 写入事件日志
func (d *Dispatcher) store(evt escrow.Event) (*model.EventModel, error) {
	data, err := json.Marshal(evt.Attributes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	row := &model.EventModel{
		CampaignAddress: evt.Campaign.Hex(),
		Seq:             evt.Seq,
		EventType:       evt.Type,
		Topic:           chain.Topic(evt.Type).Hex(),
		BlockTime:       evt.Time,
		Data:            string(data),
	}
	if err := d.db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("创建事件记录失败: %w", err)
	}
	return row, nil
}

// project 交给处理器，全部成功后标记已处理
func (d *Dispatcher) project(row *model.EventModel, evt escrow.Event) bool {
	if err := d.processors.ProcessEvent(row, evt); err != nil {
		logger.Error("Error processing event %s #%d of campaign %s: %v", row.EventType, row.Seq, row.CampaignAddress, err)
		return false
	}
	if err := d.db.Model(&model.EventModel{}).Where("id = ?", row.Id).Update("processed", true).Error; err != nil {
		logger.Error("Failed to mark event %d as processed: %v", row.Id, err)
		return false
	}
	return true
}

// Replay 重新投影超过 minAge 仍未处理的事件，返回本次处理成功的条数
func (d *Dispatcher) Replay(ctx context.Context, minAge time.Duration, limit int) (int, error) {
	var rows []model.EventModel
	err := d.db.WithContext(ctx).
		Where("processed = ? AND created_at < ?", false, time.Now().Add(-minAge)).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("获取未处理事件失败: %w", err)
	}

	replayed := 0
	for i := range rows {
		row := &rows[i]
		evt := escrow.Event{
			Campaign: common.HexToAddress(row.CampaignAddress),
			Seq:      row.Seq,
			Type:     row.EventType,
			Time:     row.BlockTime,
		}
		if err := json.Unmarshal([]byte(row.Data), &evt.Attributes); err != nil {
			logger.Error("Event %d has corrupt data, skipping: %v", row.Id, err)
			continue
		}
		if d.project(row, evt) {
			replayed++
		}
	}
	if len(rows) > 0 {
		logger.Info("Replayed %d/%d unprocessed events", replayed, len(rows))
	}
	return replayed, nil
}

// Wait 等待已提交的投影全部完成
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close 等待投影完成并释放协程池
func (d *Dispatcher) Close() error {
	d.Wait()
	if err := d.pool.ReleaseTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("failed to release projection pool: %w", err)
	}
	logger.Info("Event dispatcher stopped")
	return nil
}
