package logic

import (
	"context"
	"fmt"

	"github.com/blues/cfs-escrow/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
)

// 分页默认值
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// NormalizePage 修正页码与每页条数
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// paginate 统计总数后按页取数据
func paginate[T any](query *gorm.DB, order string, page, pageSize int) ([]T, int64, error) {
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("获取总数失败: %w", err)
	}
	page, pageSize = NormalizePage(page, pageSize)
	var rows []T
	if err := query.Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("获取列表失败: %w", err)
	}
	return rows, total, nil
}

// EventLogic 事件查询
type EventLogic struct {
	db *gorm.DB
}

// NewEventLogic 创建事件业务逻辑
func NewEventLogic(db *gorm.DB) *EventLogic {
	return &EventLogic{db: db}
}

// GetCampaignEvents 活动事件日志，按序号升序；eventType 为空时不过滤
func (e *EventLogic) GetCampaignEvents(ctx context.Context, campaign common.Address, eventType string, page, pageSize int) ([]model.EventModel, int64, error) {
	query := e.db.WithContext(ctx).Model(&model.EventModel{}).Where("campaign_address = ?", campaign.Hex())
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	return paginate[model.EventModel](query, "seq ASC", page, pageSize)
}

// GetUnprocessedEvents 投影未完成的事件
func (e *EventLogic) GetUnprocessedEvents(ctx context.Context, limit int) ([]model.EventModel, error) {
	var events []model.EventModel
	if err := e.db.WithContext(ctx).Where("processed = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("获取未处理事件失败: %w", err)
	}
	return events, nil
}

// ContributeRecordLogic 贡献记录查询
type ContributeRecordLogic struct {
	db *gorm.DB
}

// NewContributeRecordLogic 创建贡献记录业务逻辑
func NewContributeRecordLogic(db *gorm.DB) *ContributeRecordLogic {
	return &ContributeRecordLogic{db: db}
}

// GetCampaignContributeRecords 活动的贡献记录
func (c *ContributeRecordLogic) GetCampaignContributeRecords(ctx context.Context, campaign common.Address, page, pageSize int) ([]model.ContributeRecordModel, int64, error) {
	query := c.db.WithContext(ctx).Model(&model.ContributeRecordModel{}).Where("campaign_address = ?", campaign.Hex())
	return paginate[model.ContributeRecordModel](query, "event_seq DESC", page, pageSize)
}

// GetUserContributeRecords 地址在所有活动中的贡献记录
func (c *ContributeRecordLogic) GetUserContributeRecords(ctx context.Context, address common.Address, page, pageSize int) ([]model.ContributeRecordModel, int64, error) {
	query := c.db.WithContext(ctx).Model(&model.ContributeRecordModel{}).Where("address = ?", address.Hex())
	return paginate[model.ContributeRecordModel](query, "block_time DESC, id DESC", page, pageSize)
}

// ContributeStats 贡献统计
type ContributeStats struct {
	TotalContributions int64  `json:"totalContributions"`
	UniqueContributors int64  `json:"uniqueContributors"`
	TotalAmount        string `json:"totalAmount"`
}

// GetContributeStats 活动的贡献统计；金额为字符串，在内存中累加
func (c *ContributeRecordLogic) GetContributeStats(ctx context.Context, campaign common.Address) (*ContributeStats, error) {
	var amounts []string
	query := c.db.WithContext(ctx).Model(&model.ContributeRecordModel{}).Where("campaign_address = ?", campaign.Hex())
	if err := query.Pluck("amount", &amounts).Error; err != nil {
		return nil, fmt.Errorf("获取贡献金额失败: %w", err)
	}
	stats := &ContributeStats{TotalContributions: int64(len(amounts))}
	if err := c.db.WithContext(ctx).Model(&model.ContributeRecordModel{}).
		Where("campaign_address = ?", campaign.Hex()).
		Distinct("address").
		Count(&stats.UniqueContributors).Error; err != nil {
		return nil, fmt.Errorf("获取唯一贡献者数量失败: %w", err)
	}
	total, err := sumAmounts(amounts)
	if err != nil {
		return nil, err
	}
	stats.TotalAmount = total.Dec()
	return stats, nil
}

func sumAmounts(amounts []string) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, a := range amounts {
		v, err := uint256.FromDecimal(a)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", a, err)
		}
		total.Add(total, v)
	}
	return total, nil
}

// RefundRecordLogic 退款记录查询
type RefundRecordLogic struct {
	db *gorm.DB
}

// NewRefundRecordLogic 创建退款记录业务逻辑
func NewRefundRecordLogic(db *gorm.DB) *RefundRecordLogic {
	return &RefundRecordLogic{db: db}
}

// GetCampaignRefunds 活动的退款记录
func (r *RefundRecordLogic) GetCampaignRefunds(ctx context.Context, campaign common.Address, page, pageSize int) ([]model.RefundRecordModel, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.RefundRecordModel{}).Where("campaign_address = ?", campaign.Hex())
	return paginate[model.RefundRecordModel](query, "event_seq DESC", page, pageSize)
}

// SettlementRecordLogic 结算记录查询
type SettlementRecordLogic struct {
	db *gorm.DB
}

// NewSettlementRecordLogic 创建结算记录业务逻辑
func NewSettlementRecordLogic(db *gorm.DB) *SettlementRecordLogic {
	return &SettlementRecordLogic{db: db}
}

// GetCampaignSettlements 活动的资金释放记录
func (s *SettlementRecordLogic) GetCampaignSettlements(ctx context.Context, campaign common.Address, page, pageSize int) ([]model.SettlementRecordModel, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.SettlementRecordModel{}).Where("campaign_address = ?", campaign.Hex())
	return paginate[model.SettlementRecordModel](query, "event_seq ASC", page, pageSize)
}
