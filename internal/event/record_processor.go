package event

import (
	"fmt"
	"strconv"

	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContributeProcessor 贡献事件处理器
type ContributeProcessor struct {
	db *gorm.DB
}

// NewContributeProcessor 创建贡献事件处理器
func NewContributeProcessor(db *gorm.DB) *ContributeProcessor {
	return &ContributeProcessor{db: db}
}

// GetEventTypes 支持的事件类型
func (p *ContributeProcessor) GetEventTypes() []string {
	return []string{escrow.EventContributionReceived}
}

// Process 写入贡献记录
func (p *ContributeProcessor) Process(row *model.EventModel, evt escrow.Event) error {
	record := model.ContributeRecordModel{
		CampaignAddress: row.CampaignAddress,
		EventSeq:        row.Seq,
		Address:         evt.Attr("contributor"),
		Amount:          evt.Attr("amount"),
		TotalRaised:     evt.Attr("totalRaised"),
		BlockTime:       evt.Time,
	}
	if err := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return fmt.Errorf("创建贡献记录失败: %w", err)
	}
	logger.Debug("Processed contribution: %s wei from %s to campaign %s",
		record.Amount, record.Address, record.CampaignAddress)
	return nil
}

// RefundProcessor 退款事件处理器
type RefundProcessor struct {
	db *gorm.DB
}

// NewRefundProcessor 创建退款事件处理器
func NewRefundProcessor(db *gorm.DB) *RefundProcessor {
	return &RefundProcessor{db: db}
}

// GetEventTypes 支持的事件类型
func (p *RefundProcessor) GetEventTypes() []string {
	return []string{escrow.EventRefundIssued}
}

// Process 写入退款记录
func (p *RefundProcessor) Process(row *model.EventModel, evt escrow.Event) error {
	record := model.RefundRecordModel{
		CampaignAddress: row.CampaignAddress,
		EventSeq:        row.Seq,
		Address:         evt.Attr("contributor"),
		Amount:          evt.Attr("amount"),
		Status:          model.RefundStatusSuccess,
		BlockTime:       evt.Time,
	}
	if err := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return fmt.Errorf("创建退款记录失败: %w", err)
	}
	logger.Debug("Processed refund: %s wei to %s for campaign %s",
		record.Amount, record.Address, record.CampaignAddress)
	return nil
}

// SettlementProcessor 资金释放事件处理器
type SettlementProcessor struct {
	db *gorm.DB
}

// NewSettlementProcessor 创建资金释放事件处理器
func NewSettlementProcessor(db *gorm.DB) *SettlementProcessor {
	return &SettlementProcessor{db: db}
}

// GetEventTypes 支持的事件类型
func (p *SettlementProcessor) GetEventTypes() []string {
	return []string{escrow.EventMilestoneFundsReleased, escrow.EventFundsReleased}
}

// Process 写入结算记录
func (p *SettlementProcessor) Process(row *model.EventModel, evt escrow.Event) error {
	record := model.SettlementRecordModel{
		CampaignAddress: row.CampaignAddress,
		EventSeq:        row.Seq,
		SettlementType:  model.SettlementTypeLumpSum,
		MilestoneId:     -1,
		Beneficiary:     evt.Attr("beneficiary"),
		Amount:          evt.Attr("amount"),
		ReleasedAmount:  evt.Attr("amount"),
		SettlementTime:  evt.Time,
	}
	if evt.Type == escrow.EventMilestoneFundsReleased {
		id, err := strconv.Atoi(evt.Attr("milestoneId"))
		if err != nil {
			return fmt.Errorf("invalid milestoneId %q: %w", evt.Attr("milestoneId"), err)
		}
		record.SettlementType = model.SettlementTypeMilestone
		record.MilestoneId = id
		record.ReleasedAmount = evt.Attr("releasedAmount")
	}
	if err := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return fmt.Errorf("创建结算记录失败: %w", err)
	}
	logger.Debug("Processed %s settlement: %s wei to %s for campaign %s",
		record.SettlementType, record.Amount, record.Beneficiary, record.CampaignAddress)
	return nil
}

// UpdateProcessor 公告事件处理器
type UpdateProcessor struct {
	db *gorm.DB
}

// NewUpdateProcessor 创建公告事件处理器
func NewUpdateProcessor(db *gorm.DB) *UpdateProcessor {
	return &UpdateProcessor{db: db}
}

// GetEventTypes 支持的事件类型
func (p *UpdateProcessor) GetEventTypes() []string {
	return []string{escrow.EventUpdatePosted}
}

// Process 写入公告
func (p *UpdateProcessor) Process(row *model.EventModel, evt escrow.Event) error {
	id, err := strconv.Atoi(evt.Attr("updateId"))
	if err != nil {
		return fmt.Errorf("invalid updateId %q: %w", evt.Attr("updateId"), err)
	}
	milestoneID, err := strconv.Atoi(evt.Attr("milestoneId"))
	if err != nil {
		milestoneID = -1
	}
	update := model.CampaignUpdateModel{
		CampaignAddress: row.CampaignAddress,
		UpdateId:        id,
		Title:           evt.Attr("title"),
		ContentHash:     evt.Attr("contentHash"),
		MilestoneId:     milestoneID,
		PostedAt:        evt.Time,
	}
	if err := p.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&update).Error; err != nil {
		return fmt.Errorf("创建公告失败: %w", err)
	}
	return nil
}
