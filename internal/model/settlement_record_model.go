package model

import (
	"time"
)

// SettlementRecordModel 资金释放记录，里程碑释放与一次性释放共用
type SettlementRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignAddress string         `json:"campaign_address" gorm:"uniqueIndex:idx_settlement_campaign_seq;size:42;not null"`
	EventSeq        uint64         `json:"event_seq" gorm:"uniqueIndex:idx_settlement_campaign_seq;not null"`
	SettlementType  SettlementType `json:"settlement_type" gorm:"not null"`
	MilestoneId     int            `json:"milestone_id" gorm:"default:-1"` // 一次性释放为 -1
	Beneficiary     string         `json:"beneficiary" gorm:"size:42;not null"`
	Amount          string         `json:"amount" gorm:"not null"`
	ReleasedAmount  string         `json:"released_amount"` // 本次之后的累计释放
	SettlementTime  time.Time      `json:"settlement_time"`
}

// SettlementType 结算类型
type SettlementType string

const (
	SettlementTypeMilestone SettlementType = "milestone" // 里程碑释放
	SettlementTypeLumpSum   SettlementType = "lump_sum"  // 一次性释放
)

// TableName 自定义表名
func (SettlementRecordModel) TableName() string {
	return "settlement_record"
}
