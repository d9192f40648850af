package model

import (
	"time"
)

// RefundRecordModel 退款记录
type RefundRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignAddress string       `json:"campaign_address" gorm:"uniqueIndex:idx_refund_campaign_seq;size:42;not null"`
	EventSeq        uint64       `json:"event_seq" gorm:"uniqueIndex:idx_refund_campaign_seq;not null"`
	Address         string       `json:"address" gorm:"index;size:42;not null"`
	Amount          string       `json:"amount" gorm:"not null"`
	Status          RefundStatus `json:"status" gorm:"default:'success'"`
	BlockTime       time.Time    `json:"block_time"`
}

// RefundStatus 退款状态
type RefundStatus string

const (
	RefundStatusSuccess RefundStatus = "success" // 成功
	RefundStatusFailed  RefundStatus = "failed"  // 失败
)

// TableName 自定义表名
func (RefundRecordModel) TableName() string {
	return "refund_record"
}
