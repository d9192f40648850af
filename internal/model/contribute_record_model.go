package model

import (
	"time"
)

// ContributeRecordModel 贡献记录
type ContributeRecordModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignAddress string    `json:"campaign_address" gorm:"uniqueIndex:idx_contribute_campaign_seq;size:42;not null"`
	EventSeq        uint64    `json:"event_seq" gorm:"uniqueIndex:idx_contribute_campaign_seq;not null"`
	Address         string    `json:"address" gorm:"index;size:42;not null"`
	Amount          string    `json:"amount" gorm:"not null"`
	TotalRaised     string    `json:"total_raised"` // 本笔之后的累计
	BlockTime       time.Time `json:"block_time"`
}

// TableName 自定义表名
func (ContributeRecordModel) TableName() string {
	return "contribute_record"
}
