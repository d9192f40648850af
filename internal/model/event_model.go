package model

import (
	"time"
)

// EventModel 活动事件日志，(campaign_address, seq) 唯一
type EventModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignAddress string    `json:"campaign_address" gorm:"uniqueIndex:idx_event_campaign_seq;size:42;not null"`
	Seq             uint64    `json:"seq" gorm:"uniqueIndex:idx_event_campaign_seq;not null"`
	EventType       string    `json:"event_type" gorm:"index;not null"`
	Topic           string    `json:"topic" gorm:"size:66;not null"` // keccak256(event_type)
	BlockTime       time.Time `json:"block_time"`
	Data            string    `json:"data" gorm:"type:text"` // JSON 属性
	Processed       bool      `json:"processed" gorm:"default:false"`
}

// TableName 自定义表名
func (EventModel) TableName() string {
	return "event"
}
