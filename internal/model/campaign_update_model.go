package model

import (
	"time"
)

// CampaignUpdateModel 活动公告
type CampaignUpdateModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignAddress string    `json:"campaign_address" gorm:"uniqueIndex:idx_update_campaign_id;size:42;not null"`
	UpdateId        int       `json:"update_id" gorm:"uniqueIndex:idx_update_campaign_id;not null"`
	Title           string    `json:"title" gorm:"not null"`
	ContentHash     string    `json:"content_hash" gorm:"size:128;not null"`
	MilestoneId     int       `json:"milestone_id" gorm:"default:-1"`
	PostedAt        time.Time `json:"posted_at"`
}

// TableName 自定义表名
func (CampaignUpdateModel) TableName() string {
	return "campaign_update"
}
