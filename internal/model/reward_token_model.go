package model

import (
	"time"
)

// RewardTokenModel 贡献凭证，Id 即 token id，每个 (活动, 贡献者) 一枚
type RewardTokenModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignAddress string `json:"campaign_address" gorm:"uniqueIndex:idx_reward_campaign_contributor;size:42;not null"`
	Contributor     string `json:"contributor" gorm:"uniqueIndex:idx_reward_campaign_contributor;index;size:42;not null"`
	Amount          string `json:"amount" gorm:"not null"`
	CampaignName    string `json:"campaign_name"`
	Seq             uint64 `json:"seq"` // 活动内发放序号，从 1 开始
}

// TableName 自定义表名
func (RewardTokenModel) TableName() string {
	return "reward_token"
}
