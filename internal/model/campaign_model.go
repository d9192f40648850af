package model

import (
	"time"
)

// CampaignModel 众筹活动，Snapshot 保存引擎完整状态，其余列供查询
type CampaignModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address     string `json:"address" gorm:"uniqueIndex;size:42;not null"`
	Nonce       uint64 `json:"nonce" gorm:"not null"` // 工厂派生序号，恢复时按此排序
	Name        string `json:"name"`
	Creator     string `json:"creator" gorm:"index;size:42;not null"`
	Beneficiary string `json:"beneficiary" gorm:"size:42;not null"`

	// 金额均为 wei 十进制字符串
	FundingCap  string `json:"funding_cap" gorm:"not null"`
	TotalRaised string `json:"total_raised" gorm:"default:'0'"`
	Balance     string `json:"balance" gorm:"default:'0'"`

	Deadline          time.Time     `json:"deadline" gorm:"index"`
	State             CampaignState `json:"state" gorm:"index;default:'open'"`
	Finalized         bool          `json:"finalized" gorm:"index"`
	Successful        bool          `json:"successful"`
	GovernanceEnabled bool          `json:"governance_enabled"`
	MilestoneCount    int           `json:"milestone_count"`

	Snapshot string `json:"-" gorm:"type:text;not null"`
}

// CampaignState 活动状态
type CampaignState string

const (
	CampaignStateOpen       CampaignState = "open"       // 募资中
	CampaignStateEnded      CampaignState = "ended"      // 待结算
	CampaignStateSuccessful CampaignState = "successful" // 成功
	CampaignStateFailed     CampaignState = "failed"     // 失败
)

// TableName 自定义表名
func (CampaignModel) TableName() string {
	return "campaign"
}
