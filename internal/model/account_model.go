package model

import (
	"time"
)

// AccountModel 原生币账户余额
type AccountModel struct {
	Id        int64     `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Address string `json:"address" gorm:"uniqueIndex;size:42;not null"`
	Balance string `json:"balance" gorm:"not null"` // wei
}

// TableName 自定义表名
func (AccountModel) TableName() string {
	return "account"
}
