package reward

import (
	"context"
	"errors"
	"fmt"

	"github.com/blues/cfs-escrow/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyIssued 同一 (活动, 贡献者) 已发放过
	ErrAlreadyIssued = errors.New("reward already issued")
	// ErrBelowMinimum 贡献额低于发放门槛
	ErrBelowMinimum = errors.New("contribution below reward minimum")
)

// Minter 贡献凭证发放，凭证存于 reward_token 表
type Minter struct {
	db        *gorm.DB
	minAmount *uint256.Int
}

// NewMinter 创建发放器，minAmount 为 nil 或 0 时不设门槛
func NewMinter(db *gorm.DB, minAmount *uint256.Int) *Minter {
	if minAmount == nil {
		minAmount = new(uint256.Int)
	}
	return &Minter{db: db, minAmount: minAmount.Clone()}
}

// IssueReward 实现 escrow.RewardHook，返回凭证 id
func (m *Minter) IssueReward(ctx context.Context, campaign, contributor common.Address, amount *uint256.Int, campaignName string, seq uint64) (uint64, error) {
	if amount == nil || amount.Lt(m.minAmount) {
		return 0, fmt.Errorf("%w: %s < %s", ErrBelowMinimum, amountString(amount), m.minAmount.Dec())
	}

	token := model.RewardTokenModel{
		CampaignAddress: campaign.Hex(),
		Contributor:     contributor.Hex(),
		Amount:          amount.Dec(),
		CampaignName:    campaignName,
		Seq:             seq,
	}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.RewardTokenModel{}).
			Where("campaign_address = ? AND contributor = ?", token.CampaignAddress, token.Contributor).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyIssued
		}
		return tx.Create(&token).Error
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyIssued) {
			return 0, err
		}
		return 0, fmt.Errorf("保存贡献凭证失败: %w", err)
	}
	return uint64(token.Id), nil
}

// Get 按 token id 查询
func (m *Minter) Get(ctx context.Context, id uint64) (*model.RewardTokenModel, error) {
	var token model.RewardTokenModel
	if err := m.db.WithContext(ctx).First(&token, id).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// ListByContributor 贡献者持有的凭证
func (m *Minter) ListByContributor(ctx context.Context, contributor common.Address) ([]model.RewardTokenModel, error) {
	var tokens []model.RewardTokenModel
	err := m.db.WithContext(ctx).
		Where("contributor = ?", contributor.Hex()).
		Order("id ASC").
		Find(&tokens).Error
	return tokens, err
}

// ListByCampaign 活动发放的凭证
func (m *Minter) ListByCampaign(ctx context.Context, campaign common.Address) ([]model.RewardTokenModel, error) {
	var tokens []model.RewardTokenModel
	err := m.db.WithContext(ctx).
		Where("campaign_address = ?", campaign.Hex()).
		Order("seq ASC").
		Find(&tokens).Error
	return tokens, err
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
