package logic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/blues/cfs-escrow/internal/chain"
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/model"
	"github.com/blues/cfs-escrow/internal/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 活动快照与账户余额的持久化
type Store struct {
	mu       sync.Mutex // 串行化快照写入，后写入的一定是更新的状态
	db       *gorm.DB
	bank     *chain.Bank
	registry *registry.Registry
}

// NewStore 创建持久化层
func NewStore(db *gorm.DB, bank *chain.Bank, reg *registry.Registry) *Store {
	return &Store{db: db, bank: bank, registry: reg}
}

// SaveCampaign 在一个事务里写入活动快照和变动过的账户
func (s *Store) SaveCampaign(ctx context.Context, c *escrow.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := c.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("序列化活动快照失败: %w", err)
	}
	nonce, _ := s.registry.NonceOf(c.Address())
	row := model.CampaignModel{
		Address:           snap.Address,
		Nonce:             nonce,
		Name:              snap.Name,
		Creator:           snap.Creator,
		Beneficiary:       snap.Beneficiary,
		FundingCap:        snap.FundingCap,
		TotalRaised:       snap.TotalRaised,
		Balance:           snap.Balance,
		Deadline:          c.Deadline(),
		State:             model.CampaignState(c.State()),
		Finalized:         snap.Finalized,
		Successful:        snap.Successful,
		GovernanceEnabled: snap.GovernanceEnabled,
		MilestoneCount:    len(snap.Milestones),
		Snapshot:          string(data),
	}

	dirty := s.bank.Dirty()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"updated_at", "total_raised", "balance", "state", "finalized",
				"successful", "governance_enabled", "snapshot",
			}),
		}).Create(&row).Error; err != nil {
			return err
		}
		return saveAccounts(tx, dirty)
	})
	if err != nil {
		s.remark(dirty)
		return fmt.Errorf("保存活动快照失败: %w", err)
	}
	return nil
}

// SaveAccounts 只写入变动过的账户
func (s *Store) SaveAccounts(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dirty := s.bank.Dirty()
	if len(dirty) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveAccounts(tx, dirty)
	}); err != nil {
		s.remark(dirty)
		return fmt.Errorf("保存账户余额失败: %w", err)
	}
	return nil
}

func (s *Store) remark(dirty map[common.Address]*uint256.Int) {
	addrs := make([]common.Address, 0, len(dirty))
	for addr := range dirty {
		addrs = append(addrs, addr)
	}
	s.bank.MarkDirty(addrs...)
}

func saveAccounts(tx *gorm.DB, dirty map[common.Address]*uint256.Int) error {
	for addr, balance := range dirty {
		account := model.AccountModel{Address: addr.Hex(), Balance: balance.Dec()}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at", "balance"}),
		}).Create(&account).Error; err != nil {
			return err
		}
	}
	return nil
}

// Load 启动时恢复账户余额与全部活动，返回恢复的活动数
func (s *Store) Load(ctx context.Context, deps escrow.Deps) (int, error) {
	var accounts []model.AccountModel
	if err := s.db.WithContext(ctx).Find(&accounts).Error; err != nil {
		return 0, fmt.Errorf("加载账户失败: %w", err)
	}
	for _, a := range accounts {
		balance, err := uint256.FromDecimal(a.Balance)
		if err != nil {
			return 0, fmt.Errorf("account %s has invalid balance %q: %w", a.Address, a.Balance, err)
		}
		s.bank.Load(common.HexToAddress(a.Address), balance)
	}

	var rows []model.CampaignModel
	if err := s.db.WithContext(ctx).Order("nonce ASC").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("加载活动失败: %w", err)
	}
	for _, row := range rows {
		var snap escrow.Snapshot
		if err := json.Unmarshal([]byte(row.Snapshot), &snap); err != nil {
			return 0, fmt.Errorf("campaign %s has corrupt snapshot: %w", row.Address, err)
		}
		c, err := escrow.Restore(snap, deps)
		if err != nil {
			return 0, fmt.Errorf("failed to restore campaign %s: %w", row.Address, err)
		}
		if err := s.registry.Restore(c); err != nil {
			return 0, err
		}
	}
	logger.Info("Restored %d accounts and %d campaigns", len(accounts), len(rows))
	return len(rows), nil
}
