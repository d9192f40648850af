package logic

import (
	"context"
	"errors"
	"time"

	"github.com/blues/cfs-escrow/internal/chain"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/model"
	"github.com/blues/cfs-escrow/internal/reward"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrManualClockDisabled 当前时钟不支持手动推进
var ErrManualClockDisabled = errors.New("clock source is not manual")

// AccountLogic 账户余额、测试网水龙头、手动时钟与贡献凭证
type AccountLogic struct {
	bank   *chain.Bank
	store  *Store
	clock  *chain.ManualClock // 非 manual 模式为 nil
	minter *reward.Minter
}

// NewAccountLogic 创建账户业务逻辑
func NewAccountLogic(bank *chain.Bank, store *Store, clock *chain.ManualClock, minter *reward.Minter) *AccountLogic {
	return &AccountLogic{bank: bank, store: store, clock: clock, minter: minter}
}

// Balance 账户余额
func (a *AccountLogic) Balance(addr common.Address) *uint256.Int {
	return a.bank.BalanceOf(addr)
}

// Fund 水龙头入账并持久化
func (a *AccountLogic) Fund(ctx context.Context, addr common.Address, amount *uint256.Int) (*uint256.Int, error) {
	if err := a.bank.Credit(addr, amount); err != nil {
		return nil, err
	}
	if err := a.store.SaveAccounts(ctx); err != nil {
		logger.Error("%v", err)
		return nil, err
	}
	logger.Info("Funded %s with %s wei", addr.Hex(), amount.Dec())
	return a.bank.BalanceOf(addr), nil
}

// AdvanceClock 推进手动时钟，返回推进后的时间
func (a *AccountLogic) AdvanceClock(d time.Duration) (time.Time, error) {
	if a.clock == nil {
		return time.Time{}, ErrManualClockDisabled
	}
	now := a.clock.Advance(d)
	logger.Info("Manual clock advanced by %s to %s", d, now.Format(time.RFC3339))
	return now, nil
}

// Rewards 地址持有的贡献凭证
func (a *AccountLogic) Rewards(ctx context.Context, addr common.Address) ([]model.RewardTokenModel, error) {
	if a.minter == nil {
		return []model.RewardTokenModel{}, nil
	}
	return a.minter.ListByContributor(ctx, addr)
}
