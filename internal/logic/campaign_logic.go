package logic

import (
	"context"
	"errors"

	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/metrics"
	"github.com/blues/cfs-escrow/internal/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CampaignLogic 活动业务逻辑：调用引擎，成功后持久化
type CampaignLogic struct {
	registry *registry.Registry
	store    *Store
}

// NewCampaignLogic 创建活动业务逻辑
func NewCampaignLogic(reg *registry.Registry, store *Store) *CampaignLogic {
	return &CampaignLogic{registry: reg, store: store}
}

// CreateCampaign 创建活动
func (l *CampaignLogic) CreateCampaign(ctx context.Context, p registry.CreateParams) (*escrow.Campaign, error) {
	c, err := l.registry.Create(p)
	if err != nil {
		logger.Warn("Rejected campaign %q from %s: %v", p.Name, p.Creator.Hex(), err)
		return nil, err
	}
	metrics.Escrow().SetCampaigns(l.registry.Count())
	if err := l.store.SaveCampaign(ctx, c); err != nil {
		logger.Error("%v", err)
		return nil, err
	}
	logger.Info("Created campaign %s (%s) by %s, cap %s wei", c.Address().Hex(), p.Name, p.Creator.Hex(), p.FundingCap.Dec())
	return c, nil
}

// GetCampaign 获取活动
func (l *CampaignLogic) GetCampaign(addr common.Address) (*escrow.Campaign, error) {
	return l.registry.Get(addr)
}

// Count 活动总数
func (l *CampaignLogic) Count() int {
	return l.registry.Count()
}

// ListCampaigns 分页获取活动摘要，返回总数
func (l *CampaignLogic) ListCampaigns(start, count int) ([]escrow.Summary, int) {
	return summaries(l.registry.List(start, count)), l.registry.Count()
}

// ListCampaignsByCreator 创建者的活动摘要
func (l *CampaignLogic) ListCampaignsByCreator(creator common.Address, start, count int) ([]escrow.Summary, int) {
	return summaries(l.registry.ListByCreator(creator, start, count)), l.registry.CountByCreator(creator)
}

func summaries(list []*escrow.Campaign) []escrow.Summary {
	out := make([]escrow.Summary, 0, len(list))
	for _, c := range list {
		out = append(out, c.Summary())
	}
	return out
}

// mutate 执行一次引擎操作，成功后保存快照。
// 转账失败时重新保存：转账期间活动锁已释放，并发保存可能写入了随后被回滚的状态。
func (l *CampaignLogic) mutate(ctx context.Context, addr common.Address, op string, fn func(c *escrow.Campaign) error) error {
	c, err := l.registry.Get(addr)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		if errors.Is(err, escrow.ErrTransferFailure) {
			logger.Error("%s on campaign %s failed: %v", op, addr.Hex(), err)
			if serr := l.store.SaveCampaign(context.WithoutCancel(ctx), c); serr != nil {
				logger.Error("Re-saving campaign %s after rollback failed: %v", addr.Hex(), serr)
			}
		} else {
			logger.Warn("%s on campaign %s rejected: %v", op, addr.Hex(), err)
		}
		return err
	}
	if err := l.store.SaveCampaign(ctx, c); err != nil {
		logger.Error("%s on campaign %s applied but not persisted: %v", op, addr.Hex(), err)
		return err
	}
	return nil
}

// Contribute 出资
func (l *CampaignLogic) Contribute(ctx context.Context, addr, sender common.Address, amount *uint256.Int) error {
	return l.mutate(ctx, addr, "contribute", func(c *escrow.Campaign) error {
		if err := c.Contribute(ctx, sender, amount); err != nil {
			return err
		}
		logger.Info("Contribution of %s wei from %s to campaign %s", amount.Dec(), sender.Hex(), addr.Hex())
		return nil
	})
}

// Finalize 结算
func (l *CampaignLogic) Finalize(ctx context.Context, addr common.Address) (escrow.FinalizeResult, error) {
	var res escrow.FinalizeResult
	err := l.mutate(ctx, addr, "finalize", func(c *escrow.Campaign) error {
		var err error
		res, err = c.Finalize(ctx)
		if err != nil {
			return err
		}
		logger.Info("Finalized campaign %s: successful=%t raised=%s rewards=%d failures=%d",
			addr.Hex(), res.Successful, res.TotalRaised.Dec(), res.RewardsIssued, res.RewardFailures)
		return nil
	})
	return res, err
}

// SetGovernance 开关里程碑投票
func (l *CampaignLogic) SetGovernance(ctx context.Context, addr, sender common.Address, enabled bool) error {
	return l.mutate(ctx, addr, "set governance", func(c *escrow.Campaign) error {
		return c.SetGovernance(sender, enabled)
	})
}

// CompleteMilestone 标记里程碑完成，开启治理时改为发起投票
func (l *CampaignLogic) CompleteMilestone(ctx context.Context, addr, sender common.Address, id int) error {
	return l.mutate(ctx, addr, "complete milestone", func(c *escrow.Campaign) error {
		return c.CompleteMilestone(sender, id)
	})
}

// StartVoting 发起里程碑投票
func (l *CampaignLogic) StartVoting(ctx context.Context, addr, sender common.Address, id int) error {
	return l.mutate(ctx, addr, "start voting", func(c *escrow.Campaign) error {
		return c.StartVoting(sender, id)
	})
}

// CastVote 投票，返回是否因全员投票而当场计票
func (l *CampaignLogic) CastVote(ctx context.Context, addr, voter common.Address, id int, support bool) (bool, error) {
	var resolved bool
	err := l.mutate(ctx, addr, "cast vote", func(c *escrow.Campaign) error {
		var err error
		resolved, err = c.CastVote(voter, id, support)
		return err
	})
	return resolved, err
}

// ResolveVote 计票
func (l *CampaignLogic) ResolveVote(ctx context.Context, addr common.Address, id int) (bool, error) {
	var approved bool
	err := l.mutate(ctx, addr, "resolve vote", func(c *escrow.Campaign) error {
		var err error
		approved, err = c.ResolveMilestoneVote(id)
		if err != nil {
			return err
		}
		logger.Info("Resolved vote on milestone %d of campaign %s: approved=%t", id, addr.Hex(), approved)
		return nil
	})
	return approved, err
}

// ReleaseMilestoneFunds 释放里程碑资金
func (l *CampaignLogic) ReleaseMilestoneFunds(ctx context.Context, addr common.Address, id int) (*uint256.Int, error) {
	var amount *uint256.Int
	err := l.mutate(ctx, addr, "release milestone", func(c *escrow.Campaign) error {
		var err error
		amount, err = c.ReleaseMilestoneFunds(ctx, id)
		if err != nil {
			return err
		}
		logger.Info("Released %s wei for milestone %d of campaign %s", amount.Dec(), id, addr.Hex())
		return nil
	})
	return amount, err
}

// ReleaseAllFunds 一次性释放
func (l *CampaignLogic) ReleaseAllFunds(ctx context.Context, addr, sender common.Address) (*uint256.Int, error) {
	var amount *uint256.Int
	err := l.mutate(ctx, addr, "release funds", func(c *escrow.Campaign) error {
		var err error
		amount, err = c.ReleaseAllFunds(ctx, sender)
		if err != nil {
			return err
		}
		logger.Info("Released %s wei from campaign %s", amount.Dec(), addr.Hex())
		return nil
	})
	return amount, err
}

// ClaimRefund 退款
func (l *CampaignLogic) ClaimRefund(ctx context.Context, addr, sender common.Address) (*uint256.Int, error) {
	var amount *uint256.Int
	err := l.mutate(ctx, addr, "claim refund", func(c *escrow.Campaign) error {
		var err error
		amount, err = c.ClaimRefund(ctx, sender)
		if err != nil {
			return err
		}
		logger.Info("Refunded %s wei to %s from campaign %s", amount.Dec(), sender.Hex(), addr.Hex())
		return nil
	})
	return amount, err
}

// PostUpdate 发布公告，milestoneID 为 -1 表示不关联
func (l *CampaignLogic) PostUpdate(ctx context.Context, addr, sender common.Address, title, contentHash string, milestoneID int) (escrow.Update, error) {
	var u escrow.Update
	err := l.mutate(ctx, addr, "post update", func(c *escrow.Campaign) error {
		var err error
		u, err = c.PostUpdate(sender, title, contentHash, milestoneID)
		return err
	})
	return u, err
}

// PendingFinalize 已过截止但未结算的活动
func (l *CampaignLogic) PendingFinalize() []common.Address {
	var out []common.Address
	for _, c := range l.registry.All() {
		if c.State() == escrow.StateEnded {
			out = append(out, c.Address())
		}
	}
	return out
}

// PendingVotes 投票期已过、等待计票的里程碑
func (l *CampaignLogic) PendingVotes() map[common.Address][]int {
	out := make(map[common.Address][]int)
	for _, c := range l.registry.All() {
		if ids := c.PendingVotes(); len(ids) > 0 {
			out[c.Address()] = ids
		}
	}
	return out
}
