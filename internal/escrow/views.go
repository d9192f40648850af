package escrow

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Summary 活动只读视图
type Summary struct {
	Address           common.Address
	Name              string
	Creator           common.Address
	Beneficiary       common.Address
	FundingCap        *uint256.Int
	TotalRaised       *uint256.Int
	Balance           *uint256.Int
	ReleasedAmount    *uint256.Int
	RefundedAmount    *uint256.Int
	CreatedAt         time.Time
	Deadline          time.Time
	Finalized         bool
	Successful        bool
	FundsWithdrawn    bool
	GovernanceEnabled bool
	State             State
	ContributorCount  int
	MilestoneCount    int
	UpdateCount       int
}

// Summary 返回当前状态快照
func (c *Campaign) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summary{
		Address:           c.address,
		Name:              c.name,
		Creator:           c.creator,
		Beneficiary:       c.beneficiary,
		FundingCap:        c.fundingCap.Clone(),
		TotalRaised:       c.ledger.TotalRaised(),
		Balance:           c.balance.Clone(),
		ReleasedAmount:    c.releasedAmount.Clone(),
		RefundedAmount:    c.ledger.Refunded(),
		CreatedAt:         c.createdAt,
		Deadline:          c.deadline,
		Finalized:         c.finalized,
		Successful:        c.successful,
		FundsWithdrawn:    c.fundsWithdrawn,
		GovernanceEnabled: c.governanceEnabled,
		State:             c.stateLocked(c.clock.Now()),
		ContributorCount:  c.ledger.ContributorCount(),
		MilestoneCount:    c.schedule.Len(),
		UpdateCount:       c.bulletin.Count(),
	}
}

// State 当前生命周期状态
func (c *Campaign) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(c.clock.Now())
}

// EscrowBalance 托管中的余额
func (c *Campaign) EscrowBalance() *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance.Clone()
}

// ContributionOf 地址的贡献记录
func (c *Campaign) ContributionOf(addr common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.ContributionOf(addr)
}

// Contributors 贡献者列表
func (c *Campaign) Contributors() []common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.Contributors()
}

// Milestones 全部里程碑
func (c *Campaign) Milestones() []Milestone {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schedule.All()
}

// Milestone 单个里程碑
func (c *Campaign) Milestone(id int) (Milestone, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.schedule.Get(id)
}

// VoteStatus 里程碑投票视图
type VoteStatus struct {
	MilestoneID      int
	Phase            VotePhase
	VotesFor         uint64
	VotesAgainst     uint64
	VotingDeadline   time.Time
	Resolved         bool
	Approved         bool
	ContributorCount int
	QuorumRequired   uint64
	HasVoted         bool
	Support          bool
}

// VoteOf 投票计数以及 voter 自己的投票情况，voter 可为零地址
func (c *Campaign) VoteOf(id int, voter common.Address) (VoteStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.governance.Get(id)
	if err != nil {
		return VoteStatus{}, err
	}
	support, voted := v.Ballot(voter)
	count := c.ledger.ContributorCount()
	return VoteStatus{
		MilestoneID:      id,
		Phase:            v.Phase(),
		VotesFor:         v.VotesFor,
		VotesAgainst:     v.VotesAgainst,
		VotingDeadline:   v.VotingDeadline,
		Resolved:         v.Resolved,
		Approved:         v.Approved,
		ContributorCount: count,
		QuorumRequired:   QuorumRequired(count),
		HasVoted:         voted,
		Support:          support,
	}, nil
}

// PendingVotes 投票已过截止但尚未计票的里程碑
func (c *Campaign) PendingVotes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.governanceEnabled {
		return nil
	}
	now := c.clock.Now()
	var ids []int
	for i := range c.governance.votes {
		v := &c.governance.votes[i]
		if !v.VotingDeadline.IsZero() && !v.Resolved && now.After(v.VotingDeadline) {
			ids = append(ids, i)
		}
	}
	return ids
}

// Updates 全部公告
func (c *Campaign) Updates() []Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bulletin.All()
}

// Update 按 ID 获取公告
func (c *Campaign) Update(id int) (Update, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bulletin.Get(id)
}

// UpdatesByMilestone 关联里程碑的公告
func (c *Campaign) UpdatesByMilestone(id int) []Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bulletin.ByMilestone(id)
}
