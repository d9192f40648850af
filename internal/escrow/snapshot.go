package escrow

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Snapshot 活动完整状态的可序列化形式，金额使用十进制字符串，时间为 Unix 纳秒
type Snapshot struct {
	Address           string              `json:"address"`
	Name              string              `json:"name"`
	Creator           string              `json:"creator"`
	Beneficiary       string              `json:"beneficiary"`
	FundingCap        string              `json:"fundingCap"`
	CreatedAt         int64               `json:"createdAt"`
	Deadline          int64               `json:"deadline"`
	Finalized         bool                `json:"finalized"`
	Successful        bool                `json:"successful"`
	FundsWithdrawn    bool                `json:"fundsWithdrawn"`
	GovernanceEnabled bool                `json:"governanceEnabled"`
	HasReward         bool                `json:"hasReward"`
	TotalRaised       string              `json:"totalRaised"`
	RefundedAmount    string              `json:"refundedAmount"`
	ReleasedAmount    string              `json:"releasedAmount"`
	Balance           string              `json:"balance"`
	Seq               uint64              `json:"seq"`
	Contributions     []ContributionEntry `json:"contributions"`
	Milestones        []MilestoneSnapshot `json:"milestones"`
	Updates           []UpdateSnapshot    `json:"updates"`
}

// ContributionEntry 单个贡献者记录
type ContributionEntry struct {
	Address  string `json:"address"`
	Amount   string `json:"amount"`
	Refunded bool   `json:"refunded"`
}

// MilestoneSnapshot 里程碑及其投票
type MilestoneSnapshot struct {
	Description    string          `json:"description"`
	Amount         string          `json:"amount"`
	Completed      bool            `json:"completed"`
	FundsReleased  bool            `json:"fundsReleased"`
	CompletedAt    int64           `json:"completedAt,omitempty"`
	ReleasedAt     int64           `json:"releasedAt,omitempty"`
	VotingDeadline int64           `json:"votingDeadline,omitempty"`
	Resolved       bool            `json:"resolved"`
	Approved       bool            `json:"approved"`
	Ballots        map[string]bool `json:"ballots,omitempty"`
}

// UpdateSnapshot 公告
type UpdateSnapshot struct {
	Title       string `json:"title"`
	ContentHash string `json:"contentHash"`
	MilestoneID int    `json:"milestoneId"`
	PostedAt    int64  `json:"postedAt"`
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeOrZero(nsec int64) time.Time {
	if nsec == 0 {
		return time.Time{}
	}
	return time.Unix(0, nsec).UTC()
}

// Snapshot 导出活动状态
func (c *Campaign) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Address:           c.address.Hex(),
		Name:              c.name,
		Creator:           c.creator.Hex(),
		Beneficiary:       c.beneficiary.Hex(),
		FundingCap:        c.fundingCap.Dec(),
		CreatedAt:         unixOrZero(c.createdAt),
		Deadline:          unixOrZero(c.deadline),
		Finalized:         c.finalized,
		Successful:        c.successful,
		FundsWithdrawn:    c.fundsWithdrawn,
		GovernanceEnabled: c.governanceEnabled,
		HasReward:         c.reward != nil,
		TotalRaised:       c.ledger.totalRaised.Dec(),
		RefundedAmount:    c.ledger.refunded.Dec(),
		ReleasedAmount:    c.releasedAmount.Dec(),
		Balance:           c.balance.Dec(),
		Seq:               c.seq,
	}
	for _, addr := range c.ledger.contributors {
		s.Contributions = append(s.Contributions, ContributionEntry{
			Address:  addr.Hex(),
			Amount:   c.ledger.contributions[addr].Dec(),
			Refunded: c.ledger.refundedBy[addr],
		})
	}
	for i, m := range c.schedule.items {
		v := &c.governance.votes[i]
		ms := MilestoneSnapshot{
			Description:    m.Description,
			Amount:         m.Amount.Dec(),
			Completed:      m.Completed,
			FundsReleased:  m.FundsReleased,
			CompletedAt:    unixOrZero(m.CompletedAt),
			ReleasedAt:     unixOrZero(m.ReleasedAt),
			VotingDeadline: unixOrZero(v.VotingDeadline),
			Resolved:       v.Resolved,
			Approved:       v.Approved,
		}
		if len(v.ballots) > 0 {
			ms.Ballots = make(map[string]bool, len(v.ballots))
			for voter, support := range v.ballots {
				ms.Ballots[voter.Hex()] = support
			}
		}
		s.Milestones = append(s.Milestones, ms)
	}
	for _, u := range c.bulletin.updates {
		s.Updates = append(s.Updates, UpdateSnapshot{
			Title:       u.Title,
			ContentHash: u.ContentHash,
			MilestoneID: u.MilestoneID,
			PostedAt:    unixOrZero(u.PostedAt),
		})
	}
	return s
}

func parseAmount(field, v string) (*uint256.Int, error) {
	if v == "" {
		return new(uint256.Int), nil
	}
	n, err := uint256.FromDecimal(v)
	if err != nil {
		return nil, fmt.Errorf("escrow: snapshot %s: %w", field, err)
	}
	return n, nil
}

// Restore 从快照重建活动，不发送事件
func Restore(s Snapshot, deps Deps) (*Campaign, error) {
	if deps.Bank == nil {
		return nil, fmt.Errorf("escrow: bank not configured")
	}
	if !common.IsHexAddress(s.Address) {
		return nil, fmt.Errorf("escrow: snapshot address %q invalid", s.Address)
	}
	fundingCap, err := parseAmount("fundingCap", s.FundingCap)
	if err != nil {
		return nil, err
	}
	released, err := parseAmount("releasedAmount", s.ReleasedAmount)
	if err != nil {
		return nil, err
	}
	balance, err := parseAmount("balance", s.Balance)
	if err != nil {
		return nil, err
	}
	totalRaised, err := parseAmount("totalRaised", s.TotalRaised)
	if err != nil {
		return nil, err
	}
	refunded, err := parseAmount("refundedAmount", s.RefundedAmount)
	if err != nil {
		return nil, err
	}

	c := newCampaign(common.HexToAddress(s.Address), deps)
	c.name = s.Name
	c.creator = common.HexToAddress(s.Creator)
	c.beneficiary = common.HexToAddress(s.Beneficiary)
	c.fundingCap = fundingCap
	c.createdAt = timeOrZero(s.CreatedAt)
	c.deadline = timeOrZero(s.Deadline)
	c.finalized = s.Finalized
	c.successful = s.Successful
	c.fundsWithdrawn = s.FundsWithdrawn
	c.governanceEnabled = s.GovernanceEnabled
	if !s.HasReward {
		c.reward = nil
	}
	c.releasedAmount = released
	c.balance = balance
	c.seq = s.Seq

	c.ledger = NewLedger(fundingCap)
	c.ledger.totalRaised = totalRaised
	c.ledger.refunded = refunded
	for _, entry := range s.Contributions {
		amount, err := parseAmount("contribution", entry.Amount)
		if err != nil {
			return nil, err
		}
		addr := common.HexToAddress(entry.Address)
		c.ledger.contributors = append(c.ledger.contributors, addr)
		c.ledger.contributions[addr] = amount
		if entry.Refunded {
			c.ledger.refundedBy[addr] = true
		}
	}

	specs := make([]MilestoneSpec, 0, len(s.Milestones))
	for _, ms := range s.Milestones {
		amount, err := parseAmount("milestone", ms.Amount)
		if err != nil {
			return nil, err
		}
		specs = append(specs, MilestoneSpec{Description: ms.Description, Amount: amount})
	}
	schedule, err := NewSchedule(fundingCap, specs)
	if err != nil {
		return nil, err
	}
	c.schedule = schedule
	c.governance = NewGovernance(schedule.Len())
	for i, ms := range s.Milestones {
		m := &c.schedule.items[i]
		m.Completed = ms.Completed
		m.FundsReleased = ms.FundsReleased
		m.CompletedAt = timeOrZero(ms.CompletedAt)
		m.ReleasedAt = timeOrZero(ms.ReleasedAt)
		v := &c.governance.votes[i]
		v.VotingDeadline = timeOrZero(ms.VotingDeadline)
		v.Resolved = ms.Resolved
		v.Approved = ms.Approved
		for voter, support := range ms.Ballots {
			v.ballots[common.HexToAddress(voter)] = support
			if support {
				v.VotesFor++
			} else {
				v.VotesAgainst++
			}
		}
	}
	for i, us := range s.Updates {
		c.bulletin.updates = append(c.bulletin.updates, Update{
			ID:          i,
			Title:       us.Title,
			ContentHash: us.ContentHash,
			MilestoneID: us.MilestoneID,
			PostedAt:    timeOrZero(us.PostedAt),
		})
	}
	return c, nil
}
