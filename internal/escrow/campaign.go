package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Campaign 单个众筹活动的资金托管状态机。
// 每个公开方法在活动锁内原子执行；对外转账在释放锁之后进行，
// 此前状态已经更新，转账失败时重新加锁回滚。
type Campaign struct {
	mu sync.Mutex

	address     common.Address
	name        string
	creator     common.Address
	beneficiary common.Address
	fundingCap  *uint256.Int
	createdAt   time.Time
	deadline    time.Time

	finalized         bool
	successful        bool
	fundsWithdrawn    bool
	governanceEnabled bool
	releasedAmount    *uint256.Int
	balance           *uint256.Int

	ledger     *Ledger
	schedule   *Schedule
	governance *Governance
	bulletin   Bulletin

	seq     uint64
	clock   Clock
	bank    Transferer
	reward  RewardHook
	emitter Emitter
}

// New 校验参数并创建活动，校验失败时不产生任何状态
func New(params Params, deps Deps) (*Campaign, error) {
	if deps.Bank == nil {
		return nil, errors.New("escrow: bank not configured")
	}
	if isZeroAddress(params.Address) {
		return nil, fail(ErrInvalidParameter, "campaign address required")
	}
	if isZeroAddress(params.Beneficiary) {
		return nil, fail(ErrInvalidParameter, "invalid beneficiary")
	}
	if isZeroAddress(params.Creator) {
		return nil, fail(ErrInvalidParameter, "invalid creator")
	}
	if params.Duration <= 0 {
		return nil, fail(ErrInvalidParameter, "duration must be positive")
	}
	if params.FundingCap == nil || params.FundingCap.IsZero() {
		return nil, fail(ErrInvalidParameter, "funding cap must be positive")
	}
	schedule, err := NewSchedule(params.FundingCap, params.Milestones)
	if err != nil {
		return nil, err
	}

	c := newCampaign(params.Address, deps)
	now := c.clock.Now()
	c.name = params.Name
	c.creator = params.Creator
	c.beneficiary = params.Beneficiary
	c.fundingCap = params.FundingCap.Clone()
	c.createdAt = now
	c.deadline = now.Add(params.Duration)
	c.governanceEnabled = params.GovernanceEnabled
	c.ledger = NewLedger(params.FundingCap)
	c.schedule = schedule
	c.governance = NewGovernance(schedule.Len())

	var buf events
	c.record(&buf, EventCampaignCreated, map[string]string{
		"name":        c.name,
		"creator":     c.creator.Hex(),
		"beneficiary": c.beneficiary.Hex(),
		"fundingCap":  formatAmount(c.fundingCap),
		"deadline":    c.deadline.UTC().Format(time.RFC3339),
		"milestones":  formatIndex(schedule.Len()),
		"governance":  formatBool(c.governanceEnabled),
	})
	for _, m := range schedule.items {
		c.record(&buf, EventMilestoneAdded, map[string]string{
			"milestoneId": formatIndex(m.ID),
			"description": m.Description,
			"amount":      formatAmount(m.Amount),
		})
	}
	c.flush(buf)
	return c, nil
}

func newCampaign(addr common.Address, deps Deps) *Campaign {
	c := &Campaign{
		address:        addr,
		releasedAmount: new(uint256.Int),
		balance:        new(uint256.Int),
		clock:          deps.Clock,
		bank:           deps.Bank,
		reward:         deps.Reward,
		emitter:        deps.Emitter,
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.emitter == nil {
		c.emitter = NoopEmitter{}
	}
	return c
}

// Address 活动地址
func (c *Campaign) Address() common.Address { return c.address }

// Creator 活动创建者
func (c *Campaign) Creator() common.Address { return c.creator }

// Deadline 募资截止时间
func (c *Campaign) Deadline() time.Time { return c.deadline }

func (c *Campaign) stateLocked(now time.Time) State {
	switch {
	case c.finalized && c.successful:
		return StateSuccessful
	case c.finalized:
		return StateFailed
	case now.Before(c.deadline):
		return StateOpen
	default:
		return StateEnded
	}
}

func (c *Campaign) requireCreator(sender common.Address) error {
	if sender != c.creator {
		return fail(ErrUnauthorized, "caller is not the campaign creator")
	}
	return nil
}

func (c *Campaign) requireSuccessful() error {
	if !c.finalized {
		return fail(ErrPhaseViolation, "campaign not finalized")
	}
	if !c.successful {
		return fail(ErrPhaseViolation, "campaign did not reach its funding cap")
	}
	return nil
}

// Contribute 募资期内贡献，资金在记账前从贡献者账户划入托管
func (c *Campaign) Contribute(ctx context.Context, sender common.Address, amount *uint256.Int) error {
	c.mu.Lock()
	var buf events
	err := c.contributeLocked(ctx, sender, amount, &buf)
	c.mu.Unlock()
	c.flush(buf)
	return err
}

func (c *Campaign) contributeLocked(ctx context.Context, sender common.Address, amount *uint256.Int, buf *events) error {
	if isZeroAddress(sender) {
		return fail(ErrInvalidParameter, "invalid contributor")
	}
	if c.finalized {
		return fail(ErrPhaseViolation, "campaign already finalized")
	}
	if !c.clock.Now().Before(c.deadline) {
		return fail(ErrPhaseViolation, "campaign deadline has passed")
	}
	if err := c.ledger.checkContribution(amount); err != nil {
		return err
	}
	if err := c.bank.Transfer(ctx, sender, c.address, amount); err != nil {
		return fmt.Errorf("%w: collect contribution: %v", ErrTransferFailure, err)
	}
	if err := c.ledger.RecordContribution(sender, amount); err != nil {
		return err
	}
	c.balance = new(uint256.Int).Add(c.balance, amount)
	c.record(buf, EventContributionReceived, map[string]string{
		"contributor": sender.Hex(),
		"amount":      formatAmount(amount),
		"totalRaised": formatAmount(c.ledger.totalRaised),
	})
	return nil
}

// FinalizeResult 结算结果
type FinalizeResult struct {
	Successful     bool
	TotalRaised    *uint256.Int
	RewardsIssued  int
	RewardFailures int
}

type rewardTarget struct {
	contributor common.Address
	amount      *uint256.Int
}

// Finalize 截止后任何人可调用一次，锁定成功或失败；
// 成功时为每位贡献者尽力发放凭证，单个失败只产生事件
func (c *Campaign) Finalize(ctx context.Context) (FinalizeResult, error) {
	c.mu.Lock()
	var buf events
	if c.finalized {
		c.mu.Unlock()
		return FinalizeResult{}, fail(ErrPhaseViolation, "campaign already finalized")
	}
	if c.clock.Now().Before(c.deadline) {
		c.mu.Unlock()
		return FinalizeResult{}, fail(ErrPhaseViolation, "campaign deadline not reached")
	}
	c.finalized = true
	c.successful = !c.ledger.totalRaised.Lt(c.fundingCap)
	result := FinalizeResult{Successful: c.successful, TotalRaised: c.ledger.TotalRaised()}
	c.record(&buf, EventCampaignFinalized, map[string]string{
		"successful":  formatBool(c.successful),
		"totalRaised": formatAmount(c.ledger.totalRaised),
	})
	var targets []rewardTarget
	if c.successful && c.reward != nil {
		for _, addr := range c.ledger.contributors {
			targets = append(targets, rewardTarget{contributor: addr, amount: c.ledger.ContributionOf(addr)})
		}
	}
	c.mu.Unlock()
	c.flush(buf)

	// 结算只发生一次，调用方断开也要把凭证发完
	rewardCtx := context.WithoutCancel(ctx)
	for i, t := range targets {
		tokenID, err := c.issueReward(rewardCtx, t, uint64(i+1))
		c.mu.Lock()
		var rbuf events
		if err != nil {
			result.RewardFailures++
			c.record(&rbuf, EventRewardFailed, map[string]string{
				"contributor": t.contributor.Hex(),
				"amount":      formatAmount(t.amount),
				"reason":      err.Error(),
			})
		} else {
			result.RewardsIssued++
			c.record(&rbuf, EventRewardIssued, map[string]string{
				"contributor": t.contributor.Hex(),
				"amount":      formatAmount(t.amount),
				"tokenId":     fmt.Sprintf("%d", tokenID),
			})
		}
		c.mu.Unlock()
		c.flush(rbuf)
	}
	return result, nil
}

// issueReward 隔离单次凭证发放，panic 也按失败处理
func (c *Campaign) issueReward(ctx context.Context, t rewardTarget, seq uint64) (tokenID uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reward hook panic: %v", r)
		}
	}()
	return c.reward.IssueReward(ctx, c.address, t.contributor, t.amount, c.name, seq)
}

// SetGovernance 创建者在结算前开关投票治理
func (c *Campaign) SetGovernance(sender common.Address, enabled bool) error {
	c.mu.Lock()
	var buf events
	err := func() error {
		if err := c.requireCreator(sender); err != nil {
			return err
		}
		if c.finalized {
			return fail(ErrPhaseViolation, "governance cannot change after finalization")
		}
		c.governanceEnabled = enabled
		c.record(&buf, EventGovernanceChanged, map[string]string{"enabled": formatBool(enabled)})
		return nil
	}()
	c.mu.Unlock()
	c.flush(buf)
	return err
}

// CompleteMilestone 创建者标记里程碑完成；启用治理时改为发起投票
func (c *Campaign) CompleteMilestone(sender common.Address, id int) error {
	c.mu.Lock()
	var buf events
	err := func() error {
		if err := c.requireCreator(sender); err != nil {
			return err
		}
		if err := c.requireSuccessful(); err != nil {
			return err
		}
		if c.governanceEnabled {
			return c.startVotingLocked(id, &buf)
		}
		now := c.clock.Now()
		if err := c.schedule.MarkCompleted(id, now); err != nil {
			return err
		}
		c.record(&buf, EventMilestoneCompleted, map[string]string{
			"milestoneId": formatIndex(id),
			"via":         "creator",
		})
		return nil
	}()
	c.mu.Unlock()
	c.flush(buf)
	return err
}

// StartVoting 创建者为里程碑发起投票
func (c *Campaign) StartVoting(sender common.Address, id int) error {
	c.mu.Lock()
	var buf events
	err := func() error {
		if err := c.requireCreator(sender); err != nil {
			return err
		}
		if err := c.requireSuccessful(); err != nil {
			return err
		}
		if !c.governanceEnabled {
			return fail(ErrPhaseViolation, "governance not enabled")
		}
		return c.startVotingLocked(id, &buf)
	}()
	c.mu.Unlock()
	c.flush(buf)
	return err
}

func (c *Campaign) startVotingLocked(id int, buf *events) error {
	m, err := c.schedule.lookup(id)
	if err != nil {
		return err
	}
	if m.Completed {
		return fail(ErrAlreadyDone, "milestone %d already completed", id)
	}
	deadline, err := c.governance.Start(id, c.clock.Now())
	if err != nil {
		return err
	}
	c.record(buf, EventVoteStarted, map[string]string{
		"milestoneId":    formatIndex(id),
		"votingDeadline": deadline.UTC().Format(time.RFC3339),
	})
	return nil
}

// CastVote 贡献者对里程碑投票，全部贡献者投完后自动计票
func (c *Campaign) CastVote(voter common.Address, id int, support bool) (resolved bool, err error) {
	c.mu.Lock()
	var buf events
	resolved, err = func() (bool, error) {
		if !c.governanceEnabled {
			return false, fail(ErrPhaseViolation, "governance not enabled")
		}
		if err := c.requireSuccessful(); err != nil {
			return false, err
		}
		if c.ledger.ContributionOf(voter).IsZero() {
			return false, fail(ErrUnauthorized, "only contributors can vote")
		}
		m, err := c.schedule.lookup(id)
		if err != nil {
			return false, err
		}
		if m.Completed {
			return false, fail(ErrPhaseViolation, "milestone %d already completed", id)
		}
		now := c.clock.Now()
		count := c.ledger.ContributorCount()
		allVoted, err := c.governance.Cast(id, voter, support, now, count)
		if err != nil {
			return false, err
		}
		c.record(&buf, EventVoteCast, map[string]string{
			"milestoneId": formatIndex(id),
			"voter":       voter.Hex(),
			"support":     formatBool(support),
		})
		if !allVoted {
			return false, nil
		}
		if _, err := c.resolveLocked(id, now, &buf); err != nil {
			return false, err
		}
		return true, nil
	}()
	c.mu.Unlock()
	c.flush(buf)
	return resolved, err
}

// ResolveMilestoneVote 任何人可在投票截止或全员投票后计票
func (c *Campaign) ResolveMilestoneVote(id int) (approved bool, err error) {
	c.mu.Lock()
	var buf events
	approved, err = func() (bool, error) {
		if !c.governanceEnabled {
			return false, fail(ErrPhaseViolation, "governance not enabled")
		}
		return c.resolveLocked(id, c.clock.Now(), &buf)
	}()
	c.mu.Unlock()
	c.flush(buf)
	return approved, err
}

func (c *Campaign) resolveLocked(id int, now time.Time, buf *events) (bool, error) {
	approved, err := c.governance.Resolve(id, now, c.ledger.ContributorCount())
	if err != nil {
		return false, err
	}
	v := &c.governance.votes[id]
	c.record(buf, EventVoteResolved, map[string]string{
		"milestoneId":  formatIndex(id),
		"approved":     formatBool(approved),
		"votesFor":     fmt.Sprintf("%d", v.VotesFor),
		"votesAgainst": fmt.Sprintf("%d", v.VotesAgainst),
	})
	if approved {
		if err := c.schedule.MarkCompleted(id, now); err != nil {
			return false, err
		}
		c.record(buf, EventMilestoneCompleted, map[string]string{
			"milestoneId": formatIndex(id),
			"via":         "vote",
		})
	}
	return approved, nil
}

// ReleaseMilestoneFunds 任何人可触发，资金只会转给固定受益人
func (c *Campaign) ReleaseMilestoneFunds(ctx context.Context, id int) (*uint256.Int, error) {
	c.mu.Lock()
	amount, err := c.prepareMilestoneRelease(id)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := c.bank.Transfer(ctx, c.address, c.beneficiary, amount); err != nil {
		c.mu.Lock()
		c.schedule.unmarkReleased(id)
		c.balance = new(uint256.Int).Add(c.balance, amount)
		c.releasedAmount = new(uint256.Int).Sub(c.releasedAmount, amount)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: release milestone %d: %v", ErrTransferFailure, id, err)
	}

	c.mu.Lock()
	var buf events
	c.record(&buf, EventMilestoneFundsReleased, map[string]string{
		"milestoneId":    formatIndex(id),
		"beneficiary":    c.beneficiary.Hex(),
		"amount":         formatAmount(amount),
		"releasedAmount": formatAmount(c.releasedAmount),
	})
	c.mu.Unlock()
	c.flush(buf)
	return amount, nil
}

func (c *Campaign) prepareMilestoneRelease(id int) (*uint256.Int, error) {
	if err := c.requireSuccessful(); err != nil {
		return nil, err
	}
	m, err := c.schedule.lookup(id)
	if err != nil {
		return nil, err
	}
	if m.FundsReleased {
		return nil, fail(ErrAlreadyDone, "milestone %d funds already released", id)
	}
	if c.governanceEnabled {
		v := &c.governance.votes[id]
		if !v.Resolved || !v.Approved {
			return nil, fail(ErrPhaseViolation, "milestone %d not approved by vote", id)
		}
	}
	if c.balance.Lt(m.Amount) {
		return nil, fail(ErrLimitExceeded, "escrow balance %s below milestone amount %s", c.balance.Dec(), m.Amount.Dec())
	}
	amount, err := c.schedule.MarkReleased(id, c.clock.Now())
	if err != nil {
		return nil, err
	}
	c.balance = new(uint256.Int).Sub(c.balance, amount)
	c.releasedAmount = new(uint256.Int).Add(c.releasedAmount, amount)
	return amount, nil
}

// ReleaseAllFunds 无里程碑时创建者一次性释放全部托管资金
func (c *Campaign) ReleaseAllFunds(ctx context.Context, sender common.Address) (*uint256.Int, error) {
	c.mu.Lock()
	amount, err := func() (*uint256.Int, error) {
		if err := c.requireCreator(sender); err != nil {
			return nil, err
		}
		if err := c.requireSuccessful(); err != nil {
			return nil, err
		}
		if c.schedule.Len() > 0 {
			return nil, fail(ErrPhaseViolation, "campaign has milestones, release per milestone")
		}
		if c.fundsWithdrawn {
			return nil, fail(ErrAlreadyDone, "funds already released")
		}
		amount := c.balance.Clone()
		c.fundsWithdrawn = true
		c.balance = new(uint256.Int)
		c.releasedAmount = new(uint256.Int).Add(c.releasedAmount, amount)
		return amount, nil
	}()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := c.bank.Transfer(ctx, c.address, c.beneficiary, amount); err != nil {
		c.mu.Lock()
		c.fundsWithdrawn = false
		c.balance = new(uint256.Int).Add(c.balance, amount)
		c.releasedAmount = new(uint256.Int).Sub(c.releasedAmount, amount)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: release funds: %v", ErrTransferFailure, err)
	}

	c.mu.Lock()
	var buf events
	c.record(&buf, EventFundsReleased, map[string]string{
		"beneficiary": c.beneficiary.Hex(),
		"amount":      formatAmount(amount),
	})
	c.mu.Unlock()
	c.flush(buf)
	return amount, nil
}

// WithdrawFunds ReleaseAllFunds 的别名
func (c *Campaign) WithdrawFunds(ctx context.Context, sender common.Address) (*uint256.Int, error) {
	return c.ReleaseAllFunds(ctx, sender)
}

// ClaimRefund 活动失败后贡献者领取退款，记录先清零再转账
func (c *Campaign) ClaimRefund(ctx context.Context, sender common.Address) (*uint256.Int, error) {
	c.mu.Lock()
	amount, err := func() (*uint256.Int, error) {
		if !c.finalized {
			return nil, fail(ErrPhaseViolation, "campaign not finalized")
		}
		if c.successful {
			return nil, fail(ErrPhaseViolation, "campaign was successful, refunds unavailable")
		}
		amount, err := c.ledger.takeRefund(sender)
		if err != nil {
			return nil, err
		}
		if c.balance.Lt(amount) {
			c.ledger.restoreRefund(sender, amount)
			return nil, fail(ErrLimitExceeded, "escrow balance %s below refund %s", c.balance.Dec(), amount.Dec())
		}
		c.balance = new(uint256.Int).Sub(c.balance, amount)
		return amount, nil
	}()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := c.bank.Transfer(ctx, c.address, sender, amount); err != nil {
		c.mu.Lock()
		c.ledger.restoreRefund(sender, amount)
		c.balance = new(uint256.Int).Add(c.balance, amount)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: refund: %v", ErrTransferFailure, err)
	}

	c.mu.Lock()
	var buf events
	c.record(&buf, EventRefundIssued, map[string]string{
		"contributor": sender.Hex(),
		"amount":      formatAmount(amount),
	})
	c.mu.Unlock()
	c.flush(buf)
	return amount, nil
}

// PostUpdate 创建者发布公告，milestoneID 为 -1 表示不关联里程碑
func (c *Campaign) PostUpdate(sender common.Address, title, contentHash string, milestoneID int) (Update, error) {
	c.mu.Lock()
	var buf events
	u, err := func() (Update, error) {
		if err := c.requireCreator(sender); err != nil {
			return Update{}, err
		}
		if milestoneID < -1 {
			return Update{}, fail(ErrInvalidParameter, "invalid milestone id %d", milestoneID)
		}
		if milestoneID >= 0 {
			if _, err := c.schedule.lookup(milestoneID); err != nil {
				return Update{}, err
			}
		}
		u, err := c.bulletin.post(title, contentHash, milestoneID, c.clock.Now())
		if err != nil {
			return Update{}, err
		}
		c.record(&buf, EventUpdatePosted, map[string]string{
			"updateId":    formatIndex(u.ID),
			"title":       u.Title,
			"contentHash": u.ContentHash,
			"milestoneId": formatIndex(u.MilestoneID),
		})
		return u, nil
	}()
	c.mu.Unlock()
	c.flush(buf)
	return u, err
}
