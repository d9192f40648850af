package escrow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	testCampaign    = newTestAddress(0xC0)
	testCreator     = newTestAddress(0xA0)
	testBeneficiary = newTestAddress(0xB0)
	alice           = newTestAddress(0x01)
	bob             = newTestAddress(0x02)
	carol           = newTestAddress(0x03)
	dave            = newTestAddress(0x04)
)

func newTestAddress(fill byte) common.Address {
	return common.BytesToAddress(bytes.Repeat([]byte{fill}, common.AddressLength))
}

func eth(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(1_000_000_000_000_000_000))
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var errRejected = errors.New("recipient rejected transfer")

// fakeBank 内存账户，可注入收款回调与失败
type fakeBank struct {
	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
	onCredit map[common.Address]func()
	failTo   map[common.Address]bool
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		balances: make(map[common.Address]*uint256.Int),
		onCredit: make(map[common.Address]func()),
		failTo:   make(map[common.Address]bool),
	}
}

func (b *fakeBank) fund(addr common.Address, amount *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(uint256.Int).Add(b.balanceLocked(addr), amount)
}

func (b *fakeBank) balanceLocked(addr common.Address) *uint256.Int {
	if v, ok := b.balances[addr]; ok {
		return v
	}
	return new(uint256.Int)
}

func (b *fakeBank) BalanceOf(addr common.Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceLocked(addr).Clone()
}

func (b *fakeBank) Transfer(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	b.mu.Lock()
	if b.failTo[to] {
		b.mu.Unlock()
		return errRejected
	}
	have := b.balanceLocked(from)
	if have.Lt(amount) {
		b.mu.Unlock()
		return fmt.Errorf("insufficient balance: have %s, need %s", have.Dec(), amount.Dec())
	}
	b.balances[from] = new(uint256.Int).Sub(have, amount)
	b.balances[to] = new(uint256.Int).Add(b.balanceLocked(to), amount)
	hook := b.onCredit[to]
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordingEmitter) ofType(typ string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, evt := range r.events {
		if evt.Type == typ {
			out = append(out, evt)
		}
	}
	return out
}

func (r *recordingEmitter) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	clock    *testClock
	bank     *fakeBank
	emitter  *recordingEmitter
	campaign *Campaign
}

type option func(*Params, *Deps)

func withMilestones(amounts ...uint64) option {
	return func(p *Params, _ *Deps) {
		for i, a := range amounts {
			p.Milestones = append(p.Milestones, MilestoneSpec{Description: fmt.Sprintf("phase %d", i+1), Amount: eth(a)})
		}
	}
}

func withGovernance() option {
	return func(p *Params, _ *Deps) { p.GovernanceEnabled = true }
}

func withReward(h RewardHook) option {
	return func(_ *Params, d *Deps) { d.Reward = h }
}

func newFixture(t *testing.T, capEth uint64, opts ...option) *fixture {
	t.Helper()
	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		clock:   newTestClock(),
		bank:    newFakeBank(),
		emitter: &recordingEmitter{},
	}
	params := Params{
		Address:     testCampaign,
		Name:        "solar roof",
		Creator:     testCreator,
		Beneficiary: testBeneficiary,
		Duration:    7 * 24 * time.Hour,
		FundingCap:  eth(capEth),
	}
	deps := Deps{Clock: f.clock, Bank: f.bank, Emitter: f.emitter}
	for _, opt := range opts {
		opt(&params, &deps)
	}
	c, err := New(params, deps)
	require.NoError(t, err)
	f.campaign = c
	return f
}

func (f *fixture) contribute(who common.Address, amountEth uint64) {
	f.t.Helper()
	f.bank.fund(who, eth(amountEth))
	require.NoError(f.t, f.campaign.Contribute(f.ctx, who, eth(amountEth)))
}

func (f *fixture) pastDeadline() {
	f.clock.Set(f.campaign.Deadline().Add(time.Second))
}

func (f *fixture) finalize() FinalizeResult {
	f.t.Helper()
	f.pastDeadline()
	res, err := f.campaign.Finalize(f.ctx)
	require.NoError(f.t, err)
	return res
}

// checkInvariants 校验任意可达状态下都应成立的账目关系
func (f *fixture) checkInvariants() {
	f.t.Helper()
	c := f.campaign
	c.mu.Lock()
	defer c.mu.Unlock()

	sum := new(uint256.Int)
	for _, addr := range c.ledger.contributors {
		sum.Add(sum, c.ledger.contributions[addr])
	}
	sum.Add(sum, c.ledger.refunded)
	require.Equal(f.t, c.ledger.totalRaised.Dec(), sum.Dec(), "records + refunded == totalRaised")
	require.False(f.t, c.ledger.totalRaised.Gt(c.fundingCap), "totalRaised <= cap")
	require.False(f.t, c.schedule.Total().Gt(c.fundingCap), "milestone total <= cap")
	require.False(f.t, c.releasedAmount.Gt(c.ledger.totalRaised), "released <= totalRaised")
	for i, m := range c.schedule.items {
		if m.FundsReleased {
			require.True(f.t, m.Completed, "milestone %d released but not completed", i)
		}
		v := &c.governance.votes[i]
		require.LessOrEqual(f.t, v.Participation(), uint64(c.ledger.ContributorCount()))
		require.Equal(f.t, uint64(len(v.ballots)), v.Participation())
	}
	if c.successful {
		require.True(f.t, c.finalized)
	}
	held := f.bank.BalanceOf(c.address)
	require.Equal(f.t, held.Dec(), c.balance.Dec(), "bank balance matches escrow balance")
}
