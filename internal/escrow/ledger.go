package escrow

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger 贡献账本：逐地址记账与去重后的贡献者列表
type Ledger struct {
	cap           *uint256.Int
	totalRaised   *uint256.Int
	refunded      *uint256.Int
	contributions map[common.Address]*uint256.Int
	contributors  []common.Address
	refundedBy    map[common.Address]bool
}

// NewLedger 创建账本
func NewLedger(fundingCap *uint256.Int) *Ledger {
	return &Ledger{
		cap:           cloneAmount(fundingCap),
		totalRaised:   new(uint256.Int),
		refunded:      new(uint256.Int),
		contributions: make(map[common.Address]*uint256.Int),
		refundedBy:    make(map[common.Address]bool),
	}
}

// checkContribution 校验一笔贡献，不修改状态
func (l *Ledger) checkContribution(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fail(ErrInvalidParameter, "contribution must be positive")
	}
	next, overflow := new(uint256.Int).AddOverflow(l.totalRaised, amount)
	if overflow || next.Gt(l.cap) {
		return fail(ErrLimitExceeded, "contribution exceeds funding cap (raised %s, cap %s)", l.totalRaised.Dec(), l.cap.Dec())
	}
	return nil
}

// RecordContribution 记录一笔贡献
func (l *Ledger) RecordContribution(sender common.Address, amount *uint256.Int) error {
	if err := l.checkContribution(amount); err != nil {
		return err
	}
	prev, ok := l.contributions[sender]
	if !ok {
		prev = new(uint256.Int)
		l.contributors = append(l.contributors, sender)
	}
	l.contributions[sender] = new(uint256.Int).Add(prev, amount)
	l.totalRaised = new(uint256.Int).Add(l.totalRaised, amount)
	return nil
}

// takeRefund 清零贡献记录并返回应退金额，转账前调用
func (l *Ledger) takeRefund(sender common.Address) (*uint256.Int, error) {
	if l.refundedBy[sender] {
		return nil, fail(ErrAlreadyDone, "refund already claimed")
	}
	amount, ok := l.contributions[sender]
	if !ok || amount.IsZero() {
		return nil, fail(ErrPhaseViolation, "no contribution")
	}
	l.contributions[sender] = new(uint256.Int)
	l.refundedBy[sender] = true
	l.refunded = new(uint256.Int).Add(l.refunded, amount)
	return amount.Clone(), nil
}

// restoreRefund 转账失败时回滚退款
func (l *Ledger) restoreRefund(sender common.Address, amount *uint256.Int) {
	l.contributions[sender] = amount.Clone()
	delete(l.refundedBy, sender)
	l.refunded = new(uint256.Int).Sub(l.refunded, amount)
}

// ContributorCount 去重后的贡献者数量，投票分母
func (l *Ledger) ContributorCount() int { return len(l.contributors) }

// IsContributor 是否贡献过
func (l *Ledger) IsContributor(addr common.Address) bool {
	_, ok := l.contributions[addr]
	return ok
}

// ContributionOf 地址当前的贡献记录
func (l *Ledger) ContributionOf(addr common.Address) *uint256.Int {
	return cloneAmount(l.contributions[addr])
}

// Contributors 按首次贡献顺序返回贡献者
func (l *Ledger) Contributors() []common.Address {
	out := make([]common.Address, len(l.contributors))
	copy(out, l.contributors)
	return out
}

// TotalRaised 累计募资金额
func (l *Ledger) TotalRaised() *uint256.Int { return l.totalRaised.Clone() }

// Refunded 累计已退款金额
func (l *Ledger) Refunded() *uint256.Int { return l.refunded.Clone() }

// HasRefunded 是否已领取退款
func (l *Ledger) HasRefunded(addr common.Address) bool { return l.refundedBy[addr] }
