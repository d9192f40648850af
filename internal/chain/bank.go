package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrInsufficientBalance 余额不足
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount 金额非法
	ErrInvalidAmount = errors.New("invalid amount")
)

// ReceiveHook 收款回调，模拟接收方合约；返回错误表示拒收，转账整体撤销
type ReceiveHook func(ctx context.Context, from common.Address, amount *uint256.Int) error

// Bank 原生币账户余额
type Bank struct {
	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
	hooks    map[common.Address]ReceiveHook
	dirty    map[common.Address]struct{}
	// held 回调尚未返回的入账，接收方不可动用
	held map[common.Address]*uint256.Int
}

// NewBank 创建空账本
func NewBank() *Bank {
	return &Bank{
		balances: make(map[common.Address]*uint256.Int),
		hooks:    make(map[common.Address]ReceiveHook),
		dirty:    make(map[common.Address]struct{}),
		held:     make(map[common.Address]*uint256.Int),
	}
}

func (b *Bank) balanceLocked(addr common.Address) *uint256.Int {
	if v, ok := b.balances[addr]; ok {
		return v
	}
	return new(uint256.Int)
}

// spendableLocked 余额扣除回调中冻结的部分
func (b *Bank) spendableLocked(addr common.Address) *uint256.Int {
	have := b.balanceLocked(addr)
	h, ok := b.held[addr]
	if !ok {
		return have
	}
	if have.Lt(h) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(have, h)
}

func (b *Bank) hold(addr common.Address, amount *uint256.Int) {
	if h, ok := b.held[addr]; ok {
		b.held[addr] = new(uint256.Int).Add(h, amount)
		return
	}
	b.held[addr] = amount.Clone()
}

func (b *Bank) unhold(addr common.Address, amount *uint256.Int) {
	h, ok := b.held[addr]
	if !ok {
		return
	}
	if !amount.Lt(h) {
		delete(b.held, addr)
		return
	}
	b.held[addr] = new(uint256.Int).Sub(h, amount)
}

func (b *Bank) setLocked(addr common.Address, v *uint256.Int) {
	b.balances[addr] = v
	b.dirty[addr] = struct{}{}
}

// BalanceOf 查询余额
func (b *Bank) BalanceOf(addr common.Address) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balanceLocked(addr).Clone()
}

// Credit 直接入账（测试网水龙头）
func (b *Bank) Credit(addr common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	next, overflow := new(uint256.Int).AddOverflow(b.balanceLocked(addr), amount)
	if overflow {
		return fmt.Errorf("%w: balance overflow", ErrInvalidAmount)
	}
	b.setLocked(addr, next)
	return nil
}

// Load 恢复持久化余额，不标记为脏
func (b *Bank) Load(addr common.Address, balance *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = balance.Clone()
}

// SetReceiver 注册收款回调，nil 表示移除
func (b *Bank) SetReceiver(addr common.Address, hook ReceiveHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hook == nil {
		delete(b.hooks, addr)
		return
	}
	b.hooks[addr] = hook
}

// Transfer 转账；收款回调在释放账本锁后执行，可以重入。
// 回调返回前入账金额处于冻结状态，接收方无法转出，拒收时整笔退回。
func (b *Bank) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	have := b.spendableLocked(from)
	if have.Lt(amount) {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), have.Dec(), amount.Dec())
	}
	b.setLocked(from, new(uint256.Int).Sub(b.balanceLocked(from), amount))
	b.setLocked(to, new(uint256.Int).Add(b.balanceLocked(to), amount))
	hook := b.hooks[to]
	if hook != nil {
		b.hold(to, amount)
	}
	b.mu.Unlock()

	if hook == nil {
		return nil
	}
	err := hook(ctx, from, amount)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.unhold(to, amount)
	if err != nil {
		b.setLocked(to, new(uint256.Int).Sub(b.balanceLocked(to), amount))
		b.setLocked(from, new(uint256.Int).Add(b.balanceLocked(from), amount))
		return fmt.Errorf("recipient %s rejected transfer: %w", to.Hex(), err)
	}
	return nil
}

// Dirty 取出自上次调用以来变动过的账户及其余额
func (b *Bank) Dirty() map[common.Address]*uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[common.Address]*uint256.Int, len(b.dirty))
	for addr := range b.dirty {
		out[addr] = b.balanceLocked(addr).Clone()
	}
	b.dirty = make(map[common.Address]struct{})
	return out
}

// Accounts 有余额记录的账户数量
func (b *Bank) Accounts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.balances)
}

// MarkDirty 重新标记账户为脏，用于持久化失败后重试
func (b *Bank) MarkDirty(addrs ...common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, addr := range addrs {
		b.dirty[addr] = struct{}{}
	}
}
