package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrCampaignNotFound 活动不存在
var ErrCampaignNotFound = errors.New("campaign not found")

// MaxPageSize 单次分页上限
const MaxPageSize = 100

// CreateParams 创建活动参数
type CreateParams struct {
	Name              string
	Creator           common.Address
	Beneficiary       common.Address
	Duration          time.Duration
	FundingCap        *uint256.Int
	Milestones        []escrow.MilestoneSpec
	GovernanceEnabled bool
	RewardEnabled     bool
}

// Registry 活动工厂：派生地址、创建并索引活动
type Registry struct {
	mu        sync.RWMutex
	factory   common.Address
	nonce     uint64
	deps      escrow.Deps
	campaigns map[common.Address]*escrow.Campaign
	order     []common.Address
	index     map[common.Address]uint64
	byCreator map[common.Address][]common.Address
}

// New 创建注册表，deps.Reward 仅在 CreateParams.RewardEnabled 时挂载
func New(factory common.Address, deps escrow.Deps) *Registry {
	return &Registry{
		factory:   factory,
		deps:      deps,
		campaigns: make(map[common.Address]*escrow.Campaign),
		index:     make(map[common.Address]uint64),
		byCreator: make(map[common.Address][]common.Address),
	}
}

// Factory 工厂地址
func (r *Registry) Factory() common.Address { return r.factory }

// Nonce 下一个待用的派生序号
func (r *Registry) Nonce() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nonce
}

// NextAddress 下一个活动将使用的地址
func (r *Registry) NextAddress() common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return crypto.CreateAddress(r.factory, r.nonce)
}

// Create 校验并创建活动，失败时不占用序号也不登记
func (r *Registry) Create(p CreateParams) (*escrow.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr := crypto.CreateAddress(r.factory, r.nonce)
	if _, exists := r.campaigns[addr]; exists {
		return nil, fmt.Errorf("%w: address %s already taken", escrow.ErrInvalidParameter, addr.Hex())
	}
	deps := r.deps
	if !p.RewardEnabled {
		deps.Reward = nil
	}
	c, err := escrow.New(escrow.Params{
		Address:           addr,
		Name:              p.Name,
		Creator:           p.Creator,
		Beneficiary:       p.Beneficiary,
		Duration:          p.Duration,
		FundingCap:        p.FundingCap,
		Milestones:        p.Milestones,
		GovernanceEnabled: p.GovernanceEnabled,
	}, deps)
	if err != nil {
		return nil, err
	}
	r.nonce++
	r.indexLocked(c)
	return c, nil
}

func (r *Registry) indexLocked(c *escrow.Campaign) {
	addr := c.Address()
	r.campaigns[addr] = c
	r.index[addr] = uint64(len(r.order))
	r.order = append(r.order, addr)
	r.byCreator[c.Creator()] = append(r.byCreator[c.Creator()], addr)
}

// Restore 登记持久化恢复的活动，按创建顺序调用
func (r *Registry) Restore(c *escrow.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.campaigns[c.Address()]; exists {
		return fmt.Errorf("campaign %s already registered", c.Address().Hex())
	}
	r.indexLocked(c)
	if next := uint64(len(r.order)); next > r.nonce {
		r.nonce = next
	}
	return nil
}

// Get 按地址获取
func (r *Registry) Get(addr common.Address) (*escrow.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, addr.Hex())
	}
	return c, nil
}

// NonceOf 活动的派生序号
func (r *Registry) NonceOf(addr common.Address) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.index[addr]
	return n, ok
}

// Count 活动总数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// CountByCreator 创建者的活动数
func (r *Registry) CountByCreator(creator common.Address) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCreator[creator])
}

// List 按创建顺序分页，count 超过 MaxPageSize 时截断
func (r *Registry) List(start, count int) []*escrow.Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pageLocked(r.order, start, clampPage(count))
}

// ListByCreator 创建者的活动分页
func (r *Registry) ListByCreator(creator common.Address, start, count int) []*escrow.Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pageLocked(r.byCreator[creator], start, clampPage(count))
}

// All 全部活动
func (r *Registry) All() []*escrow.Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pageLocked(r.order, 0, len(r.order))
}

// Summaries 批量获取摘要，未知地址跳过
func (r *Registry) Summaries(addrs []common.Address) []escrow.Summary {
	r.mu.RLock()
	list := make([]*escrow.Campaign, 0, len(addrs))
	for _, addr := range addrs {
		if c, ok := r.campaigns[addr]; ok {
			list = append(list, c)
		}
	}
	r.mu.RUnlock()

	out := make([]escrow.Summary, 0, len(list))
	for _, c := range list {
		out = append(out, c.Summary())
	}
	return out
}

func clampPage(count int) int {
	if count > MaxPageSize {
		return MaxPageSize
	}
	return count
}

func (r *Registry) pageLocked(addrs []common.Address, start, count int) []*escrow.Campaign {
	if start < 0 || count <= 0 || start >= len(addrs) {
		return nil
	}
	end := start + count
	if end > len(addrs) {
		end = len(addrs)
	}
	out := make([]*escrow.Campaign, 0, end-start)
	for _, addr := range addrs[start:end] {
		out = append(out, r.campaigns[addr])
	}
	return out
}
