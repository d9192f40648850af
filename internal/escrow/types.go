package escrow

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Clock 外部单调时钟（区块时间）
type Clock interface {
	Now() time.Time
}

// SystemClock 使用本机时间的时钟
type SystemClock struct{}

// Now 返回当前 UTC 时间
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Transferer 原生币转账能力，escrow 资金的唯一进出通道
type Transferer interface {
	Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error
}

// RewardHook 贡献凭证发放能力，每个 (活动, 贡献者) 最多调用一次
type RewardHook interface {
	IssueReward(ctx context.Context, campaign, contributor common.Address, amount *uint256.Int, campaignName string, seq uint64) (uint64, error)
}

// Emitter 事件发送器
type Emitter interface {
	Emit(Event)
}

// NoopEmitter 丢弃所有事件
type NoopEmitter struct{}

// Emit 实现 Emitter 接口
func (NoopEmitter) Emit(Event) {}

// MilestoneSpec 创建活动时的里程碑定义
type MilestoneSpec struct {
	Description string
	Amount      *uint256.Int
}

// Params 活动创建参数，创建后不可变
type Params struct {
	Address           common.Address
	Name              string
	Creator           common.Address
	Beneficiary       common.Address
	Duration          time.Duration
	FundingCap        *uint256.Int
	Milestones        []MilestoneSpec
	GovernanceEnabled bool
}

// Deps 活动依赖的外部能力
type Deps struct {
	Clock   Clock
	Bank    Transferer
	Reward  RewardHook // 可选
	Emitter Emitter
}

// State 活动生命周期状态
type State string

const (
	StateOpen       State = "open"       // 募资中
	StateEnded      State = "ended"      // 已过截止时间，待结算
	StateSuccessful State = "successful" // 结算成功
	StateFailed     State = "failed"     // 结算失败
)

func isZeroAddress(addr common.Address) bool {
	return addr == (common.Address{})
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
