package escrow

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// VotingPeriod 里程碑投票时长
	VotingPeriod = 7 * 24 * time.Hour
	// QuorumPercent 法定参与比例（按贡献者人数）
	QuorumPercent = 30
	// ApprovalPercent 通过所需的赞成票比例（按已投票数）
	ApprovalPercent = 60
)

// VotePhase 投票阶段
type VotePhase string

const (
	VoteNotStarted VotePhase = "not_started"
	VoteActive     VotePhase = "active"
	VoteApproved   VotePhase = "approved"
	VoteRejected   VotePhase = "rejected"
)

// Vote 单个里程碑的投票记录，一人一票，不按金额加权
type Vote struct {
	VotesFor       uint64
	VotesAgainst   uint64
	VotingDeadline time.Time // 零值表示未开始
	Resolved       bool
	Approved       bool
	ballots        map[common.Address]bool
}

// Phase 投票当前阶段
func (v *Vote) Phase() VotePhase {
	switch {
	case v.VotingDeadline.IsZero():
		return VoteNotStarted
	case !v.Resolved:
		return VoteActive
	case v.Approved:
		return VoteApproved
	default:
		return VoteRejected
	}
}

// Participation 已投票人数
func (v *Vote) Participation() uint64 { return v.VotesFor + v.VotesAgainst }

// Ballot 返回投票人的选择
func (v *Vote) Ballot(voter common.Address) (support bool, voted bool) {
	support, voted = v.ballots[voter]
	return support, voted
}

func (v *Vote) clone() Vote {
	out := *v
	out.ballots = make(map[common.Address]bool, len(v.ballots))
	for k, b := range v.ballots {
		out.ballots[k] = b
	}
	return out
}

// Governance 按里程碑下标组织的投票表
type Governance struct {
	votes []Vote
}

// NewGovernance 为 n 个里程碑创建投票表
func NewGovernance(n int) *Governance {
	g := &Governance{votes: make([]Vote, n)}
	for i := range g.votes {
		g.votes[i].ballots = make(map[common.Address]bool)
	}
	return g
}

func (g *Governance) lookup(id int) (*Vote, error) {
	if id < 0 || id >= len(g.votes) {
		return nil, fail(ErrInvalidParameter, "milestone %d does not exist", id)
	}
	return &g.votes[id], nil
}

// Get 返回投票记录副本
func (g *Governance) Get(id int) (Vote, error) {
	v, err := g.lookup(id)
	if err != nil {
		return Vote{}, err
	}
	return v.clone(), nil
}

// Start 开启投票，截止时间只设置一次
func (g *Governance) Start(id int, now time.Time) (time.Time, error) {
	v, err := g.lookup(id)
	if err != nil {
		return time.Time{}, err
	}
	if !v.VotingDeadline.IsZero() {
		return time.Time{}, fail(ErrAlreadyDone, "voting for milestone %d already started", id)
	}
	v.VotingDeadline = now.Add(VotingPeriod)
	return v.VotingDeadline, nil
}

// Cast 记录一票，返回是否所有贡献者均已投票
func (g *Governance) Cast(id int, voter common.Address, support bool, now time.Time, contributorCount int) (bool, error) {
	v, err := g.lookup(id)
	if err != nil {
		return false, err
	}
	if v.VotingDeadline.IsZero() {
		return false, fail(ErrPhaseViolation, "voting for milestone %d not started", id)
	}
	if v.Resolved {
		return false, fail(ErrPhaseViolation, "voting for milestone %d already resolved", id)
	}
	if now.After(v.VotingDeadline) {
		return false, fail(ErrPhaseViolation, "voting for milestone %d has ended", id)
	}
	if _, voted := v.ballots[voter]; voted {
		return false, fail(ErrAlreadyDone, "already voted on milestone %d", id)
	}
	v.ballots[voter] = support
	if support {
		v.VotesFor++
	} else {
		v.VotesAgainst++
	}
	return v.Participation() >= uint64(contributorCount), nil
}

// Resolve 计票：需达到法定人数，赞成比例不低于 ApprovalPercent 则通过
func (g *Governance) Resolve(id int, now time.Time, contributorCount int) (bool, error) {
	v, err := g.lookup(id)
	if err != nil {
		return false, err
	}
	if v.Resolved {
		return false, fail(ErrAlreadyDone, "vote on milestone %d already resolved", id)
	}
	if v.VotingDeadline.IsZero() {
		return false, fail(ErrPhaseViolation, "voting for milestone %d not started", id)
	}
	participation := v.Participation()
	allVoted := participation >= uint64(contributorCount)
	if !now.After(v.VotingDeadline) && !allVoted {
		return false, fail(ErrPhaseViolation, "voting for milestone %d still open", id)
	}
	required := QuorumRequired(contributorCount)
	if participation == 0 || participation < required {
		return false, fail(ErrInsufficientConsensus, "participation %d below quorum %d", participation, required)
	}
	v.Resolved = true
	v.Approved = v.VotesFor*100/participation >= ApprovalPercent
	return v.Approved, nil
}

// QuorumRequired 向上取整的法定投票人数
func QuorumRequired(contributorCount int) uint64 {
	if contributorCount <= 0 {
		return 0
	}
	return (uint64(contributorCount)*QuorumPercent + 99) / 100
}
