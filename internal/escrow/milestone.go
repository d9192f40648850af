package escrow

import (
	"time"

	"github.com/holiman/uint256"
)

// Milestone 里程碑
type Milestone struct {
	ID            int
	Description   string
	Amount        *uint256.Int
	Completed     bool
	FundsReleased bool
	CompletedAt   time.Time
	ReleasedAt    time.Time
}

// Clone 深拷贝
func (m Milestone) Clone() Milestone {
	m.Amount = cloneAmount(m.Amount)
	return m
}

// Schedule 里程碑计划，下标即里程碑 ID，长度在创建后固定
type Schedule struct {
	items []Milestone
}

// NewSchedule 校验并创建里程碑计划
func NewSchedule(fundingCap *uint256.Int, specs []MilestoneSpec) (*Schedule, error) {
	s := &Schedule{items: make([]Milestone, 0, len(specs))}
	total := new(uint256.Int)
	for i, spec := range specs {
		if spec.Amount == nil || spec.Amount.IsZero() {
			return nil, fail(ErrInvalidParameter, "milestone %d amount must be positive", i)
		}
		next, overflow := new(uint256.Int).AddOverflow(total, spec.Amount)
		if overflow || next.Gt(fundingCap) {
			return nil, fail(ErrInvalidParameter, "invalid milestone total: exceeds funding cap %s", fundingCap.Dec())
		}
		total = next
		s.items = append(s.items, Milestone{
			ID:          i,
			Description: spec.Description,
			Amount:      spec.Amount.Clone(),
		})
	}
	return s, nil
}

// Len 里程碑数量
func (s *Schedule) Len() int { return len(s.items) }

func (s *Schedule) lookup(id int) (*Milestone, error) {
	if id < 0 || id >= len(s.items) {
		return nil, fail(ErrInvalidParameter, "milestone %d does not exist", id)
	}
	return &s.items[id], nil
}

// Get 按 ID 获取里程碑副本
func (s *Schedule) Get(id int) (Milestone, error) {
	m, err := s.lookup(id)
	if err != nil {
		return Milestone{}, err
	}
	return m.Clone(), nil
}

// All 返回全部里程碑副本
func (s *Schedule) All() []Milestone {
	out := make([]Milestone, len(s.items))
	for i, m := range s.items {
		out[i] = m.Clone()
	}
	return out
}

// MarkCompleted 标记完成，调用方负责鉴权
func (s *Schedule) MarkCompleted(id int, now time.Time) error {
	m, err := s.lookup(id)
	if err != nil {
		return err
	}
	if m.Completed {
		return fail(ErrAlreadyDone, "milestone %d already completed", id)
	}
	m.Completed = true
	m.CompletedAt = now
	return nil
}

// MarkReleased 里程碑资金唯一的出口，同一 ID 只能成功一次
func (s *Schedule) MarkReleased(id int, now time.Time) (*uint256.Int, error) {
	m, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if m.FundsReleased {
		return nil, fail(ErrAlreadyDone, "milestone %d funds already released", id)
	}
	if !m.Completed {
		return nil, fail(ErrPhaseViolation, "milestone %d not completed", id)
	}
	m.FundsReleased = true
	m.ReleasedAt = now
	return m.Amount.Clone(), nil
}

// unmarkReleased 转账失败时回滚
func (s *Schedule) unmarkReleased(id int) {
	if m, err := s.lookup(id); err == nil {
		m.FundsReleased = false
		m.ReleasedAt = time.Time{}
	}
}

// Total 里程碑金额合计
func (s *Schedule) Total() *uint256.Int {
	total := new(uint256.Int)
	for _, m := range s.items {
		total.Add(total, m.Amount)
	}
	return total
}

// ReleasedTotal 已释放的里程碑金额合计
func (s *Schedule) ReleasedTotal() *uint256.Int {
	total := new(uint256.Int)
	for _, m := range s.items {
		if m.FundsReleased {
			total.Add(total, m.Amount)
		}
	}
	return total
}
