package escrow

import (
	"strings"
	"time"
)

// MaxContentHashLen 内容哈希（IPFS CID 等）最大长度
const MaxContentHashLen = 128

// Update 活动公告，只追加
type Update struct {
	ID          int
	Title       string
	ContentHash string
	MilestoneID int // -1 表示不关联里程碑
	PostedAt    time.Time
}

// HasMilestone 是否关联了里程碑
func (u Update) HasMilestone() bool { return u.MilestoneID >= 0 }

// Bulletin 公告板
type Bulletin struct {
	updates []Update
}

func (b *Bulletin) post(title, contentHash string, milestoneID int, now time.Time) (Update, error) {
	title = strings.TrimSpace(title)
	contentHash = strings.TrimSpace(contentHash)
	if title == "" {
		return Update{}, fail(ErrInvalidParameter, "update title required")
	}
	if contentHash == "" || len(contentHash) > MaxContentHashLen {
		return Update{}, fail(ErrInvalidParameter, "content hash must be 1..%d characters", MaxContentHashLen)
	}
	u := Update{
		ID:          len(b.updates),
		Title:       title,
		ContentHash: contentHash,
		MilestoneID: milestoneID,
		PostedAt:    now,
	}
	b.updates = append(b.updates, u)
	return u, nil
}

// Count 公告数量
func (b *Bulletin) Count() int { return len(b.updates) }

// Get 按 ID 获取公告
func (b *Bulletin) Get(id int) (Update, bool) {
	if id < 0 || id >= len(b.updates) {
		return Update{}, false
	}
	return b.updates[id], true
}

// All 全部公告
func (b *Bulletin) All() []Update {
	out := make([]Update, len(b.updates))
	copy(out, b.updates)
	return out
}

// ByMilestone 关联指定里程碑的公告
func (b *Bulletin) ByMilestone(milestoneID int) []Update {
	var out []Update
	for _, u := range b.updates {
		if u.MilestoneID == milestoneID {
			out = append(out, u)
		}
	}
	return out
}
