package escrow

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// 事件类型
const (
	EventCampaignCreated        = "campaign.created"
	EventContributionReceived   = "campaign.contribution_received"
	EventCampaignFinalized      = "campaign.finalized"
	EventGovernanceChanged      = "campaign.governance_changed"
	EventMilestoneAdded         = "milestone.added"
	EventMilestoneCompleted     = "milestone.completed"
	EventMilestoneFundsReleased = "milestone.funds_released"
	EventFundsReleased          = "campaign.funds_released"
	EventRefundIssued           = "campaign.refund_issued"
	EventVoteStarted            = "vote.started"
	EventVoteCast               = "vote.cast"
	EventVoteResolved           = "vote.resolved"
	EventUpdatePosted           = "update.posted"
	EventRewardIssued           = "reward.issued"
	EventRewardFailed           = "reward.failed"
)

// Event 状态变更事件，Seq 为活动内单调递增序号
type Event struct {
	Campaign   common.Address    `json:"campaign"`
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Time       time.Time         `json:"time"`
	Attributes map[string]string `json:"attributes"`
}

// Attr 读取事件属性
func (e Event) Attr(key string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[key]
}

func formatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func formatBool(v bool) string { return strconv.FormatBool(v) }

func formatIndex(id int) string { return strconv.Itoa(id) }

// events 单次操作内收集的事件，在释放锁后统一发送
type events []Event

func (c *Campaign) record(buf *events, typ string, attrs map[string]string) {
	c.seq++
	*buf = append(*buf, Event{
		Campaign:   c.address,
		Seq:        c.seq,
		Type:       typ,
		Time:       c.clock.Now(),
		Attributes: attrs,
	})
}

func (c *Campaign) flush(buf events) {
	for _, evt := range buf {
		c.emitter.Emit(evt)
	}
}
