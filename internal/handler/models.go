package handler

import (
	"encoding/json"
	"time"

	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/model"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// 分页信息结构
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"pageSize"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"totalPage"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	return Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
}

// 请求模型，金额均为 wei 十进制字符串

// MilestoneRequest 里程碑定义
type MilestoneRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount" binding:"required"`
}

// CreateCampaignRequest 创建活动
type CreateCampaignRequest struct {
	Name              string             `json:"name"`
	Beneficiary       string             `json:"beneficiary" binding:"required"`
	DurationSeconds   int64              `json:"durationSeconds" binding:"required"`
	FundingCap        string             `json:"fundingCap" binding:"required"`
	Milestones        []MilestoneRequest `json:"milestones"`
	GovernanceEnabled bool               `json:"governanceEnabled"`
	RewardEnabled     *bool              `json:"rewardEnabled"` // 缺省取配置
}

// AmountRequest 出资、水龙头
type AmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// GovernanceRequest 开关治理
type GovernanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// VoteRequest 投票
type VoteRequest struct {
	Support *bool `json:"support" binding:"required"`
}

// PostUpdateRequest 发布公告
type PostUpdateRequest struct {
	Title       string `json:"title"`
	ContentHash string `json:"contentHash"`
	MilestoneID *int   `json:"milestoneId"`
}

// AdvanceClockRequest 推进手动时钟
type AdvanceClockRequest struct {
	Seconds int64 `json:"seconds" binding:"required"`
}

// 活动相关响应模型

// CampaignResponse 活动摘要
type CampaignResponse struct {
	Address           string    `json:"address"`
	Name              string    `json:"name"`
	Creator           string    `json:"creator"`
	Beneficiary       string    `json:"beneficiary"`
	FundingCap        string    `json:"fundingCap"`
	TotalRaised       string    `json:"totalRaised"`
	Balance           string    `json:"balance"`
	ReleasedAmount    string    `json:"releasedAmount"`
	RefundedAmount    string    `json:"refundedAmount"`
	CreatedAt         time.Time `json:"createdAt"`
	Deadline          time.Time `json:"deadline"`
	Finalized         bool      `json:"finalized"`
	Successful        bool      `json:"successful"`
	FundsWithdrawn    bool      `json:"fundsWithdrawn"`
	GovernanceEnabled bool      `json:"governanceEnabled"`
	State             string    `json:"state"`
	ContributorCount  int       `json:"contributorCount"`
	MilestoneCount    int       `json:"milestoneCount"`
	UpdateCount       int       `json:"updateCount"`
}

// CampaignListResponse 活动列表
type CampaignListResponse struct {
	Campaigns []CampaignResponse `json:"campaigns"`
	Start     int                `json:"start"`
	Total     int                `json:"total"`
}

// FinalizeResponse 结算结果
type FinalizeResponse struct {
	Successful     bool   `json:"successful"`
	TotalRaised    string `json:"totalRaised"`
	RewardsIssued  int    `json:"rewardsIssued"`
	RewardFailures int    `json:"rewardFailures"`
}

// MilestoneResponse 里程碑
type MilestoneResponse struct {
	ID            int        `json:"id"`
	Description   string     `json:"description"`
	Amount        string     `json:"amount"`
	Completed     bool       `json:"completed"`
	FundsReleased bool       `json:"fundsReleased"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	ReleasedAt    *time.Time `json:"releasedAt,omitempty"`
}

// VoteResponse 投票计数与调用方投票
type VoteResponse struct {
	MilestoneID      int        `json:"milestoneId"`
	Phase            string     `json:"phase"`
	VotesFor         uint64     `json:"votesFor"`
	VotesAgainst     uint64     `json:"votesAgainst"`
	VotingDeadline   *time.Time `json:"votingDeadline,omitempty"`
	Resolved         bool       `json:"resolved"`
	Approved         bool       `json:"approved"`
	ContributorCount int        `json:"contributorCount"`
	QuorumRequired   uint64     `json:"quorumRequired"`
	HasVoted         bool       `json:"hasVoted"`
	Support          bool       `json:"support"`
}

// UpdateResponse 公告
type UpdateResponse struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	ContentHash string    `json:"contentHash"`
	MilestoneID *int      `json:"milestoneId,omitempty"`
	PostedAt    time.Time `json:"postedAt"`
}

// ContributionResponse 地址在活动中的贡献
type ContributionResponse struct {
	Campaign    string `json:"campaign"`
	Contributor string `json:"contributor"`
	Amount      string `json:"amount"`
}

// AmountResponse 单个金额结果
type AmountResponse struct {
	Amount string `json:"amount"`
}

// AccountResponse 账户余额
type AccountResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// 记录相关响应模型

// ContributeRecordResponse 贡献记录
type ContributeRecordResponse struct {
	Campaign    string    `json:"campaign"`
	Seq         uint64    `json:"seq"`
	Address     string    `json:"address"`
	Amount      string    `json:"amount"`
	TotalRaised string    `json:"totalRaised"`
	BlockTime   time.Time `json:"blockTime"`
}

// RefundRecordResponse 退款记录
type RefundRecordResponse struct {
	Campaign  string    `json:"campaign"`
	Seq       uint64    `json:"seq"`
	Address   string    `json:"address"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	BlockTime time.Time `json:"blockTime"`
}

// SettlementRecordResponse 资金释放记录
type SettlementRecordResponse struct {
	Campaign       string    `json:"campaign"`
	Seq            uint64    `json:"seq"`
	Type           string    `json:"type"`
	MilestoneID    *int      `json:"milestoneId,omitempty"`
	Beneficiary    string    `json:"beneficiary"`
	Amount         string    `json:"amount"`
	ReleasedAmount string    `json:"releasedAmount"`
	SettlementTime time.Time `json:"settlementTime"`
}

// EventResponse 事件日志
type EventResponse struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Topic      string            `json:"topic"`
	Time       time.Time         `json:"time"`
	Attributes map[string]string `json:"attributes"`
	Processed  bool              `json:"processed"`
}

// RewardTokenResponse 贡献凭证
type RewardTokenResponse struct {
	TokenID      int64  `json:"tokenId"`
	Campaign     string `json:"campaign"`
	CampaignName string `json:"campaignName"`
	Contributor  string `json:"contributor"`
	Amount       string `json:"amount"`
}

// PagedResponse 分页数据
type PagedResponse struct {
	Records    interface{} `json:"records"`
	Pagination Pagination  `json:"pagination"`
}

// 转换函数

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func milestonePtr(id int) *int {
	if id < 0 {
		return nil
	}
	return &id
}

// ToCampaignResponse 摘要转换为响应模型
func ToCampaignResponse(s escrow.Summary) CampaignResponse {
	return CampaignResponse{
		Address:           s.Address.Hex(),
		Name:              s.Name,
		Creator:           s.Creator.Hex(),
		Beneficiary:       s.Beneficiary.Hex(),
		FundingCap:        s.FundingCap.Dec(),
		TotalRaised:       s.TotalRaised.Dec(),
		Balance:           s.Balance.Dec(),
		ReleasedAmount:    s.ReleasedAmount.Dec(),
		RefundedAmount:    s.RefundedAmount.Dec(),
		CreatedAt:         s.CreatedAt,
		Deadline:          s.Deadline,
		Finalized:         s.Finalized,
		Successful:        s.Successful,
		FundsWithdrawn:    s.FundsWithdrawn,
		GovernanceEnabled: s.GovernanceEnabled,
		State:             string(s.State),
		ContributorCount:  s.ContributorCount,
		MilestoneCount:    s.MilestoneCount,
		UpdateCount:       s.UpdateCount,
	}
}

// ToCampaignResponseList 摘要列表转换
func ToCampaignResponseList(list []escrow.Summary) []CampaignResponse {
	result := make([]CampaignResponse, len(list))
	for i, s := range list {
		result[i] = ToCampaignResponse(s)
	}
	return result
}

// ToMilestoneResponse 里程碑转换
func ToMilestoneResponse(m escrow.Milestone) MilestoneResponse {
	return MilestoneResponse{
		ID:            m.ID,
		Description:   m.Description,
		Amount:        m.Amount.Dec(),
		Completed:     m.Completed,
		FundsReleased: m.FundsReleased,
		CompletedAt:   timePtr(m.CompletedAt),
		ReleasedAt:    timePtr(m.ReleasedAt),
	}
}

// ToVoteResponse 投票视图转换
func ToVoteResponse(v escrow.VoteStatus) VoteResponse {
	return VoteResponse{
		MilestoneID:      v.MilestoneID,
		Phase:            string(v.Phase),
		VotesFor:         v.VotesFor,
		VotesAgainst:     v.VotesAgainst,
		VotingDeadline:   timePtr(v.VotingDeadline),
		Resolved:         v.Resolved,
		Approved:         v.Approved,
		ContributorCount: v.ContributorCount,
		QuorumRequired:   v.QuorumRequired,
		HasVoted:         v.HasVoted,
		Support:          v.Support,
	}
}

// ToUpdateResponse 公告转换
func ToUpdateResponse(u escrow.Update) UpdateResponse {
	return UpdateResponse{
		ID:          u.ID,
		Title:       u.Title,
		ContentHash: u.ContentHash,
		MilestoneID: milestonePtr(u.MilestoneID),
		PostedAt:    u.PostedAt,
	}
}

// ToUpdateResponseList 公告列表转换
func ToUpdateResponseList(list []escrow.Update) []UpdateResponse {
	result := make([]UpdateResponse, len(list))
	for i, u := range list {
		result[i] = ToUpdateResponse(u)
	}
	return result
}

// ToContributeRecordResponseList 贡献记录转换
func ToContributeRecordResponseList(records []model.ContributeRecordModel) []ContributeRecordResponse {
	result := make([]ContributeRecordResponse, len(records))
	for i, r := range records {
		result[i] = ContributeRecordResponse{
			Campaign:    r.CampaignAddress,
			Seq:         r.EventSeq,
			Address:     r.Address,
			Amount:      r.Amount,
			TotalRaised: r.TotalRaised,
			BlockTime:   r.BlockTime,
		}
	}
	return result
}

// ToRefundRecordResponseList 退款记录转换
func ToRefundRecordResponseList(records []model.RefundRecordModel) []RefundRecordResponse {
	result := make([]RefundRecordResponse, len(records))
	for i, r := range records {
		result[i] = RefundRecordResponse{
			Campaign:  r.CampaignAddress,
			Seq:       r.EventSeq,
			Address:   r.Address,
			Amount:    r.Amount,
			Status:    string(r.Status),
			BlockTime: r.BlockTime,
		}
	}
	return result
}

// ToSettlementRecordResponseList 结算记录转换
func ToSettlementRecordResponseList(records []model.SettlementRecordModel) []SettlementRecordResponse {
	result := make([]SettlementRecordResponse, len(records))
	for i, r := range records {
		result[i] = SettlementRecordResponse{
			Campaign:       r.CampaignAddress,
			Seq:            r.EventSeq,
			Type:           string(r.SettlementType),
			MilestoneID:    milestonePtr(r.MilestoneId),
			Beneficiary:    r.Beneficiary,
			Amount:         r.Amount,
			ReleasedAmount: r.ReleasedAmount,
			SettlementTime: r.SettlementTime,
		}
	}
	return result
}

// ToEventResponseList 事件转换，Data 解析失败时属性为空
func ToEventResponseList(rows []model.EventModel) []EventResponse {
	result := make([]EventResponse, len(rows))
	for i, r := range rows {
		attrs := map[string]string{}
		_ = json.Unmarshal([]byte(r.Data), &attrs)
		result[i] = EventResponse{
			Seq:        r.Seq,
			Type:       r.EventType,
			Topic:      r.Topic,
			Time:       r.BlockTime,
			Attributes: attrs,
			Processed:  r.Processed,
		}
	}
	return result
}

// ToRewardTokenResponseList 凭证转换
func ToRewardTokenResponseList(tokens []model.RewardTokenModel) []RewardTokenResponse {
	result := make([]RewardTokenResponse, len(tokens))
	for i, t := range tokens {
		result[i] = RewardTokenResponse{
			TokenID:      t.Id,
			Campaign:     t.CampaignAddress,
			CampaignName: t.CampaignName,
			Contributor:  t.Contributor,
			Amount:       t.Amount,
		}
	}
	return result
}
