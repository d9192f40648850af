package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/blues/cfs-escrow/internal/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const defaultListCount = 20

// CampaignHandler 活动处理器
type CampaignHandler struct {
	campaignLogic *logic.CampaignLogic
	rewardDefault bool
}

// NewCampaignHandler 创建活动处理器，rewardDefault 为请求未指定时是否发放凭证
func NewCampaignHandler(campaignLogic *logic.CampaignLogic, rewardDefault bool) *CampaignHandler {
	return &CampaignHandler{campaignLogic: campaignLogic, rewardDefault: rewardDefault}
}

// CreateCampaign 创建活动，创建者为 X-Sender
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	creator, ok := sender(c)
	if !ok {
		return
	}
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	beneficiary, err := parseAddress(req.Beneficiary)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	fundingCap, err := parseAmount(req.FundingCap)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	duration, err := parseSeconds("durationSeconds", req.DurationSeconds)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	params := registry.CreateParams{
		Name:              req.Name,
		Creator:           creator,
		Beneficiary:       beneficiary,
		Duration:          duration,
		FundingCap:        fundingCap,
		GovernanceEnabled: req.GovernanceEnabled,
		RewardEnabled:     h.rewardDefault,
	}
	if req.RewardEnabled != nil {
		params.RewardEnabled = *req.RewardEnabled
	}
	for _, m := range req.Milestones {
		amount, err := parseAmount(m.Amount)
		if err != nil {
			BadRequest(c, err.Error())
			return
		}
		params.Milestones = append(params.Milestones, escrow.MilestoneSpec{Description: m.Description, Amount: amount})
	}

	campaign, err := h.campaignLogic.CreateCampaign(c.Request.Context(), params)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "活动创建成功", ToCampaignResponse(campaign.Summary()))
}

func listWindow(c *gin.Context) (int, int) {
	start, _ := strconv.Atoi(c.DefaultQuery("start", "0"))
	count, err := strconv.Atoi(c.DefaultQuery("count", strconv.Itoa(defaultListCount)))
	if err != nil {
		count = defaultListCount
	}
	return start, count
}

// GetCampaigns 分页获取活动
func (h *CampaignHandler) GetCampaigns(c *gin.Context) {
	start, count := listWindow(c)
	list, total := h.campaignLogic.ListCampaigns(start, count)
	SuccessResponse(c, http.StatusOK, "ok", CampaignListResponse{
		Campaigns: ToCampaignResponseList(list),
		Start:     start,
		Total:     total,
	})
}

// GetCreatorCampaigns 创建者的活动
func (h *CampaignHandler) GetCreatorCampaigns(c *gin.Context) {
	creator, ok := addressParam(c, "address")
	if !ok {
		return
	}
	start, count := listWindow(c)
	list, total := h.campaignLogic.ListCampaignsByCreator(creator, start, count)
	SuccessResponse(c, http.StatusOK, "ok", CampaignListResponse{
		Campaigns: ToCampaignResponseList(list),
		Start:     start,
		Total:     total,
	})
}

// campaign 读取路径中的活动，失败时已写入响应
func (h *CampaignHandler) campaign(c *gin.Context) (*escrow.Campaign, bool) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return nil, false
	}
	campaign, err := h.campaignLogic.GetCampaign(addr)
	if err != nil {
		FailResponse(c, err)
		return nil, false
	}
	return campaign, true
}

// GetCampaign 活动摘要
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaign, ok := h.campaign(c)
	if !ok {
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", ToCampaignResponse(campaign.Summary()))
}

// Contribute 出资
func (h *CampaignHandler) Contribute(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	from, ok := sender(c)
	if !ok {
		return
	}
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.campaignLogic.Contribute(c.Request.Context(), addr, from, amount); err != nil {
		FailResponse(c, err)
		return
	}
	campaign, err := h.campaignLogic.GetCampaign(addr)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "出资成功", ContributionResponse{
		Campaign:    addr.Hex(),
		Contributor: from.Hex(),
		Amount:      campaign.ContributionOf(from).Dec(),
	})
}

// GetContribution 地址在活动中的贡献
func (h *CampaignHandler) GetContribution(c *gin.Context) {
	campaign, ok := h.campaign(c)
	if !ok {
		return
	}
	contributor, ok := addressParam(c, "contributor")
	if !ok {
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", ContributionResponse{
		Campaign:    campaign.Address().Hex(),
		Contributor: contributor.Hex(),
		Amount:      campaign.ContributionOf(contributor).Dec(),
	})
}

// Finalize 结算
func (h *CampaignHandler) Finalize(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	res, err := h.campaignLogic.Finalize(c.Request.Context(), addr)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "结算完成", FinalizeResponse{
		Successful:     res.Successful,
		TotalRaised:    res.TotalRaised.Dec(),
		RewardsIssued:  res.RewardsIssued,
		RewardFailures: res.RewardFailures,
	})
}

// SetGovernance 开关里程碑投票
func (h *CampaignHandler) SetGovernance(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	from, ok := sender(c)
	if !ok {
		return
	}
	var req GovernanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.campaignLogic.SetGovernance(c.Request.Context(), addr, from, *req.Enabled); err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "治理设置已更新", gin.H{"governanceEnabled": *req.Enabled})
}

// GetMilestones 全部里程碑
func (h *CampaignHandler) GetMilestones(c *gin.Context) {
	campaign, ok := h.campaign(c)
	if !ok {
		return
	}
	milestones := campaign.Milestones()
	result := make([]MilestoneResponse, len(milestones))
	for i, m := range milestones {
		result[i] = ToMilestoneResponse(m)
	}
	SuccessResponse(c, http.StatusOK, "ok", result)
}

// CompleteMilestone 标记里程碑完成
func (h *CampaignHandler) CompleteMilestone(c *gin.Context) {
	h.creatorMilestoneAction(c, "里程碑已提交", h.campaignLogic.CompleteMilestone)
}

// StartVoting 发起投票
func (h *CampaignHandler) StartVoting(c *gin.Context) {
	h.creatorMilestoneAction(c, "投票已开始", h.campaignLogic.StartVoting)
}

func (h *CampaignHandler) creatorMilestoneAction(c *gin.Context, message string, action func(ctx context.Context, addr, from common.Address, id int) error) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	id, ok := milestoneParam(c)
	if !ok {
		return
	}
	from, ok := sender(c)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), addr, from, id); err != nil {
		FailResponse(c, err)
		return
	}
	campaign, err := h.campaignLogic.GetCampaign(addr)
	if err != nil {
		FailResponse(c, err)
		return
	}
	m, err := campaign.Milestone(id)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, message, ToMilestoneResponse(m))
}

// CastVote 贡献者投票，X-Sender 为投票人
func (h *CampaignHandler) CastVote(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	id, ok := milestoneParam(c)
	if !ok {
		return
	}
	voter, ok := sender(c)
	if !ok {
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	resolved, err := h.campaignLogic.CastVote(c.Request.Context(), addr, voter, id, *req.Support)
	if err != nil {
		FailResponse(c, err)
		return
	}
	h.respondVote(c, addr, id, voter, "投票成功", gin.H{"resolved": resolved})
}

// GetVote 投票计数，带 X-Sender 时附带其投票
func (h *CampaignHandler) GetVote(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	id, ok := milestoneParam(c)
	if !ok {
		return
	}
	var voter common.Address
	if raw := c.GetHeader(SenderHeader); raw != "" {
		if voter, ok = sender(c); !ok {
			return
		}
	}
	h.respondVote(c, addr, id, voter, "ok", nil)
}

func (h *CampaignHandler) respondVote(c *gin.Context, addr common.Address, id int, voter common.Address, message string, extra gin.H) {
	campaign, err := h.campaignLogic.GetCampaign(addr)
	if err != nil {
		FailResponse(c, err)
		return
	}
	status, err := campaign.VoteOf(id, voter)
	if err != nil {
		FailResponse(c, err)
		return
	}
	if extra == nil {
		SuccessResponse(c, http.StatusOK, message, ToVoteResponse(status))
		return
	}
	extra["vote"] = ToVoteResponse(status)
	SuccessResponse(c, http.StatusOK, message, extra)
}

// ResolveVote 投票期结束后任何人可计票
func (h *CampaignHandler) ResolveVote(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	id, ok := milestoneParam(c)
	if !ok {
		return
	}
	approved, err := h.campaignLogic.ResolveVote(c.Request.Context(), addr, id)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "计票完成", gin.H{"milestoneId": id, "approved": approved})
}

// ReleaseMilestone 释放里程碑资金
func (h *CampaignHandler) ReleaseMilestone(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	id, ok := milestoneParam(c)
	if !ok {
		return
	}
	amount, err := h.campaignLogic.ReleaseMilestoneFunds(c.Request.Context(), addr, id)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "里程碑资金已释放", AmountResponse{Amount: amount.Dec()})
}

// ReleaseAll 无里程碑活动一次性释放
func (h *CampaignHandler) ReleaseAll(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	from, ok := sender(c)
	if !ok {
		return
	}
	amount, err := h.campaignLogic.ReleaseAllFunds(c.Request.Context(), addr, from)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "资金已释放", AmountResponse{Amount: amount.Dec()})
}

// ClaimRefund 失败活动退款
func (h *CampaignHandler) ClaimRefund(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	from, ok := sender(c)
	if !ok {
		return
	}
	amount, err := h.campaignLogic.ClaimRefund(c.Request.Context(), addr, from)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "退款成功", AmountResponse{Amount: amount.Dec()})
}

// PostUpdate 创建者发布公告
func (h *CampaignHandler) PostUpdate(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	from, ok := sender(c)
	if !ok {
		return
	}
	var req PostUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	milestoneID := -1
	if req.MilestoneID != nil {
		milestoneID = *req.MilestoneID
	}
	u, err := h.campaignLogic.PostUpdate(c.Request.Context(), addr, from, req.Title, req.ContentHash, milestoneID)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "公告已发布", ToUpdateResponse(u))
}

// GetUpdates 公告列表，?milestone= 过滤关联里程碑
func (h *CampaignHandler) GetUpdates(c *gin.Context) {
	campaign, ok := h.campaign(c)
	if !ok {
		return
	}
	raw, filtered := c.GetQuery("milestone")
	if !filtered {
		SuccessResponse(c, http.StatusOK, "ok", ToUpdateResponseList(campaign.Updates()))
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		BadRequest(c, "无效的里程碑ID")
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", ToUpdateResponseList(campaign.UpdatesByMilestone(id)))
}

// GetUpdate 单条公告
func (h *CampaignHandler) GetUpdate(c *gin.Context) {
	campaign, ok := h.campaign(c)
	if !ok {
		return
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		BadRequest(c, "无效的公告ID")
		return
	}
	u, found := campaign.Update(id)
	if !found {
		ErrorResponse(c, http.StatusNotFound, CodeNotFound, "公告不存在")
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", ToUpdateResponse(u))
}
