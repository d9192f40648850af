package handler

import (
	"net/http"

	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/gin-gonic/gin"
)

// RecordHandler 贡献、退款、结算记录与事件日志查询
type RecordHandler struct {
	contributeLogic *logic.ContributeRecordLogic
	refundLogic     *logic.RefundRecordLogic
	settlementLogic *logic.SettlementRecordLogic
	eventLogic      *logic.EventLogic
}

// NewRecordHandler 创建记录处理器
func NewRecordHandler(
	contributeLogic *logic.ContributeRecordLogic,
	refundLogic *logic.RefundRecordLogic,
	settlementLogic *logic.SettlementRecordLogic,
	eventLogic *logic.EventLogic,
) *RecordHandler {
	return &RecordHandler{
		contributeLogic: contributeLogic,
		refundLogic:     refundLogic,
		settlementLogic: settlementLogic,
		eventLogic:      eventLogic,
	}
}

// GetCampaignContributions 活动的贡献记录
func (h *RecordHandler) GetCampaignContributions(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	page, pageSize := logic.NormalizePage(pageQuery(c))
	records, total, err := h.contributeLogic.GetCampaignContributeRecords(c.Request.Context(), addr, page, pageSize)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", PagedResponse{
		Records:    ToContributeRecordResponseList(records),
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetContributionStats 活动的贡献统计
func (h *RecordHandler) GetContributionStats(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	stats, err := h.contributeLogic.GetContributeStats(c.Request.Context(), addr)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", stats)
}

// GetUserContributions 地址的全部贡献记录
func (h *RecordHandler) GetUserContributions(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	page, pageSize := logic.NormalizePage(pageQuery(c))
	records, total, err := h.contributeLogic.GetUserContributeRecords(c.Request.Context(), addr, page, pageSize)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", PagedResponse{
		Records:    ToContributeRecordResponseList(records),
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetCampaignRefunds 活动的退款记录
func (h *RecordHandler) GetCampaignRefunds(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	page, pageSize := logic.NormalizePage(pageQuery(c))
	records, total, err := h.refundLogic.GetCampaignRefunds(c.Request.Context(), addr, page, pageSize)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", PagedResponse{
		Records:    ToRefundRecordResponseList(records),
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetCampaignSettlements 活动的资金释放记录
func (h *RecordHandler) GetCampaignSettlements(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	page, pageSize := logic.NormalizePage(pageQuery(c))
	records, total, err := h.settlementLogic.GetCampaignSettlements(c.Request.Context(), addr, page, pageSize)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", PagedResponse{
		Records:    ToSettlementRecordResponseList(records),
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetCampaignEvents 活动事件日志，?type= 过滤事件类型
func (h *RecordHandler) GetCampaignEvents(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	page, pageSize := logic.NormalizePage(pageQuery(c))
	rows, total, err := h.eventLogic.GetCampaignEvents(c.Request.Context(), addr, c.Query("type"), page, pageSize)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", PagedResponse{
		Records:    ToEventResponseList(rows),
		Pagination: newPagination(page, pageSize, total),
	})
}
