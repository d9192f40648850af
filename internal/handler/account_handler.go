package handler

import (
	"net/http"

	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/gin-gonic/gin"
)

// AccountHandler 账户与测试网工具
type AccountHandler struct {
	accountLogic *logic.AccountLogic
}

// NewAccountHandler 创建账户处理器
func NewAccountHandler(accountLogic *logic.AccountLogic) *AccountHandler {
	return &AccountHandler{accountLogic: accountLogic}
}

// GetAccount 账户余额
func (h *AccountHandler) GetAccount(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", AccountResponse{
		Address: addr.Hex(),
		Balance: h.accountLogic.Balance(addr).Dec(),
	})
}

// GetRewards 地址持有的贡献凭证
func (h *AccountHandler) GetRewards(c *gin.Context) {
	addr, ok := addressParam(c, "address")
	if !ok {
		return
	}
	tokens, err := h.accountLogic.Rewards(c.Request.Context(), addr)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", ToRewardTokenResponseList(tokens))
}

// Fund 水龙头入账
func (h *AccountHandler) Fund(c *gin.Context) {
	addr, ok := addressParam(c, "address")
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
	balance, err := h.accountLogic.Fund(c.Request.Context(), addr, amount)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "入账成功", AccountResponse{Address: addr.Hex(), Balance: balance.Dec()})
}

// AdvanceClock 推进手动时钟
func (h *AccountHandler) AdvanceClock(c *gin.Context) {
	var req AdvanceClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	d, err := parseSeconds("seconds", req.Seconds)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	now, err := h.accountLogic.AdvanceClock(d)
	if err != nil {
		FailResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "时钟已推进", gin.H{"now": now})
}
