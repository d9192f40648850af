package handler

import (
	"errors"
	"net/http"

	"github.com/blues/cfs-escrow/internal/chain"
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/blues/cfs-escrow/internal/registry"
	"github.com/gin-gonic/gin"
)

// 非引擎错误码
const (
	CodeNotFound      = "NotFound"
	CodeBadRequest    = "InvalidParameter"
	CodeInternalError = "InternalError"
)

// statusByKind 引擎错误分类对应的 HTTP 状态码
var statusByKind = map[string]int{
	"InvalidParameter":      http.StatusBadRequest,
	"Unauthorized":          http.StatusForbidden,
	"PhaseViolation":        http.StatusConflict,
	"LimitExceeded":         http.StatusUnprocessableEntity,
	"AlreadyDone":           http.StatusConflict,
	"InsufficientConsensus": http.StatusConflict,
	"TransferFailure":       http.StatusBadGateway,
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// BadRequest 参数错误
func BadRequest(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, CodeBadRequest, message)
}

// FailResponse 按错误分类选择状态码
func FailResponse(c *gin.Context, err error) {
	status, code := classify(err)
	ErrorResponse(c, status, code, err.Error())
}

func classify(err error) (int, string) {
	if kind := escrow.KindOf(err); kind != "" {
		return statusByKind[kind], kind
	}
	switch {
	case errors.Is(err, registry.ErrCampaignNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, chain.ErrInvalidAmount):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, logic.ErrManualClockDisabled):
		return http.StatusConflict, "PhaseViolation"
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}
