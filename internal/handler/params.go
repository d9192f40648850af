package handler

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

// SenderHeader 调用方地址，相当于交易发送者
const SenderHeader = "X-Sender"

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("无效的地址: %q", s)
	}
	return common.HexToAddress(s), nil
}

// addressParam 读取路径中的地址，失败时已写入响应
func addressParam(c *gin.Context, name string) (common.Address, bool) {
	addr, err := parseAddress(c.Param(name))
	if err != nil {
		BadRequest(c, err.Error())
		return common.Address{}, false
	}
	return addr, true
}

// sender 读取 X-Sender，失败时已写入响应
func sender(c *gin.Context) (common.Address, bool) {
	addr, err := parseAddress(c.GetHeader(SenderHeader))
	if err != nil {
		BadRequest(c, "缺少或无效的 "+SenderHeader+" 请求头")
		return common.Address{}, false
	}
	return addr, true
}

// milestoneParam 读取里程碑 ID
func milestoneParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		BadRequest(c, "无效的里程碑ID")
		return 0, false
	}
	return id, true
}

func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("无效的金额 %q: %w", s, err)
	}
	return v, nil
}

// maxDurationSeconds 换算成 time.Duration 不溢出的最大秒数
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

func parseSeconds(field string, n int64) (time.Duration, error) {
	if n <= 0 || n > maxDurationSeconds {
		return 0, fmt.Errorf("%s 必须在 1 到 %d 之间", field, maxDurationSeconds)
	}
	return time.Duration(n) * time.Second, nil
}

// pageQuery 读取 page、page_size
func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return page, pageSize
}
