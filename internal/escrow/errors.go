package escrow

import (
	"errors"
	"fmt"
)

// 错误分类，调用方通过 errors.Is 判断
var (
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrPhaseViolation        = errors.New("phase violation")
	ErrLimitExceeded         = errors.New("limit exceeded")
	ErrAlreadyDone           = errors.New("already done")
	ErrInsufficientConsensus = errors.New("insufficient consensus")
	ErrTransferFailure       = errors.New("transfer failure")
)

// kinds 错误分类到错误码的映射
var kinds = []struct {
	err  error
	code string
}{
	{ErrInvalidParameter, "InvalidParameter"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrPhaseViolation, "PhaseViolation"},
	{ErrLimitExceeded, "LimitExceeded"},
	{ErrAlreadyDone, "AlreadyDone"},
	{ErrInsufficientConsensus, "InsufficientConsensus"},
	{ErrTransferFailure, "TransferFailure"},
}

// KindOf 返回错误所属分类的错误码，非引擎错误返回空串
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return ""
}

func fail(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
