package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/ethereum/go-ethereum/core/types"
)

// HeaderReader 读取区块头，*ethclient.Client 满足该接口
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// BlockClock 以最新区块时间为准的时钟，时间只前进不后退
type BlockClock struct {
	reader  HeaderReader
	timeout time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewBlockClock 创建区块时钟
func NewBlockClock(reader HeaderReader) *BlockClock {
	return &BlockClock{reader: reader, timeout: 5 * time.Second}
}

// Now 获取最新区块时间，节点不可用时沿用上一次读到的时间
func (c *BlockClock) Now() time.Time {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	header, err := c.reader.HeaderByNumber(ctx, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		logger.Error("Failed to fetch latest block header: %v", err)
		return c.last
	}
	ts := time.Unix(int64(header.Time), 0).UTC()
	if ts.After(c.last) {
		c.last = ts
	}
	return c.last
}

// LatestBlock 当前最新区块号
func (c *BlockClock) LatestBlock(ctx context.Context) (uint64, error) {
	header, err := c.reader.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}
