package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Topic 事件类型的 keccak256 主题哈希，与 EVM 日志 topic0 的取法一致
func Topic(eventType string) common.Hash {
	return crypto.Keccak256Hash([]byte(eventType))
}
