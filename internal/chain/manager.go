package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blues/cfs-escrow/internal/config"
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/ethereum/go-ethereum/ethclient"
)

var supportedTypes = []string{"ethereum", "polygon", "bsc", "arbitrum", "optimism"}

// Manager 持有账本、时钟以及可选的链客户端
type Manager struct {
	mu     sync.RWMutex
	bank   *Bank
	clock  escrow.Clock
	manual *ManualClock
	client *ethclient.Client // 仅 clock.source 为 chain 时存在
	config config.ChainConfig
}

// NewManager 按配置创建
func NewManager(chainCfg config.ChainConfig, clockCfg config.ClockConfig) (*Manager, error) {
	m := &Manager{
		bank:   NewBank(),
		config: chainCfg,
	}
	if err := m.initClock(chainCfg, clockCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize clock: %w", err)
	}
	return m, nil
}

func (m *Manager) initClock(chainCfg config.ChainConfig, clockCfg config.ClockConfig) error {
	logger.Info("Initializing clock (source: %s)", clockCfg.Source)
	switch clockCfg.Source {
	case "", "system":
		m.clock = escrow.SystemClock{}
	case "manual":
		m.manual = NewManualClock(time.Now())
		m.clock = m.manual
	case "chain":
		client, err := m.createChainClient(chainCfg)
		if err != nil {
			return err
		}
		m.client = client
		m.clock = NewBlockClock(client)
	default:
		return fmt.Errorf("unsupported clock source: %s", clockCfg.Source)
	}
	return nil
}

// createChainClient 创建链客户端
func (m *Manager) createChainClient(cfg config.ChainConfig) (*ethclient.Client, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("no RPC URL configured")
	}
	isSupported := false
	for _, t := range supportedTypes {
		if cfg.ChainType == t {
			isSupported = true
			break
		}
	}
	if !isSupported {
		return nil, fmt.Errorf("unsupported chain type %s, supported types: %v", cfg.ChainType, supportedTypes)
	}

	logger.Info("Creating %s client connection (RPC: %s)", cfg.ChainType, cfg.RpcUrl)
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.ChainType, err)
	}
	if err := testClientConnection(client, cfg.ChainId); err != nil {
		client.Close()
		return nil, fmt.Errorf("client connection test failed (%s): %w", cfg.ChainType, err)
	}
	logger.Info("Successfully created %s client", cfg.ChainType)
	return client, nil
}

// testClientConnection 测试连接并核对链ID
func testClientConnection(client *ethclient.Client, want int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if want != 0 && id.Int64() != want {
		return fmt.Errorf("chain id mismatch: configured %d, node reports %d", want, id.Int64())
	}
	return nil
}

// Bank 账本
func (m *Manager) Bank() *Bank {
	return m.bank
}

// Clock 时钟
func (m *Manager) Clock() escrow.Clock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clock
}

// ManualClock 手动时钟，非 manual 模式返回 nil
func (m *Manager) ManualClock() *ManualClock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manual
}

// GetChainId 获取链ID
func (m *Manager) GetChainId() int64 {
	return m.config.ChainId
}

// GetHealthStatus 获取健康状态
func (m *Manager) GetHealthStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	health := map[string]interface{}{
		"chain_type": m.config.ChainType,
		"chain_id":   m.config.ChainId,
		"accounts":   m.bank.Accounts(),
		"now":        m.clock.Now().Format(time.RFC3339),
	}
	if m.client == nil {
		health["client_status"] = "not_used"
		return health
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := m.client.BlockNumber(ctx); err != nil {
		health["client_status"] = "disconnected"
	} else {
		health["client_status"] = "connected"
	}
	return health
}

// Close 关闭管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Close()
	}
	logger.Info("Chain manager closed")
	return nil
}
