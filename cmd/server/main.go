package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/cfs-escrow/internal/chain"
	"github.com/blues/cfs-escrow/internal/config"
	"github.com/blues/cfs-escrow/internal/database"
	"github.com/blues/cfs-escrow/internal/escrow"
	"github.com/blues/cfs-escrow/internal/event"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/blues/cfs-escrow/internal/metrics"
	"github.com/blues/cfs-escrow/internal/registry"
	"github.com/blues/cfs-escrow/internal/reward"
	"github.com/blues/cfs-escrow/internal/router"
	"github.com/blues/cfs-escrow/internal/scheduler"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径，为空时按默认路径搜索")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		logger.Fatal("Unable to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Setup(cfg.Log.Options()); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化账本与时钟
	chainManager, err := chain.NewManager(cfg.Chain, cfg.Clock)
	if err != nil {
		logger.Fatal("Failed to initialize chain manager: %v", err)
	}

	escrowMetrics := metrics.Escrow()
	dispatcher, err := event.NewDispatcher(db, event.NewDefaultProcessors(db, event.NewMetricsProcessor(escrowMetrics)), cfg.Task.Workers)
	if err != nil {
		logger.Fatal("Failed to initialize event dispatcher: %v", err)
	}

	var minter *reward.Minter
	deps := escrow.Deps{
		Clock:   chainManager.Clock(),
		Bank:    chainManager.Bank(),
		Emitter: dispatcher,
	}
	if cfg.Reward.Enabled {
		minAmount, err := uint256.FromDecimal(cfg.Reward.MinAmount)
		if err != nil {
			logger.Fatal("Invalid reward.min_amount %q: %v", cfg.Reward.MinAmount, err)
		}
		minter = reward.NewMinter(db, minAmount)
		deps.Reward = minter
	}

	// 恢复活动
	reg := registry.New(common.HexToAddress(cfg.Chain.FactoryAddress), deps)
	store := logic.NewStore(db, chainManager.Bank(), reg)
	restored, err := store.Load(context.Background(), deps)
	if err != nil {
		logger.Fatal("Failed to restore state: %v", err)
	}
	escrowMetrics.SetCampaigns(restored)

	campaignLogic := logic.NewCampaignLogic(reg, store)
	accountLogic := logic.NewAccountLogic(chainManager.Bank(), store, chainManager.ManualClock(), minter)

	// 设置Gin模式
	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(cfg, router.Deps{
		DB:        db,
		Chain:     chainManager,
		Campaigns: campaignLogic,
		Accounts:  accountLogic,
	})

	// 启动定时任务
	taskManager, err := scheduler.NewManager(campaignLogic, dispatcher, cfg.Task, escrowMetrics)
	if err != nil {
		logger.Fatal("Failed to create task manager: %v", err)
	}
	if err := taskManager.Start(); err != nil {
		logger.Fatal("Failed to start task manager: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Received signal %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
	taskManager.Stop()
	if err := dispatcher.Close(); err != nil {
		logger.Error("Failed to close event dispatcher: %v", err)
	}
	if err := chainManager.Close(); err != nil {
		logger.Error("Failed to close chain manager: %v", err)
	}
	logger.Info("Server exited")
}
