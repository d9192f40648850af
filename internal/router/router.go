package router

import (
	"net/http"
	"time"

	"github.com/blues/cfs-escrow/internal/chain"
	"github.com/blues/cfs-escrow/internal/config"
	"github.com/blues/cfs-escrow/internal/handler"
	"github.com/blues/cfs-escrow/internal/logger"
	"github.com/blues/cfs-escrow/internal/logic"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps 路由依赖
type Deps struct {
	DB        *gorm.DB
	Chain     *chain.Manager // 可选，仅用于健康检查
	Campaigns *logic.CampaignLogic
	Accounts  *logic.AccountLogic
}

func Setup(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		health := gin.H{
			"status":    "ok",
			"service":   "cfs-escrow",
			"campaigns": deps.Campaigns.Count(),
		}
		if deps.Chain != nil {
			health["chain"] = deps.Chain.GetHealthStatus()
		}
		c.JSON(http.StatusOK, health)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	campaignHandler := handler.NewCampaignHandler(deps.Campaigns, cfg.Reward.Enabled)
	recordHandler := handler.NewRecordHandler(
		logic.NewContributeRecordLogic(deps.DB),
		logic.NewRefundRecordLogic(deps.DB),
		logic.NewSettlementRecordLogic(deps.DB),
		logic.NewEventLogic(deps.DB),
	)
	accountHandler := handler.NewAccountHandler(deps.Accounts)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.GET("/:address", campaignHandler.GetCampaign)
			campaigns.POST("/:address/contributions", campaignHandler.Contribute)
			campaigns.GET("/:address/contributions", recordHandler.GetCampaignContributions)
			campaigns.GET("/:address/contributions/:contributor", campaignHandler.GetContribution)
			campaigns.GET("/:address/stats", recordHandler.GetContributionStats)
			campaigns.POST("/:address/finalize", campaignHandler.Finalize)
			campaigns.POST("/:address/governance", campaignHandler.SetGovernance)
			campaigns.POST("/:address/release", campaignHandler.ReleaseAll)
			campaigns.POST("/:address/refund", campaignHandler.ClaimRefund)
			campaigns.GET("/:address/refunds", recordHandler.GetCampaignRefunds)
			campaigns.GET("/:address/settlements", recordHandler.GetCampaignSettlements)
			campaigns.GET("/:address/events", recordHandler.GetCampaignEvents)

			milestones := campaigns.Group("/:address/milestones")
			{
				milestones.GET("", campaignHandler.GetMilestones)
				milestones.POST("/:id/complete", campaignHandler.CompleteMilestone)
				milestones.POST("/:id/voting", campaignHandler.StartVoting)
				milestones.POST("/:id/votes", campaignHandler.CastVote)
				milestones.GET("/:id/votes", campaignHandler.GetVote)
				milestones.POST("/:id/resolve", campaignHandler.ResolveVote)
				milestones.POST("/:id/release", campaignHandler.ReleaseMilestone)
			}

			updates := campaigns.Group("/:address/updates")
			{
				updates.POST("", campaignHandler.PostUpdate)
				updates.GET("", campaignHandler.GetUpdates)
				updates.GET("/:id", campaignHandler.GetUpdate)
			}
		}

		v1.GET("/creators/:address/campaigns", campaignHandler.GetCreatorCampaigns)

		accounts := v1.Group("/accounts")
		{
			accounts.GET("/:address", accountHandler.GetAccount)
			accounts.GET("/:address/rewards", accountHandler.GetRewards)
			accounts.GET("/:address/contributions", recordHandler.GetUserContributions)
		}

		// 测试网工具，生产模式不注册
		if !cfg.IsRelease() {
			dev := v1.Group("/dev")
			dev.POST("/accounts/:address/fund", accountHandler.Fund)
			dev.POST("/clock/advance", accountHandler.AdvanceClock)
		}
	}

	return r
}

// requestLogger 请求日志
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()
		logger.GetDefaultZapLogger().Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(begin)),
			zap.String("sender", c.GetHeader(handler.SenderHeader)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, "+handler.SenderHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
