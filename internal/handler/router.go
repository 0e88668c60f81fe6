package handler

import (
	"starfarm/internal/config"
	"starfarm/pkg/clock"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, clk clock.Clock) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, clk)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 账户相关
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.GET("/transactions", h.ListTransactions)
		}

		// 农场相关
		farm := api.Group("/farm")
		{
			farm.POST("/buy", h.BuyFarm)
			farm.GET("/list", h.ListFarms)
			farm.POST("/activate", h.ActivateFarms)
			farm.POST("/collect", h.CollectIncome)
		}

		// 道具相关
		boost := api.Group("/boost")
		{
			boost.POST("/buy", h.BuyBoost)
			boost.GET("/list", h.ListBoosts)
		}

		// 邀请相关
		referral := api.Group("/referral")
		{
			referral.POST("/register", h.RegisterReferral)
			referral.GET("/count", h.GetReferralCount)
		}

		// 拍卖相关
		auction := api.Group("/auction")
		{
			auction.GET("/list", h.ListAuctions)
			auction.POST("/bid", h.PlaceBid)
			auction.GET("/bids", h.ListAuctionBids)
		}

		// 娱乐场相关
		casino := api.Group("/casino")
		{
			casino.POST("/dice", h.PlayDice)
			casino.POST("/slots", h.PlaySlots)
			casino.POST("/roulette", h.PlayRoulette)
		}

		// 管理接口
		admin := api.Group("/admin")
		admin.Use(AdminAuthMiddleware(cfg))
		{
			admin.POST("/grant/stars", h.GrantStars)
			admin.POST("/grant/farm", h.GrantFarm)
			admin.POST("/grant/boost", h.GrantBoost)
			admin.POST("/auction/create", h.CreateAuction)
			admin.POST("/ban", h.BanUser)
			admin.POST("/unban", h.UnbanUser)
		}
	}

	// 指标采集
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
