package router

import (
	"fmt"
	"strings"

	"github.com/affisync/internal/cache"
	"github.com/affisync/internal/config"
	adminhandlers "github.com/affisync/internal/http/handlers/admin"
	publichandlers "github.com/affisync/internal/http/handlers/public"
	"github.com/affisync/internal/logger"
	"github.com/affisync/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按回调/运维分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "afs"
	}
	redisClient := cache.Client()
	webhookRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:webhook", redisPrefix),
		WindowSeconds: cfg.Webhook.RateLimitWindowSeconds,
		MaxRequests:   cfg.Webhook.RateLimitMaxRequests,
		Message:       "webhook rate limit exceeded",
		RawHTTPStatus: true,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 联盟网络入站回调，按网络类型 + 来源 IP 限流
		apiV1.POST("/webhooks/affiliates/:network_type",
			RateLimitMiddleware(redisClient, webhookRule, KeyByIPAndPathParam("network_type")),
			publicHandler.AffiliateWebhook,
		)

		// 运维接口（需鉴权）
		admin := apiV1.Group("/admin")
		admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey))
		{
			// 网络配置管理
			admin.GET("/network-configs", adminHandler.ListNetworkConfigs)
			admin.GET("/network-configs/:id", adminHandler.GetNetworkConfig)
			admin.POST("/network-configs", adminHandler.CreateNetworkConfig)
			admin.PUT("/network-configs/:id", adminHandler.UpdateNetworkConfig)
			admin.DELETE("/network-configs/:id", adminHandler.DeleteNetworkConfig)
			admin.POST("/network-configs/:id/test", adminHandler.TestNetworkConnection)
			admin.POST("/network-configs/:id/sync", adminHandler.TriggerNetworkSync)
			admin.POST("/network-configs/:id/poll-conversions", adminHandler.PollNetworkConversions)
			admin.POST("/network-configs/:id/sync-commissions", adminHandler.SyncNetworkCommissions)
			admin.POST("/network-configs/:id/links", adminHandler.GenerateAffiliateLink)

			// 同步数据查询
			admin.GET("/products", adminHandler.ListAffiliateProducts)
			admin.GET("/conversions", adminHandler.ListConversions)
			admin.GET("/sync-operations", adminHandler.ListSyncOperations)
			admin.GET("/sync-operations/:id", adminHandler.GetSyncOperation)
			admin.GET("/commission-structures", adminHandler.ListCommissionStructures)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
