package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/api/handler"
	"github.com/qs3c/vpn_go_server/internal/api/middleware"
)

type Router struct {
	authHandler      *handler.AuthHandler
	userHandler      *handler.UserHandler
	deviceHandler    *handler.DeviceHandler
	paymentHandler   *handler.PaymentHandler
	adminHandler     *handler.AdminHandler
	websocketHandler *handler.WebSocketHandler
	userLoader       middleware.UserLoader
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	deviceHandler *handler.DeviceHandler,
	paymentHandler *handler.PaymentHandler,
	adminHandler *handler.AdminHandler,
	websocketHandler *handler.WebSocketHandler,
	userLoader middleware.UserLoader,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		userHandler:      userHandler,
		deviceHandler:    deviceHandler,
		paymentHandler:   paymentHandler,
		adminHandler:     adminHandler,
		websocketHandler: websocketHandler,
		userLoader:       userLoader,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		// 公开接口 - 在售套餐
		api.GET("/tariffs", r.paymentHandler.ListTariffs)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.GET("/referral", r.userHandler.GetReferral)
				user.GET("/payments", r.userHandler.ListPayments)
			}

			// 设备
			devices := authenticated.Group("/devices")
			{
				devices.POST("", r.deviceHandler.Add)
				devices.GET("", r.deviceHandler.List)
				devices.GET("/:id/config", r.deviceHandler.GetConfig)
				devices.DELETE("/:id", r.deviceHandler.Remove)
			}

			// 支付
			payments := authenticated.Group("/payments")
			{
				payments.POST("/tariff", r.paymentHandler.BuyTariff)
				payments.POST("/addon", r.paymentHandler.BuyAddon)
				payments.POST("/topup", r.paymentHandler.TopUp)
			}
		}

		// 管理接口
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(r.cfg.JWT.Secret), middleware.Admin(r.userLoader))
		{
			admin.POST("/nodes", r.adminHandler.CreateNode)
			admin.GET("/nodes", r.adminHandler.ListNodes)
			admin.PUT("/nodes/:id", r.adminHandler.UpdateNode)
			admin.POST("/tariffs", r.adminHandler.CreateTariff)
			admin.DELETE("/tariffs/:id", r.adminHandler.DeactivateTariff)
			admin.POST("/grant", r.adminHandler.GrantSubscription)
			admin.POST("/addon", r.adminHandler.GrantAddon)
			admin.GET("/stats", r.adminHandler.PaymentStats)
			admin.GET("/stats/system", r.adminHandler.SystemStats)
			admin.GET("/users", r.adminHandler.ListUsers)
			admin.GET("/users/:query", r.adminHandler.GetUser)
			admin.POST("/broadcast", r.adminHandler.Broadcast)
		}
	}

	return engine
}
