package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/api"
	"github.com/qs3c/vpn_go_server/internal/api/handler"
	"github.com/qs3c/vpn_go_server/internal/database"
	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/pkg/email"
	"github.com/qs3c/vpn_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vpn_go_server/internal/pkg/queue"
	"github.com/qs3c/vpn_go_server/internal/pkg/ws"
	"github.com/qs3c/vpn_go_server/internal/pkg/yookassa"
	"github.com/qs3c/vpn_go_server/internal/repository"
	"github.com/qs3c/vpn_go_server/internal/service"
	"github.com/qs3c/vpn_go_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Tariff{},
		&model.Device{},
		&model.Payment{},
		&model.Node{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	// 清理队列和通知
	cleanupQueue := queue.NewQueue(rdb, cfg.Sweep.CleanupQueue)
	publisher := pubsub.NewPublisher(rdb)
	subscriber := pubsub.NewSubscriber(rdb)

	// WebSocket Hub
	wsHub := ws.NewHub()

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	tariffRepo := repository.NewTariffRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	nodeRepo := repository.NewNodeRepository(db)

	// 支付网关
	gateway := yookassa.NewClient(
		cfg.YooKassa.ShopID,
		cfg.YooKassa.SecretKey,
		cfg.YooKassa.ReturnURL,
	)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, publisher, cfg)
	settlement := service.NewSettlementService(db, paymentRepo, gateway, publisher, cfg)
	enforcer := service.NewEnforcerService(db, userRepo, deviceRepo, nodeRepo, cleanupQueue, publisher, cfg)
	adminService := service.NewAdminService(userRepo, tariffRepo, nodeRepo, deviceRepo, paymentRepo, publisher)

	// 支付观察：每个账户同时只保留一个观察任务
	registry := worker.NewRegistry()
	watcher := worker.NewWatcher(
		registry,
		settlement,
		time.Duration(cfg.Watcher.PollSeconds)*time.Second,
		time.Duration(cfg.Watcher.TimeoutSeconds)*time.Second,
	)
	paymentService := service.NewPaymentService(paymentRepo, tariffRepo, userRepo, settlement, gateway, watcher, cfg)
	watcher.OnTimeout = paymentService.NotifyTimeout(publisher)

	// 邮件回执可选，未配置 SMTP 时跳过
	var mailer *email.Service
	if cfg.Email.SMTPHost != "" {
		mailer = email.NewService(&cfg.Email)
		log.Println("Email receipts enabled")
	}

	// 通知桥：Redis 订阅转发到本进程的 WebSocket 连接，
	// 成功支付顺带发邮件回执
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	go func() {
		err := subscriber.Subscribe(bridgeCtx, func(n *pubsub.Notification) {
			msg := &ws.Message{Type: n.Kind, Data: n}
			if n.Kind == pubsub.KindBroadcast && n.UserID == 0 {
				if err := wsHub.Broadcast(msg); err != nil {
					log.Printf("Broadcast failed: %v", err)
				}
				return
			}
			if err := wsHub.SendToUser(n.UserID, msg); err != nil {
				log.Printf("Push to user %d failed: %v", n.UserID, err)
			}

			if n.Kind == pubsub.KindPaymentSucceeded && mailer != nil {
				go sendReceipt(mailer, userRepo, cfg.Billing.Currency, n)
			}
		})
		if err != nil && bridgeCtx.Err() == nil {
			log.Printf("Notification bridge exited: %v", err)
		}
	}()

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(enforcer, paymentService, authService)
	deviceHandler := handler.NewDeviceHandler(enforcer)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	adminHandler := handler.NewAdminHandler(adminService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		userHandler,
		deviceHandler,
		paymentHandler,
		adminHandler,
		websocketHandler,
		authService,
		cfg,
	)
	engine := router.Setup()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 优雅退出：先停 HTTP，再等观察任务收尾
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}

	stopBridge()
	registry.Shutdown()
	log.Println("Server stopped")
}

// sendReceipt 给留有邮箱的用户发支付回执，失败只记日志
func sendReceipt(mailer *email.Service, userRepo *repository.UserRepository, currency string, n *pubsub.Notification) {
	user, err := userRepo.GetByID(n.UserID)
	if err != nil || user.Email == nil {
		return
	}
	if err := mailer.SendPaymentReceipt(*user.Email, n.Amount, currency, n.Purpose); err != nil {
		log.Printf("Receipt email to user %d failed: %v", n.UserID, err)
	}
}
