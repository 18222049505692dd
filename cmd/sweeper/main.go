package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/database"
	"github.com/qs3c/vpn_go_server/internal/pkg/cron"
	"github.com/qs3c/vpn_go_server/internal/pkg/email"
	"github.com/qs3c/vpn_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vpn_go_server/internal/pkg/queue"
	"github.com/qs3c/vpn_go_server/internal/pkg/yookassa"
	"github.com/qs3c/vpn_go_server/internal/repository"
	"github.com/qs3c/vpn_go_server/internal/service"
)

// 巡检进程。支付巡检、权益巡检和清理队列消费
// 与 HTTP 服务分开部署，可以独立重启。
func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}
	log.Println("Redis connected")

	cleanupQueue := queue.NewQueue(rdb, cfg.Sweep.CleanupQueue)
	publisher := pubsub.NewPublisher(rdb)

	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	gateway := yookassa.NewClient(
		cfg.YooKassa.ShopID,
		cfg.YooKassa.SecretKey,
		cfg.YooKassa.ReturnURL,
	)

	settlement := service.NewSettlementService(db, paymentRepo, gateway, publisher, cfg)
	enforcer := service.NewEnforcerService(
		db,
		userRepo,
		repository.NewDeviceRepository(db),
		repository.NewNodeRepository(db),
		cleanupQueue,
		publisher,
		cfg,
	)

	// 邮件提醒可选，未配置 SMTP 时跳过
	var mailer *email.Service
	if cfg.Email.SMTPHost != "" {
		mailer = email.NewService(&cfg.Email)
		log.Println("Email reminders enabled")
	}

	sweeper := cron.NewService(settlement, enforcer, userRepo, paymentRepo, cleanupQueue, mailer, cfg)
	sweeper.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweeper.Stop()
	log.Println("Sweeper stopped")
}
