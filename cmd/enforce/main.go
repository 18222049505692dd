package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/database"
	"github.com/qs3c/vpn_go_server/internal/repository"
	"github.com/qs3c/vpn_go_server/internal/service"
)

var userID = flag.Int64("user", 0, "Enforce a single user ID (0 = all users)")

// 一次性权益巡检工具。手动对全量或单个用户执行设备修剪，
// 排障和数据修复时使用。
func main() {
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	enforcer := service.NewEnforcerService(
		db,
		userRepo,
		repository.NewDeviceRepository(db),
		repository.NewNodeRepository(db),
		nil,
		nil,
		cfg,
	)

	ctx := context.Background()

	if *userID > 0 {
		removed, err := enforcer.EnforceUser(ctx, *userID)
		if err != nil {
			log.Fatalf("Enforce user %d: %v", *userID, err)
		}
		log.Printf("User %d: removed %d devices", *userID, removed)
		return
	}

	ids, err := userRepo.ListIDs()
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}

	total := 0
	for _, id := range ids {
		removed, err := enforcer.EnforceUser(ctx, id)
		if err != nil {
			log.Printf("User %d: %v", id, err)
			continue
		}
		total += removed
	}
	log.Printf("Done: removed %d devices across %d users", total, len(ids))
}
