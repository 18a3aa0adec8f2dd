package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"shopfront-prototype/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	// Ensure writable dir for product images
	if cfg.UploadDir == "" {
		log.Fatalf("upload dir path is empty")
	}
	if abs, err := filepath.Abs(cfg.UploadDir); err == nil {
		cfg.UploadDir = abs
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to ensure upload dir %s: %v", cfg.UploadDir, err)
	}

	userRepo := core.NewPgUserRepository(db)

	if err := core.BootstrapAdmin(ctx, userRepo, cfg); err != nil {
		log.Fatalf("bootstrap admin failed: %v", err)
	}

	guard := core.NewSessionGuard(cfg)
	deps := core.RouterDeps{
		Auth:       core.NewRepositoryAuthService(userRepo),
		Users:      userRepo,
		Products:   core.NewPgProductRepository(db),
		Categories: core.NewPgCategoryRepository(db),
		Banners:    core.NewPgBannerRepository(db),
		Offers:     core.NewPgOfferRepository(db),
		Stats:      core.NewStatsService(redisClient),
		Limiter:    core.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		CSRFStore:  core.NewCSRFStore(cfg),
	}

	router := core.NewRouter(cfg, guard, deps)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("starting api server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
