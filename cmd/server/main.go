package main // Entry point package

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/secure-file-vault/internal/captcha"
	"github.com/iliyamo/secure-file-vault/internal/config"
	"github.com/iliyamo/secure-file-vault/internal/database"
	"github.com/iliyamo/secure-file-vault/internal/handler"
	"github.com/iliyamo/secure-file-vault/internal/queue"
	"github.com/iliyamo/secure-file-vault/internal/repository"
	"github.com/iliyamo/secure-file-vault/internal/router"
	"github.com/iliyamo/secure-file-vault/internal/scanner"
	"github.com/iliyamo/secure-file-vault/internal/service"
	"github.com/iliyamo/secure-file-vault/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("ensure schema: %v", err)
	}
	cancel()

	blobs, err := storage.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("open blob store: %v", err)
	}

	users := repository.NewUserRepo(db)
	files := repository.NewFileRepo(db)
	scan := scanner.New(cfg.ScannerURL, cfg.ScannerAPIKey, cfg.ScannerTimeout)
	verifier := captcha.New(cfg.CaptchaSecret, cfg.CaptchaURL)

	// Audit events are best-effort; without a broker URL they are disabled.
	var events service.Publisher
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		events = service.NewAuditPublisher(url)
		go func() {
			if err := queue.StartAuditConsumer(); err != nil {
				log.Printf("audit consumer stopped: %v", err)
			}
		}()
	}

	svc := service.NewFileService(files, blobs, scan, events, cfg.ShareDefault, cfg.MaxUploadBytes)

	authH := handler.NewAuthHandler(cfg, users, verifier)
	fileH := handler.NewFileHandler(svc)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}

	e := echo.New()
	router.RegisterRoutes(e, authH, fileH, cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
