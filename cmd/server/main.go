package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mkrogh/tidende/internal/ai"
	"github.com/mkrogh/tidende/internal/articles"
	"github.com/mkrogh/tidende/internal/config"
	"github.com/mkrogh/tidende/internal/database"
	"github.com/mkrogh/tidende/internal/health"
	"github.com/mkrogh/tidende/internal/notify"
	"github.com/mkrogh/tidende/internal/ops"
	"github.com/mkrogh/tidende/internal/pipeline"
	"github.com/mkrogh/tidende/internal/prompts"
	"github.com/mkrogh/tidende/internal/storage"
	"github.com/mkrogh/tidende/internal/worker"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := worker.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init database: %v", err)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	if err := database.SeedCategories(db); err != nil {
		log.Fatalf("failed to seed categories: %v", err)
	}
	if cfg.SeedDevData {
		if err := database.SeedDevData(db); err != nil {
			log.Fatalf("failed to seed dev data: %v", err)
		}
	}

	// External service clients. Provider choice is fixed for the lifetime of
	// the process.
	var text ai.TextService
	switch cfg.AIProvider {
	case config.ProviderAnthropic:
		text = ai.NewAnthropicText(cfg.AnthropicAPIKey, cfg.TextModel, logger)
	default:
		text = ai.NewOpenAIText(cfg.OpenAIAPIKey, cfg.TextModel, cfg.SearchModel, logger)
	}
	image := ai.NewOpenAIImage(cfg.OpenAIAPIKey, cfg.ImageModel, logger)

	blob, err := storage.NewClient(cfg.BlobEndpoint, cfg.BlobAccessKey, cfg.BlobSecretKey, cfg.BlobBucket, cfg.BlobPublicURL, cfg.BlobUseSSL)
	if err != nil {
		log.Fatalf("failed to init blob store: %v", err)
	}

	if err := worker.InitClient(cfg.RedisURL); err != nil {
		log.Fatalf("failed to init task client: %v", err)
	}
	defer worker.CloseClient()

	reports, err := worker.NewReportCache(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to init report cache: %v", err)
	}
	defer reports.Close()

	promptStore := prompts.NewStore(db)
	articleStore := articles.NewStore(db)
	synth := pipeline.NewSynthesizer(text, promptStore, articleStore, worker.QueueEnqueuer{}, logger)
	discovery := pipeline.NewDiscovery(text, promptStore, synth, cfg.ItemCooldown, logger)

	sender := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	limiter := notify.NewRateLimiter(db, cfg.EmailDailyCap)
	fanout := notify.NewFanout(db, articleStore, limiter, sender, cfg.SiteURL, logger)

	stopWorker, err := worker.Start(&worker.Deps{
		Config:    cfg,
		DB:        db,
		Discovery: discovery,
		Fanout:    fanout,
		Prompts:   promptStore,
		Image:     image,
		Blob:      blob,
		Store:     articleStore,
		Reports:   reports,
	})
	if err != nil {
		log.Fatalf("failed to start worker: %v", err)
	}
	defer stopWorker()

	stopScheduler, err := worker.StartScheduler(cfg)
	if err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer stopScheduler()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", gin.WrapF(health.Handler))
	router.GET("/api/reports/discovery", ops.GetDiscoveryReportHandler(reports))
	router.GET("/api/reports/notify", ops.GetNotifyReportHandler(reports))
	router.POST("/api/tasks/discover", ops.TriggerDiscoveryHandler())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", "error", err.Error())
	}
}
