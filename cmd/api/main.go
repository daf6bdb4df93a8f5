package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/digkill/themeshot/internal/admin"
	"github.com/digkill/themeshot/internal/api"
	"github.com/digkill/themeshot/internal/auth"
	"github.com/digkill/themeshot/internal/config"
	"github.com/digkill/themeshot/internal/database"
	"github.com/digkill/themeshot/internal/fal"
	"github.com/digkill/themeshot/internal/fetch"
	"github.com/digkill/themeshot/internal/metrics"
	"github.com/digkill/themeshot/internal/models"
	"github.com/digkill/themeshot/internal/pipeline"
	"github.com/digkill/themeshot/internal/replicate"
	"github.com/digkill/themeshot/internal/repository"
	"github.com/digkill/themeshot/internal/repository/memory"
	"github.com/digkill/themeshot/internal/service"
	"github.com/digkill/themeshot/internal/storage"
	"github.com/digkill/themeshot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		users   service.UserStore
		credits service.CreditStore
		usage   service.UsageStore
		health  api.Pinger
	)
	switch cfg.StoreBackend {
	case config.StoreMemory:
		store := memory.NewStore()
		users, credits, usage = store, store, store
		logr.Warn("using in-memory store; balances are lost on restart")
	default:
		var db *sql.DB
		db, err = database.Connect(cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("database connect: %v", err)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("database migrate: %v", err)
		}
		users = repository.NewUserRepository(db)
		credits = repository.NewCreditRepository(db)
		usage = repository.NewUsageRepository(db)
		health = db
	}

	collector := metrics.New()
	ledger := service.NewLedger(credits, usage, logr, collector)
	tokens := auth.NewTokenIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	registry, err := pipeline.NewRegistry(pipeline.Defaults(pipeline.Options{
		PromptSuffix:   cfg.PromptSuffix,
		FaceSwapModel:  cfg.ReplicateFaceSwap,
		InstantIDModel: cfg.ReplicateInstant,
	})...)
	if err != nil {
		log.Fatalf("pipelines: %v", err)
	}

	falClient := fal.NewClient(cfg, logr)
	replicateClient := replicate.NewClient(cfg, logr)
	fetcher := fetch.NewClient(fetch.Config{
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.FetchMaxRetries,
	}, logr)

	generation, err := service.NewGenerationService(logr, ledger, registry, map[models.ProviderName]service.Generator{
		models.ProviderFal:       falClient,
		models.ProviderReplicate: replicateClient,
	}, fetcher, models.PipelineName(cfg.DefaultPipeline), collector)
	if err != nil {
		log.Fatalf("generation service: %v", err)
	}

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	})
	if err != nil {
		log.Fatalf("storage uploader: %v", err)
	}

	server := api.NewServer(cfg.ListenAddr, cfg.CORSAllowOrigin, logr, api.Services{
		Auth:       service.NewAuthService(users, ledger, tokens, logr),
		Ledger:     ledger,
		Generation: generation,
		Preview:    service.NewPreviewService(replicateClient, fetcher, logr),
		Upload:     service.NewUploadService(uploader, logr),
	}, collector, health)

	if cfg.AdminListenAddr != "" {
		adminServer := admin.NewServer(cfg.AdminListenAddr, cfg.AdminUsername, cfg.AdminPassword, logr, service.NewUserService(users, ledger))
		go func() {
			if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Error("admin server stopped", "err", err)
			}
		}()
	}

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("api stopped", "err", err)
	}
}
