package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Narimm/OpenVPMS-sub018/internal/config"
	"github.com/Narimm/OpenVPMS-sub018/internal/importer"
	"github.com/Narimm/OpenVPMS-sub018/internal/infra"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
	"github.com/Narimm/OpenVPMS-sub018/internal/router"
	"github.com/Narimm/OpenVPMS-sub018/internal/service"
	"github.com/Narimm/OpenVPMS-sub018/internal/worker"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker pool wiring happens here (composition root) so the pool has
	// full access to all infrastructure dependencies.
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)
	groupsCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	productRepo := repository.NewProductRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	batchRepo := repository.NewImportBatchRepository(db)
	logRepo := repository.NewChangeLogRepository(db)
	groupRepo := repository.NewPricingGroupRepository(db)

	pipeline := importer.NewPipeline(batchRepo, productRepo, priceRepo, logRepo, groupRepo, cfg.PDFStoragePath)
	handlers := worker.Handlers{
		Imports: worker.NewImportWorker(batchRepo, pipeline, dispatcher, rdb, cfg.UploadStoragePath),
		Email:   worker.NewEmailWorker(mailer),
	}
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, handlers)

	// Periodic pricing group refresh from the classification service.
	groupsClient := infra.NewGroupsClient(cfg.GroupsServiceURL, groupsCB)
	groupSvc := service.NewGroupService(groupRepo, groupsClient, rdb)
	worker.StartGroupSyncCron(ctx, groupSvc, groupsCB)

	r := router.New(cfg, db, rdb, groupsCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("price list service listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
