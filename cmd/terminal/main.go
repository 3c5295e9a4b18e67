package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/config"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/hardware"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/infra"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/remote"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/repository"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/router"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local database")
	}

	api := remote.New(remote.Options{
		BaseURL:    cfg.APIBaseURL,
		APIKey:     cfg.APIKey,
		TerminalID: cfg.TerminalID,
		Timeout:    cfg.APITimeout(),
		MaxRetries: cfg.APIMaxRetries,
		RetryDelay: time.Duration(cfg.APIRetryDelay) * time.Second,
	})

	// Fingerprint sensor is optional hardware; the mock keeps dev machines
	// and kiosks without a sensor working.
	var sensor hardware.FingerprintSensor
	if cfg.FingerprintEnabled {
		if cfg.MockHardware {
			sensor = hardware.NewMockSensor()
			log.Warn().Msg("fingerprint sensor mocked (MOCK_HARDWARE=true)")
		} else {
			sensor = hardware.NewBridgeSensor(cfg.FingerprintSocket, 10*time.Second)
		}
	}

	userRepo := repository.NewUserRepository(db)
	recordRepo := repository.NewAccessRecordRepository(db)
	queueRepo := repository.NewSyncQueueRepository(db)

	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	syncSvc := service.NewSyncService(cfg, queueRepo, recordRepo, userRepo, api, cb)
	verifySvc := service.NewVerificationService(cfg, userRepo, recordRepo, syncSvc, api, sensor)
	enrollSvc := service.NewEnrollmentService(userRepo, sensor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background sync loop. A pass that overlaps a manual /v1/sync call is
	// rejected by the service itself, so the ticker can stay dumb.
	go func() {
		ticker := time.NewTicker(cfg.SyncInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result := syncSvc.PerformFullSync(ctx)
				log.Info().
					Str("status", result.Status).
					Int("users", result.UsersProcessed).
					Int("uploaded", result.RecordsUploaded).
					Int("failed", result.RecordsFailed).
					Dur("took", result.Duration).
					Msg("scheduled sync pass")
			}
		}
	}()

	r := router.New(router.Deps{
		Config:       cfg,
		DB:           db,
		API:          api,
		Breaker:      cb,
		Verification: verifySvc,
		Sync:         syncSvc,
		Enrollment:   enrollSvc,
		Users:        userRepo,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("BioEntry terminal listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down terminal…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("terminal exited")
}
