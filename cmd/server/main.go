package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/db"
	"scribe/internal/logging"
	"scribe/internal/repository"
	"scribe/internal/storage"
	"scribe/internal/stt"
	"scribe/internal/transcribe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", "console")
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer conn.Close()

	stager, err := storage.NewStager(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.UploadDir).Msg("failed to prepare upload directory")
	}

	providers := stt.NewDefaultRegistry(cfg)
	sink := transcribe.NewSink(repository.NewSQLiteRepository(conn), stager)
	handler := api.NewHandler(transcribe.NewOrchestrator(providers, sink), sink, stager, cfg.DefaultProvider)

	r := gin.New()
	r.Use(gin.Recovery(), api.RequestID(), api.RequestLogger(), api.CORS(cfg.CORSOrigins))
	api.RegisterRoutes(r, handler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("default_provider", cfg.DefaultProvider).
			Strs("providers", providers.Names()).
			Str("upload_dir", stager.Dir()).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	stop()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
