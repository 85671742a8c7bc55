package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framescope/framescope/internal/bootstrap"
	"github.com/framescope/framescope/internal/infra/config"
	"github.com/framescope/framescope/internal/infra/ffmpeg"
	"github.com/framescope/framescope/internal/infra/httpapi"
	"github.com/framescope/framescope/internal/infra/retention"
	"github.com/framescope/framescope/internal/infra/tracing"
	"github.com/framescope/framescope/pkg/logger"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.JaegerEndpoint, "framescope-server")
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer shutdownTracing(context.Background())
	}

	for _, dir := range []string{cfg.UploadDir, cfg.FrameDir} {
		fatalOnErr(os.MkdirAll(dir, 0o755), "create "+dir)
	}

	h := httpapi.NewHandler(bootstrap.NewPipeline(cfg, log), ffmpeg.NewZipCreator(), httpapi.Config{
		UploadDir:      cfg.UploadDir,
		FrameDir:       cfg.FrameDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, log)

	sweeper := retention.NewSweeper(
		[]string{cfg.UploadDir, cfg.FrameDir},
		cfg.RetentionMaxAge,
		cfg.RetentionSweepInterval,
		log,
	)
	go sweeper.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpapi.NewRouter(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	log.Info("framescope server started",
		zap.Int("port", cfg.HTTPPort),
		zap.String("upload_dir", cfg.UploadDir),
		zap.String("frame_dir", cfg.FrameDir),
		zap.Bool("ai_enabled", cfg.AIEnabled),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("received shutdown signal, draining connections", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	log.Info("framescope server stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
