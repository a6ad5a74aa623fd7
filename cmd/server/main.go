package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/dgallion1/pdfocr/internal/api"
	"github.com/dgallion1/pdfocr/internal/archive"
	"github.com/dgallion1/pdfocr/internal/cache"
	"github.com/dgallion1/pdfocr/internal/config"
	"github.com/dgallion1/pdfocr/internal/ocr/tesseract"
	"github.com/dgallion1/pdfocr/internal/pipeline"
	"github.com/dgallion1/pdfocr/internal/raster"
	"github.com/dgallion1/pdfocr/internal/stats"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.OCR().Validate(); err != nil {
		log.Error("invalid ocr defaults", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OCR collaborators.
	engine, err := tesseract.New(cfg.Engine, tesseract.Options{Path: cfg.TesseractPath})
	if err != nil {
		log.Error("ocr engine", "error", err)
		os.Exit(1)
	}
	results, err := cache.New(cfg.CacheSize)
	if err != nil {
		log.Error("result cache", "error", err)
		os.Exit(1)
	}
	pageStats := stats.NewPages(time.Hour)

	deps := pipeline.Deps{
		Rasterizer: raster.NewAuto(raster.NewPDF(cfg.PdftoppmPath, cfg.RasterDPI)),
		Engine:     engine,
		Cache:      results,
		Stats:      pageStats,
	}
	if cfg.ArchiveBucket != "" {
		sink, err := archive.NewS3(ctx, archive.S3Options{
			Bucket:    cfg.ArchiveBucket,
			Prefix:    cfg.ArchivePrefix,
			Region:    cfg.ArchiveRegion,
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.AWSAccessKey,
			SecretKey: cfg.AWSSecretKey,
		})
		if err != nil {
			log.Error("archive", "error", err)
			os.Exit(1)
		}
		deps.Archive = sink
		log.Info("archiving results", "bucket", cfg.ArchiveBucket, "prefix", cfg.ArchivePrefix)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, deps, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, pageStats, engine.Name(), log, cfg)

	httpServer := &http.Server{
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // sync OCR requests wait for the whole document
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Error("listen", "error", err)
		os.Exit(1)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting pdfocr",
		"port", cfg.Port,
		"engine", engine.Name(),
		"ocr", cfg.OCR().String(),
		"workers", cfg.WorkerCount,
		"page_workers", cfg.PageWorkers,
	)
	if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}
