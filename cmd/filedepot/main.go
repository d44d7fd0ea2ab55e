package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"filedepot/internal/api"
	"filedepot/internal/config"
	"filedepot/internal/engine"
	"filedepot/internal/metadata"
	"filedepot/internal/storage"
	"filedepot/internal/validation"
)

func newBlobStore(cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		return storage.NewLocalStore(cfg.Storage.Path)
	case config.BackendS3:
		return storage.NewS3Store(storage.S3Options{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func Run(ctx context.Context) error {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.InfoLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
	})
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	meta, err := metadata.NewSQLiteStore(cfg.Storage.Database)
	if err != nil {
		return err
	}
	defer meta.Close()

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return err
	}

	policy := validation.NewPolicy(cfg.Policy.AllowedMimeTypes, cfg.Policy.AllowedExtensions, cfg.MaxSizeBytes())
	eng := engine.New(blobs, meta, validation.NewValidator(policy), engine.Options{
		AllowDuplicates: cfg.Policy.AllowDuplicates,
		VerifyOnRead:    cfg.Policy.VerifyOnRead,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.New(eng, cfg.API.Key).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.API.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server",
			"port", cfg.API.Port,
			"backend", cfg.Storage.Backend,
			"max_size_mb", cfg.Policy.MaxSizeMB,
			"allow_duplicates", cfg.Policy.AllowDuplicates)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		log.Fatal("server exited", "err", err)
	}
}
