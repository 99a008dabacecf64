// Command fussballapi runs the fussball.de scraping API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Zetabytes/fussball-de-api/internal/api"
	"github.com/Zetabytes/fussball-de-api/internal/cache"
	"github.com/Zetabytes/fussball-de-api/internal/club"
	"github.com/Zetabytes/fussball-de-api/internal/clock/system"
	"github.com/Zetabytes/fussball-de-api/internal/config"
	"github.com/Zetabytes/fussball-de-api/internal/crawler"
	"github.com/Zetabytes/fussball-de-api/internal/font"
	"github.com/Zetabytes/fussball-de-api/internal/hash/md5"
	"github.com/Zetabytes/fussball-de-api/internal/logging"
	"github.com/Zetabytes/fussball-de-api/internal/metrics"
	"github.com/Zetabytes/fussball-de-api/internal/prewarm"
	"github.com/Zetabytes/fussball-de-api/internal/storage/local"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fussballapi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Cache.Dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	blobs, err := local.New(local.Config{BaseDir: cfg.Cache.Dir})
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}
	hasher := md5.New()
	clk := system.New()

	httpClient := &http.Client{Timeout: cfg.Timeout()}
	cacheSvc := cache.New(httpClient, blobs, hasher, clk, cache.Config{
		MaxEntries:  cfg.Cache.MaxEntries,
		NegativeTTL: cfg.NegativeTTL(),
	}, logger.Named("cache"))

	store := club.NewStore()
	persistor := cache.NewPersistor(cacheSvc, store, blobs, hasher, cache.PersistorConfig{
		Path:      filepath.Join(cfg.Cache.Dir, "fussball_cache.json"),
		MaxBytes:  cfg.Cache.SnapshotMaxBytes,
		PrewarmID: cfg.Prewarm.ClubID,
	}, logger.Named("persist"))
	if err := persistor.Load(); err != nil {
		logger.Warn("cache snapshot load failed, starting cold", zap.Error(err))
	}

	decoder := font.NewDecoder(cacheSvc, clk, crawler.BaseURL, cfg.TTLFont(), logger.Named("font"))
	scraper := crawler.New(cacheSvc, decoder, crawler.BaseURL, crawler.TTLs{
		Games: cfg.TTLGames(),
		Table: cfg.TTLTable(),
		Teams: cfg.TTLTeams(),
	}, logger.Named("crawler"))
	clubSvc := club.NewService(scraper, logger.Named("club"))

	metrics.Init()
	server := api.NewServer(scraper, clubSvc, store, cfg, logger.Named("api"))

	if cfg.Prewarm.ClubID != "" {
		scheduler := prewarm.New(clubSvc, store, cfg.Prewarm.ClubID, cfg.PrewarmInterval(), logger.Named("prewarm"))
		go scheduler.Run(ctx)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	if err := persistor.Save(); err != nil {
		logger.Error("cache snapshot save failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
