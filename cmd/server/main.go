package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"stream-snapshot/pkg/cachedstats"
	"stream-snapshot/pkg/capture"
	"stream-snapshot/pkg/config"
	"stream-snapshot/pkg/database"
	"stream-snapshot/pkg/handlers"
	"stream-snapshot/pkg/jobs"
	"stream-snapshot/pkg/server"
	"stream-snapshot/pkg/services/retention"
	"stream-snapshot/pkg/services/snapshot"
	"stream-snapshot/pkg/storage"
	"stream-snapshot/pkg/worker"
)

func main() {
	// Route the standard logger through tint as well.
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: "15:04:05",
		}),
	))

	config.LoadConfig()
	cfg := &config.AppConfig

	// Ensure data directories exist
	for _, dir := range []string{cfg.SnapshotsDir, cfg.YouTubeSnapshotsDir, filepath.Dir(cfg.DBPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}

	db, err := database.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	jobs.InitJobs(db)

	if cfg.AdminEnabled() {
		if cfg.AdminPassword == "" {
			log.Fatal("FATAL: ADMIN_PASSWORD must be set when APP_KEY enables the admin API.")
		}
		if err := database.EnsureAdminUser("admin", cfg.AdminPassword); err != nil {
			log.Fatalf("Failed to set up admin user: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targets := []retention.Target{
		{Dir: cfg.SnapshotsDir, Prefix: storage.WebcamPrefix, Keep: cfg.SnapshotsToKeep},
		{Dir: cfg.YouTubeSnapshotsDir, Prefix: storage.YouTubePrefix, Keep: cfg.SnapshotsToKeep},
	}

	var wg sync.WaitGroup
	for _, run := range []func(){
		func() { worker.Start(ctx) },
		func() { retention.StartScheduler(ctx, cfg.CleanupInterval(), targets) },
		func() { cachedstats.Cache.RunUpdater(ctx, 30*time.Second) },
	} {
		run := run
		wg.Add(1)
		go func() {
			defer wg.Done()
			run()
		}()
	}
	log.Printf("✅ Retention scheduler started with interval: %s (keeping %d per directory)", cfg.CleanupInterval(), cfg.SnapshotsToKeep)

	invoker := capture.NewInvoker(cfg.FFmpegPath, cfg.YTDLPPath)
	svc := snapshot.NewService(cfg.SnapshotsDir, cfg.YouTubeSnapshotsDir, invoker)
	h := handlers.New(svc, cfg, targets)

	if err := server.StartServer(ctx, cfg, h); err != nil {
		log.Printf("Server error: %v", err)
		stop()
	}

	wg.Wait()
	log.Println("Shutdown complete.")
}
