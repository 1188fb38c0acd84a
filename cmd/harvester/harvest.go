package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"yt-dataset-harvester/internal/checkpoint"
	"yt-dataset-harvester/internal/config"
	"yt-dataset-harvester/internal/database"
	"yt-dataset-harvester/internal/handlers"
	"yt-dataset-harvester/internal/harvest"
	"yt-dataset-harvester/internal/middleware"
	"yt-dataset-harvester/internal/repository"
	"yt-dataset-harvester/internal/router"
	"yt-dataset-harvester/internal/services"
	"yt-dataset-harvester/internal/websocket"
	"yt-dataset-harvester/internal/worker"
)

const batchLockTTL = 30 * time.Minute

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ExitOnError)
}

func runHarvest(cfg *config.Config, args []string) {
	fs := newFlagSet("harvest")
	query := fs.String("q", "", "search term (accepted for compatibility, not used)")
	maxResults := fs.Int("max-results", 50, "max results (accepted for compatibility, not used)")
	startBatch := fs.Int("start-batch", 0, "resume offset: skip start-batch*batch-size leading playlists")
	resume := fs.Bool("resume", false, "infer the start batch from checkpoints already in the run directory")
	runDate := fs.String("run-date", todayUTC(), "run date naming the checkpoint directory (YYYY-MM-DD)")
	input := fs.String("input", cfg.InputCSV, "playlist id list, one id per line")
	fs.Parse(args)

	if *query != "" || *maxResults != 50 {
		log.Printf("Note: --q and --max-results do not affect the harvest")
	}

	// ──── Step 1: Validate Credentials & Arguments ────
	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatalf("✗ %v", err)
	}
	if err := validRunDate(*runDate); err != nil {
		log.Fatalf("✗ %v", err)
	}
	if *startBatch < 0 {
		log.Fatalf("✗ --start-batch must not be negative")
	}
	runDir := cfg.RunDir(*runDate)
	runID := uuid.New()
	log.Printf("✓ Run %s writing to %s", runID, runDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runDone := make(chan struct{})
	defer close(runDone)
	go watchStop(ctx, runDone, func() {
		stop()
		log.Println("Stop requested, the current batch will finish first (signal again to abort)")
	})

	// background work that must outlive a stop request
	svcCtx, cancelSvc := context.WithCancel(context.Background())
	defer cancelSvc()

	// ──── Step 2: Initialize YouTube Client ────
	retry := services.DefaultRetryConfig
	retry.MaxRetries = cfg.MaxRetries
	yt, err := services.NewYouTubeService(svcCtx, cfg.APIKey, services.YouTubeOptions{
		RequestsPerSecond:  cfg.RequestsPerSecond,
		ConcurrentRequests: cfg.ConcurrentRequests,
		Retry:              retry,
	})
	if err != nil {
		log.Fatalf("✗ YouTube client initialization failed: %v", err)
	}
	log.Printf("✓ YouTube client initialized (%.1f req/s, %d concurrent)", cfg.RequestsPerSecond, cfg.ConcurrentRequests)

	var reporters harvest.MultiReporter
	var opts []harvest.DriverOption
	opts = append(opts, harvest.WithRunID(runID))

	// ──── Step 3: Optional Redis (progress channel, batch locks) ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(svcCtx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		reporters = append(reporters, services.NewProgressPublisher(redisClients.Commands))
		opts = append(opts, harvest.WithLocker(services.NewBatchLock(redisClients.Commands, runID, batchLockTTL)))
		log.Printf("✓ Redis connected, progress on %s", services.ProgressChannel(runID))
	}

	// ──── Step 4: Optional PostgreSQL (batch ledger) ────
	var batchRepo *repository.BatchRepo
	if cfg.DatabaseURL != "" {
		pool := mustOpenDatabase(svcCtx, cfg)
		defer pool.Close()
		batchRepo = repository.NewBatchRepo(pool)
		opts = append(opts, harvest.WithLedger(batchRepo))
		log.Println("✓ Batch ledger enabled")
	}

	// ──── Step 5: Optional Status Server ────
	if cfg.StatusPort != "" {
		store := handlers.NewStatusStore()
		reporters = append(reporters, store)

		jwtAuth := middleware.NewJWTAuth(cfg.StatusJWTSecret)
		hub := websocket.NewHub(jwtAuth)
		if redisClients != nil {
			go hub.SubscribeRedis(svcCtx, redisClients.PubSub, services.ProgressChannelPattern)
		} else {
			reporters = append(reporters, hub)
		}

		var ledger handlers.LedgerLister
		if batchRepo != nil {
			ledger = batchRepo
		}
		server := &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.StatusPort),
			Handler:      router.New(jwtAuth, handlers.NewStatusHandler(store, runDir, *runDate, ledger), hub, cfg.FrontendURL),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				log.Printf("Status server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
		log.Printf("✓ Status server on http://localhost:%s/api/v1/status", cfg.StatusPort)
		if !jwtAuth.Enabled() {
			log.Println("  STATUS_JWT_SECRET not set, status API is unauthenticated")
		}
	}
	if len(reporters) > 0 {
		opts = append(opts, harvest.WithReporter(reporters))
	}

	// ──── Step 6: Resolve Resume Point ────
	start, err := harvest.ResolveStartBatch(runDir, *startBatch, *resume)
	if err != nil {
		log.Fatalf("✗ Resume point could not be determined: %v", err)
	}
	log.Printf("✓ Starting at batch %d", start)

	// ──── Step 7: Harvest ────
	enumerator := harvest.NewEnumerator(yt, cfg.CutoffDate)
	processor := harvest.NewProcessor(yt, enumerator, cfg.VideoChunkSize, worker.NewPool(cfg.Workers), reporters)
	driver := harvest.NewDriver(harvest.DriverConfig{
		InputPath:  *input,
		RunDate:    *runDate,
		BatchSize:  cfg.BatchSize,
		StartBatch: start,
	}, processor, checkpoint.NewWriter(runDir), opts...)

	state, err := driver.Run(ctx)
	if err != nil {
		log.Fatalf("✗ Harvest failed at batch %d: %v", state.BatchNumber, err)
	}
	if state.Interrupted {
		log.Printf("✓ Harvest stopped after %d batches", state.BatchesWritten)
		return
	}
	log.Printf("✓ Harvest complete, next: harvester combine --run-date %s", *runDate)
}

// watchStop calls onStop when ctx is cancelled before done is closed. The
// deferred cancel of a finished run closes done first, so it is not a stop.
func watchStop(ctx context.Context, done <-chan struct{}, onStop func()) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}
	select {
	case <-done:
		return
	default:
	}
	onStop()
}

func mustOpenDatabase(ctx context.Context, cfg *config.Config) *pgxpool.Pool {
	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	log.Println("✓ PostgreSQL connected")

	if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		pool.Close()
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")
	return pool
}
