package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"yt-dataset-harvester/internal/checkpoint"
	"yt-dataset-harvester/internal/combine"
	"yt-dataset-harvester/internal/config"
	"yt-dataset-harvester/internal/repository"
	"yt-dataset-harvester/internal/services"
)

var combineKinds = map[string]string{
	"videos":    checkpoint.VideosPrefix + "*.json",
	"playlists": checkpoint.PlaylistsPrefix + "*.json",
}

func runCombine(cfg *config.Config, args []string) {
	fs := newFlagSet("combine")
	runDate := fs.String("run-date", todayUTC(), "run date of the checkpoint directory (YYYY-MM-DD)")
	kind := fs.String("kind", "videos", "artifact kind: videos, playlists or all")
	inputDir := fs.String("input-dir", "", "checkpoint directory (default: the run directory)")
	output := fs.String("output", "", "output file (default: <data>/data_json/<kind>_<run-date>.json)")
	chunkSize := fs.Int("chunk-size", cfg.CombineChunkSize, "entries per incremental write")
	fs.Parse(args)

	if err := validRunDate(*runDate); err != nil {
		log.Fatalf("✗ %v", err)
	}

	kinds := []string{*kind}
	if *kind == "all" {
		kinds = []string{"videos", "playlists"}
	}
	if *output != "" && len(kinds) > 1 {
		log.Fatalf("✗ --output cannot be used with --kind all")
	}

	dir := *inputDir
	if dir == "" {
		dir = cfg.RunDir(*runDate)
	}

	for _, k := range kinds {
		pattern, ok := combineKinds[k]
		if !ok {
			log.Fatalf("✗ Unknown kind %q", k)
		}
		out := *output
		if out == "" {
			out = cfg.CombinedPath(k, *runDate)
		}

		res, err := combine.Combine(combine.Options{
			InputDir:  dir,
			Pattern:   pattern,
			Output:    out,
			ChunkSize: *chunkSize,
		})
		var noInput *combine.NoInputError
		if errors.As(err, &noInput) {
			log.Fatalf("✗ %v in %s", err, dir)
		}
		if err != nil {
			log.Fatalf("✗ Combine failed: %v", err)
		}
		log.Printf("✓ %s: %d entries from %d files (%d duplicate keys skipped)", k, res.Entries, res.Files, res.Duplicates)
	}
}

func runIngest(cfg *config.Config, args []string) {
	fs := newFlagSet("ingest")
	runDate := fs.String("run-date", todayUTC(), "run date of the combined document (YYYY-MM-DD)")
	file := fs.String("file", "", "combined videos document (default: <data>/data_json/videos_<run-date>.json)")
	fs.Parse(args)

	if cfg.DatabaseURL == "" {
		log.Fatalf("✗ DATABASE_URL is required for ingest")
	}
	if err := validRunDate(*runDate); err != nil {
		log.Fatalf("✗ %v", err)
	}
	path := *file
	if path == "" {
		path = cfg.CombinedPath("videos", *runDate)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool := mustOpenDatabase(ctx, cfg)
	defer pool.Close()

	res, err := services.NewIngester(repository.NewVideoRepo(pool)).IngestFile(ctx, path, *runDate)
	if err != nil {
		log.Fatalf("✗ Ingest failed: %v", err)
	}
	log.Printf("✓ Ingested %d videos from %d playlists", res.Videos, res.Playlists)
}
