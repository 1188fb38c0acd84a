package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"yt-dataset-harvester/internal/config"
	"yt-dataset-harvester/internal/middleware"
)

const usage = `usage: harvester <command> [flags]

commands:
  harvest   walk the playlist list and write batch checkpoints (default)
  combine   merge batch checkpoints into one document per artifact kind
  ingest    load a combined videos document into PostgreSQL
  token     print a bearer token for the status server
`

func main() {
	args := os.Args[1:]
	command := "harvest"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	switch command {
	case "harvest":
		runHarvest(cfg, args)
	case "combine":
		runCombine(cfg, args)
	case "ingest":
		runIngest(cfg, args)
	case "token":
		runToken(cfg, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}
}

func runToken(cfg *config.Config, args []string) {
	fs := newFlagSet("token")
	subject := fs.String("subject", "operator", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	fs.Parse(args)

	token, err := middleware.NewJWTAuth(cfg.StatusJWTSecret).GenerateToken(*subject, *ttl)
	if err != nil {
		log.Fatalf("✗ Token generation failed: %v", err)
	}
	fmt.Println(token)
}

// todayUTC is the default run date, the name of the run directory.
func todayUTC() string {
	return time.Now().UTC().Format("2006-01-02")
}

func validRunDate(s string) error {
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("run date %q is not YYYY-MM-DD", s)
	}
	return nil
}
