package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"wattline/internal/cli"
	"wattline/internal/config"
	"wattline/internal/svc"
	"wattline/pkg/journal"
)

var (
	configFile = flag.String("f", "etc/wattline.yaml", "the config file")
	fromFlag   = flag.String("from", "", "range start, RFC3339 or unix seconds")
	toFlag     = flag.String("to", "", "range end, RFC3339 or unix seconds")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	from, err := parseTimestamp(*fromFlag)
	if err != nil {
		log.Fatalf("[main] Invalid -from: %v", err)
	}
	to, err := parseTimestamp(*toFlag)
	if err != nil {
		log.Fatalf("[main] Invalid -to: %v", err)
	}

	cfg := config.MustLoad(*configFile)

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(cfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(cfg)
	if svcCtx.Aggregator == nil {
		log.Fatalf("[main] Postgres DSN is required for backfills")
	}

	// Ctrl+C cancels the run after the current minute; the checkpoint keeps
	// the work done so far.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[main] Backfilling [%s, %s]...",
		time.Unix(from, 0).In(cfg.Location()).Format(time.RFC3339),
		time.Unix(to, 0).In(cfg.Location()).Format(time.RFC3339))

	start := time.Now()
	res, runErr := svcCtx.Aggregator.Backfill(ctx, from, to)
	elapsed := time.Since(start)

	if dir := cfg.Aggregator.JournalDir; dir != "" {
		rec := &journal.RunRecord{
			RunID:      res.RunID.String(),
			Trigger:    "backfill",
			From:       res.From,
			To:         res.To,
			Buckets:    res.Buckets,
			Skipped:    res.Skipped,
			DurationMs: elapsed.Milliseconds(),
		}
		if runErr != nil {
			rec.ErrorMessage = runErr.Error()
		}
		if _, err := journal.NewWriter(dir).WriteRun(rec); err != nil {
			log.Printf("[main] Journal write failed: %v", err)
		}
	}

	if runErr != nil {
		log.Fatalf("[main] Backfill failed after %dms: %v", elapsed.Milliseconds(), runErr)
	}

	log.Printf("[main] Backfill complete: run=%s minutes=%d buckets=%d skipped=%d, took %dms",
		res.RunID, res.Minutes(), res.Buckets, res.Skipped, elapsed.Milliseconds())
}

// parseTimestamp accepts RFC3339 or unix seconds.
func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("value required")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return secs, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("want RFC3339 or unix seconds, got %q", s)
	}
	return t.Unix(), nil
}
