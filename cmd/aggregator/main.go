package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"wattline/internal/cli"
	"wattline/internal/config"
	"wattline/internal/repo"
	"wattline/internal/rollup"
	"wattline/internal/svc"
	"wattline/pkg/journal"
)

const shutdownTimeout = 10 * time.Second // Grace period for shutdown

var configFile = flag.String("f", "etc/wattline.yaml", "the config file")

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("[main] Starting aggregator...")

	cfg := config.MustLoad(*configFile)

	log.Printf("[main] Configuration loaded:")
	for _, line := range cli.ConfigSummaryLines(cfg) {
		log.Printf("  - %s", line)
	}

	svcCtx := svc.NewServiceContext(cfg)
	if svcCtx.Aggregator == nil {
		log.Fatalf("[main] Postgres DSN is required for the aggregator")
	}

	var runJournal *journal.Writer
	if dir := cfg.Aggregator.JournalDir; dir != "" {
		runJournal = journal.NewWriter(dir)
	}

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runRollupLoop(ctx, svcCtx, runJournal)
	}()

	log.Println("[main] Aggregator started. Press Ctrl+C to stop.")

	// Wait for signal
	<-ctx.Done()
	log.Println("[main] Shutdown signal received, stopping tasks...")

	// Give the in-flight run time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[main] All tasks stopped cleanly")
	case <-shutdownCtx.Done():
		log.Println("[main] Shutdown timeout exceeded, forcing exit")
	}

	log.Println("[main] Aggregator stopped")
}

// runRollupLoop runs the rollup job on a schedule
func runRollupLoop(ctx context.Context, svcCtx *svc.ServiceContext, runJournal *journal.Writer) {
	interval := time.Duration(svcCtx.Config.Aggregator.IntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once immediately on startup
	runOnce(ctx, svcCtx, runJournal)

	for {
		select {
		case <-ctx.Done():
			log.Println("[aggregator] Stopping rollup loop")
			return
		case <-ticker.C:
			runOnce(ctx, svcCtx, runJournal)
		}
	}
}

// runOnce executes a single aggregation pass with a bounded timeout
func runOnce(parentCtx context.Context, svcCtx *svc.ServiceContext, runJournal *journal.Writer) {
	if parentCtx.Err() != nil {
		return
	}

	timeout := time.Duration(svcCtx.Config.Aggregator.RunTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	start := time.Now()
	res, err := svcCtx.Aggregator.ProcessLatest(ctx)
	elapsed := time.Since(start)

	if errors.Is(err, rollup.ErrAlreadyRunning) {
		log.Printf("[aggregator.run] [SKIP] another run holds the lock, took %dms", elapsed.Milliseconds())
		return
	}
	if err != nil {
		log.Printf("[aggregator.run] [ERROR] %v, took %dms", err, elapsed.Milliseconds())
		writeJournal(runJournal, res, "tick", elapsed, err)
		return
	}

	if res.Buckets == 0 && res.Skipped == 0 {
		log.Printf("[aggregator.run] [OK] caught up, took %dms", elapsed.Milliseconds())
	} else {
		log.Printf("[aggregator.run] [OK] run=%s range=[%d,%d] buckets=%d skipped=%d, took %dms",
			res.RunID, res.From, res.To, res.Buckets, res.Skipped, elapsed.Milliseconds())
	}

	if latest, lookupErr := svcCtx.Repos.Buckets.LatestStart(ctx); lookupErr == nil {
		log.Printf("  - Latest bucket: %s", time.Unix(latest, 0).In(svcCtx.Config.Location()).Format(time.RFC3339))
	} else if !errors.Is(lookupErr, repo.ErrNotFound) {
		log.Printf("  - Latest bucket lookup failed: %v", lookupErr)
	}

	writeJournal(runJournal, res, "tick", elapsed, nil)
}

func writeJournal(w *journal.Writer, res rollup.RunResult, trigger string, elapsed time.Duration, runErr error) {
	if w == nil {
		return
	}
	rec := &journal.RunRecord{
		RunID:      res.RunID.String(),
		Trigger:    trigger,
		From:       res.From,
		To:         res.To,
		Buckets:    res.Buckets,
		Skipped:    res.Skipped,
		DurationMs: elapsed.Milliseconds(),
	}
	if runErr != nil {
		rec.ErrorMessage = runErr.Error()
	}
	if _, err := w.WriteRun(rec); err != nil {
		log.Printf("[aggregator.journal] [WARN] %v", err)
	}
}
