package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2/log"

	"github.com/docuflow/docuflow/app/models"
	"github.com/docuflow/docuflow/app/repository"
	"github.com/docuflow/docuflow/internal/pkg/cache"
	"github.com/docuflow/docuflow/internal/pkg/contract"
	"github.com/docuflow/docuflow/internal/pkg/database"
	"github.com/docuflow/docuflow/internal/pkg/env"
	"github.com/docuflow/docuflow/internal/pkg/health"
	"github.com/docuflow/docuflow/internal/pkg/statistics"
	"github.com/docuflow/docuflow/internal/pkg/worker"
)

func main() {
	contractPath := flag.String("contract", env.GetEnv("CONTRACT_PATH", "contracts/personal_auto.yaml"), "mapping contract file")
	partition := flag.Int("partition", env.GetEnvInt("PARTITION", 0), "this process's partition index")
	partitions := flag.Int("partitions", env.GetEnvInt("PARTITIONS", 1), "total number of worker processes")
	workers := flag.Int("workers", env.GetEnvInt("WORKERS", 4), "in-process pipeline workers")
	batchSize := flag.Int("batch-size", env.GetEnvInt("BATCH_SIZE", 200), "rows per insert round trip")
	queueSize := flag.Int("queue-size", env.GetEnvInt("QUEUE_SIZE", 64), "bounded commit queue capacity per worker")
	pageSize := flag.Int("page-size", env.GetEnvInt("PAGE_SIZE", 100), "documents per scan page")
	minID := flag.Uint64("min-id", 0, "lowest document id to process (0 = no bound)")
	maxID := flag.Uint64("max-id", 0, "highest document id to process (0 = no bound)")
	flag.Parse()

	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	c, err := contract.Load(*contractPath)
	if err != nil {
		// A malformed contract aborts before any document is touched.
		log.Fatalf("%v", err)
	}
	log.Infof("[Main] contract loaded: product line %s, %d target tables", c.ProductLine, len(c.Tables))

	if *partition < 0 || *partition >= *partitions {
		log.Fatalf("[Main] partition %d out of range for %d partitions", *partition, *partitions)
	}

	docs := repository.NewDocumentRepository(database.GetDB())
	if total, err := docs.Count(); err == nil {
		log.Infof("[Main] %d documents in %s", total, c.SourceTable)
	} else {
		log.Warnf("[Main] could not count source documents: %v", err)
	}

	coordinator := worker.NewCoordinator(database.GetDB(), c, worker.Options{
		Partition:  *partition,
		Partitions: *partitions,
		Workers:    *workers,
		BatchSize:  *batchSize,
		QueueSize:  *queueSize,
		PageSize:   *pageSize,
		MinID:      *minID,
		MaxID:      *maxID,
	})

	if port := env.GetEnv("HEALTH_PORT", ""); port != "" {
		health.Start(port, coordinator)
	}

	coordinator.Start()

	// Interruption lands between documents; an in-flight commit finishes
	// or rolls back whole.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		coordinator.Wait()
		close(done)
	}()

	select {
	case sig := <-sigCh:
		log.Infof("[Main] received %s, stopping", sig)
		coordinator.Stop()
	case <-done:
	}

	statistics.LogSummary(coordinator.RunID())

	// The ledger is the durable record across all runs and partitions; the
	// redis counters above only cover this run.
	ledger := repository.NewLedgerRepository(database.GetDB())
	succeeded, errS := ledger.CountByStatus(models.LedgerStatusSuccess)
	failed, errF := ledger.CountByStatus(models.LedgerStatusFailed)
	if errS == nil && errF == nil {
		log.Infof("[Main] ledger totals: %d success, %d failed", succeeded, failed)
	}
}
