package statistics

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/docuflow/docuflow/internal/pkg/cache"
)

const (
	// Counter key format: docuflow:run:<run-id>:<counter>
	keyFormat  = "docuflow:run:%s:%s"
	counterTTL = 7 * 24 * time.Hour

	CounterProcessed = "processed"
	CounterFailed    = "failed"
	CounterSkipped   = "skipped"
	CounterRows      = "rows"
)

// RunStats is a snapshot of one run's counters.
type RunStats struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Rows      int    `json:"rows"`
}

// IncProcessed counts a successfully committed document.
func IncProcessed(runID string) { incr(runID, CounterProcessed, 1) }

// IncFailed counts a document whose commit failed or conflicted.
func IncFailed(runID string) { incr(runID, CounterFailed, 1) }

// IncSkipped counts a rejected or unparsable document.
func IncSkipped(runID string) { incr(runID, CounterSkipped, 1) }

// IncRows counts committed data rows.
func IncRows(runID string, n int64) { incr(runID, CounterRows, n) }

// incr is best effort: the run must keep going when the cache is down, so
// counter errors only get a debug line.
func incr(runID, counter string, n int64) {
	key := fmt.Sprintf(keyFormat, runID, counter)
	if _, err := cache.IncrBy(key, n); err != nil {
		log.Debugf("[Statistics] increment %s failed: %v", key, err)
		return
	}
	if err := cache.Expire(key, counterTTL); err != nil {
		log.Debugf("[Statistics] expire %s failed: %v", key, err)
	}
}

// Snapshot reads a run's counters for logging and the status endpoint.
func Snapshot(runID string) RunStats {
	return RunStats{
		RunID:     runID,
		Processed: readCounter(runID, CounterProcessed),
		Failed:    readCounter(runID, CounterFailed),
		Skipped:   readCounter(runID, CounterSkipped),
		Rows:      readCounter(runID, CounterRows),
	}
}

func readCounter(runID, counter string) int {
	val, err := cache.GetInt(fmt.Sprintf(keyFormat, runID, counter))
	if err != nil {
		return 0
	}
	return val
}

// LogSummary writes the final run summary.
func LogSummary(runID string) {
	stats := Snapshot(runID)
	log.Infof("[Statistics] run %s: %d processed, %d failed, %d skipped, %d rows",
		runID, stats.Processed, stats.Failed, stats.Skipped, stats.Rows)
}
