package repository

import (
	"github.com/docuflow/docuflow/app/models"
)

// Partition is a disjoint slice of the document-id space owned by exactly
// one worker: ids with id % Count == Index. Count <= 1 means no partitioning.
type Partition struct {
	Index int
	Count int
}

// DocumentRepository defines the database operations on source documents.
type DocumentRepository interface {
	// NextBatch returns unprocessed documents with id > cursor belonging to
	// the partition, ordered by id, at most limit rows. minID/maxID bound
	// the scan when non-zero. Already-ledgered ids (success or failed) are
	// excluded; the read runs at READ UNCOMMITTED so it never blocks
	// concurrent committers.
	NextBatch(cursor uint64, limit int, part Partition, minID, maxID uint64) ([]models.SourceDocument, error)
	// Count is the full source set size, logged at startup for scale context.
	Count() (int64, error)
}

// LedgerRepository defines the database operations on the processing ledger.
type LedgerRepository interface {
	// RecordFailure writes the single failed ledger row for a document in
	// its own transaction, after any rollback. A duplicate row (another
	// worker got there first) is a benign no-op.
	RecordFailure(documentID uint64, targetTable, message string) error
	// CountByStatus backs the end-of-run ledger totals.
	CountByStatus(status models.LedgerStatus) (int64, error)
}
