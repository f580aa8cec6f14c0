package migration

import (
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/docuflow/docuflow/app/models"
	"github.com/docuflow/docuflow/internal/pkg/contract"
	"github.com/docuflow/docuflow/internal/pkg/mapper"
)

// DefaultBatchSize is the default number of rows per INSERT round trip.
// It tunes throughput only; atomicity is always scoped to one document.
const DefaultBatchSize = 200

// Engine persists one document's full record set durably and atomically.
// Tables are written in the contract's declared order (parents before
// children), the ledger row goes into the same transaction, and any failure
// rolls the whole document back leaving zero trace.
type Engine struct {
	db        *gorm.DB
	contract  *contract.Contract
	batchSize int
}

func NewEngine(db *gorm.DB, c *contract.Contract, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Engine{db: db, contract: c, batchSize: batchSize}
}

// CommitDocument runs the per-document state machine: write each table in
// order, write the ledger row, commit. Errors come back classified as
// *ConflictError or *TransactionError; in both cases nothing of the
// document remains in the database.
func (e *Engine) CommitDocument(doc *mapper.DocumentRecords) error {
	err := e.db.Transaction(func(tx *gorm.DB) error {
		for _, tableRecords := range doc.Tables {
			if err := e.writeTable(tx, tableRecords); err != nil {
				return err
			}
		}

		entry := models.ProcessingLedger{
			DocumentID:        doc.DocumentID,
			PrimaryDocumentID: &doc.DocumentID,
			TargetTable:       e.contract.PrimaryTable(),
			Status:            models.LedgerStatusSuccess,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return classify(doc.DocumentID, err)
	}

	log.Debugf("[Migration] document %d committed (%d rows)", doc.DocumentID, doc.RowCount())
	return nil
}

// writeTable inserts one table's rows in batches. The batch size bounds the
// payload of a single network round trip and nothing else.
func (e *Engine) writeTable(tx *gorm.DB, tr mapper.TableRecords) error {
	if len(tr.Records) == 0 {
		return nil
	}
	for _, rows := range groupByShape(tr.Records) {
		for start := 0; start < len(rows); start += e.batchSize {
			end := start + e.batchSize
			if end > len(rows) {
				end = len(rows)
			}
			if err := tx.Table(tr.Table).Create(rows[start:end]).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// groupByShape splits a table's rows into groups sharing the exact same
// resolved column set, in first-seen order. gorm's batch create over maps
// takes the union of keys across the slice and fills the gaps with explicit
// NULLs; a column a record did not resolve has to stay absent, so rows of
// different shapes must never share a batch.
func groupByShape(records []*mapper.MappedRecord) [][]map[string]interface{} {
	groups := make(map[string][]map[string]interface{})
	var order []string
	for _, rec := range records {
		key := shapeKey(rec)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec.AsMap())
	}
	out := make([][]map[string]interface{}, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out
}

// shapeKey identifies a record's resolved column set. Columns come out of
// the mapper in declared contract order, so equal sets yield equal keys.
func shapeKey(rec *mapper.MappedRecord) string {
	var sb strings.Builder
	for _, col := range rec.Columns {
		sb.WriteString(col.Name)
		sb.WriteByte(',')
	}
	return sb.String()
}
