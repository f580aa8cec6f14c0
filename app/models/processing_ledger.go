package models

import (
	"time"
)

// LedgerStatus is the per-document processing outcome
type LedgerStatus string

const (
	LedgerStatusSuccess LedgerStatus = "success"
	LedgerStatusFailed  LedgerStatus = "failed"
)

// ProcessingLedger records the outcome of migrating one source document.
// Exactly one row exists per attempted document; it is the sole durable
// cross-run state and the basis for resume and audit.
//
// The row is written inside the same transaction as the document's data
// rows. PrimaryDocumentID carries a foreign key to the primary output
// table's document_id column; it is set on success and left NULL on
// failure, where no data rows survive the rollback.
type ProcessingLedger struct {
	ID                uint64       `gorm:"primaryKey" json:"id"`
	DocumentID        uint64       `gorm:"uniqueIndex;not null" json:"document_id"`
	PrimaryDocumentID *uint64      `json:"primary_document_id,omitempty"`
	TargetTable       string       `gorm:"type:varchar(128)" json:"target_table"`
	Status            LedgerStatus `gorm:"type:varchar(16);index" json:"status"`
	Message           string       `gorm:"type:text" json:"message,omitempty"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the ProcessingLedger model
func (ProcessingLedger) TableName() string {
	return "processing_ledger"
}
