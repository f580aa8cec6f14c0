package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/docuflow/docuflow/app/models"
)

// ledgerRepository implements the LedgerRepository interface
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository instance
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// RecordFailure writes the failed outcome for a document. No data rows
// exist after the rollback, so PrimaryDocumentID stays NULL and the ledger
// foreign key is not in play.
func (r *ledgerRepository) RecordFailure(documentID uint64, targetTable, message string) error {
	entry := models.ProcessingLedger{
		DocumentID:  documentID,
		TargetTable: targetTable,
		Status:      models.LedgerStatusFailed,
		Message:     message,
	}
	err := r.db.Create(&entry).Error
	if err != nil && isDuplicateKey(err) {
		// Another worker ledgered this document first; the outcome is
		// already durable.
		return nil
	}
	return err
}

// CountByStatus returns the number of ledger rows with the given status
func (r *ledgerRepository) CountByStatus(status models.LedgerStatus) (int64, error) {
	var count int64
	err := r.db.Model(&models.ProcessingLedger{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

// isDuplicateKey reports MySQL error 1062.
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
