package repository

import (
	"database/sql"

	"gorm.io/gorm"

	"github.com/docuflow/docuflow/app/models"
)

// documentRepository implements the DocumentRepository interface
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new document repository instance
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// NextBatch scans forward from the cursor. The strictly increasing id
// cursor (never an offset) is what makes pagination gapless while other
// workers shrink the unprocessed set underneath us.
func (r *documentRepository) NextBatch(cursor uint64, limit int, part Partition, minID, maxID uint64) ([]models.SourceDocument, error) {
	// Dirty reads are deliberate here: the ledger subquery only pre-filters
	// duplicates, the insert-time unique key is the real guard.
	tx := r.db.Begin(&sql.TxOptions{Isolation: sql.LevelReadUncommitted, ReadOnly: true})
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	q := tx.Model(&models.SourceDocument{}).Where("id > ?", cursor)
	if part.Count > 1 {
		q = q.Where("MOD(id, ?) = ?", part.Count, part.Index)
	}
	if minID > 0 {
		q = q.Where("id >= ?", minID)
	}
	if maxID > 0 {
		q = q.Where("id <= ?", maxID)
	}
	q = q.Where("id NOT IN (SELECT document_id FROM processing_ledger)")

	var docs []models.SourceDocument
	err := q.Order("id ASC").Limit(limit).Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the total number of source documents
func (r *documentRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.SourceDocument{}).Count(&count).Error
	return count, err
}
