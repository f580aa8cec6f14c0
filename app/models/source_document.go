package models

import (
	"time"
)

// SourceDocument is one hierarchical application record awaiting migration.
// The payload is the raw nested document as exported from the upstream
// product system; the engine never interprets it directly, the flattener does.
type SourceDocument struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	ProductLine string    `gorm:"index;type:varchar(64)" json:"product_line"`
	Payload     string    `gorm:"type:longtext" json:"payload"`
	ReceivedAt  time.Time `gorm:"autoCreateTime" json:"received_at"`
}

// TableName specifies the table name for the SourceDocument model
func (SourceDocument) TableName() string {
	return "source_documents"
}
