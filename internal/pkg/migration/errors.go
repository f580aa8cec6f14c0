package migration

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ConflictError is a duplicate-key or constraint violation during commit:
// usually a concurrently reprocessed document slipping past the dirty-read
// pre-filter. It is a benign, logged skip, never fatal and never retried.
type ConflictError struct {
	DocumentID uint64
	Err        error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %d: persistence conflict: %v", e.DocumentID, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// TransactionError is any other failure during the atomic commit. The
// document's transaction is fully rolled back; the run continues.
type TransactionError struct {
	DocumentID uint64
	Err        error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("document %d: transaction failed: %v", e.DocumentID, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// classify maps a raw database error to the engine's taxonomy.
func classify(documentID uint64, err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		// 1062 duplicate entry, 1586 duplicate entry with key name
		if mysqlErr.Number == 1062 || mysqlErr.Number == 1586 {
			return &ConflictError{DocumentID: documentID, Err: err}
		}
	}
	return &TransactionError{DocumentID: documentID, Err: err}
}
