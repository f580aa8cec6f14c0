package migration

import (
	"github.com/docuflow/docuflow/app/models"
	"github.com/docuflow/docuflow/app/repository"
)

// Scanner walks a worker's partition of the unprocessed document set with a
// strictly increasing id cursor. Because the cursor advances to the highest
// id actually returned, concurrent ledgering by other workers can shrink
// the underlying set without causing skips or repeats.
type Scanner struct {
	docs     repository.DocumentRepository
	part     repository.Partition
	pageSize int
	minID    uint64
	maxID    uint64
	cursor   uint64
	done     bool
}

func NewScanner(docs repository.DocumentRepository, part repository.Partition, pageSize int, minID, maxID uint64) *Scanner {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Scanner{docs: docs, part: part, pageSize: pageSize, minID: minID, maxID: maxID}
}

// Next returns the next page of unprocessed documents, or an empty slice
// once the partition is exhausted.
func (s *Scanner) Next() ([]models.SourceDocument, error) {
	if s.done {
		return nil, nil
	}
	docs, err := s.docs.NextBatch(s.cursor, s.pageSize, s.part, s.minID, s.maxID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		s.done = true
		return nil, nil
	}
	s.cursor = docs[len(docs)-1].ID
	return docs, nil
}

// Cursor exposes the current resume position, mostly for logging.
func (s *Scanner) Cursor() uint64 { return s.cursor }
