package recovery

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultMaxRecords bounds the in-memory error history.
const defaultMaxRecords = 1000

// ErrorRecord captures one handled error.
type ErrorRecord struct {
	ID        string            `json:"id"`
	Time      time.Time         `json:"time"`
	Message   string            `json:"message"`
	Category  Category          `json:"category"`
	Severity  Severity          `json:"severity"`
	Context   map[string]string `json:"context,omitempty"`
	Resolved  bool              `json:"resolved"`
	Strategy  string            `json:"strategy,omitempty"`
}

// recordStore holds a bounded history of error records. When full, the
// oldest records are dropped.
type recordStore struct {
	mu      sync.Mutex
	records []ErrorRecord
	maxSize int
}

func newRecordStore(maxSize int) *recordStore {
	if maxSize <= 0 {
		maxSize = defaultMaxRecords
	}
	return &recordStore{maxSize: maxSize}
}

// append adds a record, evicting the oldest beyond maxSize, and returns
// its id.
func (s *recordStore) append(rec ErrorRecord) string {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if len(s.records) > s.maxSize {
		// Copy to a fresh slice so the dropped prefix can be collected.
		trimmed := make([]ErrorRecord, s.maxSize)
		copy(trimmed, s.records[len(s.records)-s.maxSize:])
		s.records = trimmed
	}
	return rec.ID
}

// resolve marks the record with the given id resolved by a strategy.
func (s *recordStore) resolve(id, strategy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Resolved = true
			s.records[i].Strategy = strategy
			return
		}
	}
}

// snapshot returns a copy of the stored records, oldest first.
func (s *recordStore) snapshot() []ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ErrorRecord, len(s.records))
	copy(out, s.records)
	return out
}
