package springseq

import (
	"sync"
	"time"
)

// DefaultHistoryLimit bounds the request history log.
const DefaultHistoryLimit = 50

// HistoryRecord captures one dispatched request and how it ended.
type HistoryRecord struct {
	OperationID string        `json:"operation_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Provider    string        `json:"provider"`
	Temperature float32       `json:"temperature"`
	Generation  bool          `json:"generation"`
	System      string        `json:"system"`
	User        string        `json:"user"`
	Status      Status        `json:"status"`
	Attempts    int           `json:"attempts"`
	Duration    time.Duration `json:"duration"`
}

// history is a bounded log of request records, newest last.
type history struct {
	records []HistoryRecord
	limit   int
	mu      sync.RWMutex
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &history{limit: limit}
}

func (h *history) add(rec HistoryRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)
	if over := len(h.records) - h.limit; over > 0 {
		h.records = append([]HistoryRecord(nil), h.records[over:]...)
	}
}

func (h *history) list() []HistoryRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	records := make([]HistoryRecord, len(h.records))
	copy(records, h.records)
	return records
}

func (h *history) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}
