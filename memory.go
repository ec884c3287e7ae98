package springseq

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultMemoryCapacity bounds conversation memory.
const DefaultMemoryCapacity = 10

// Memory is the rolling conversation context: one formatted parameter
// summary per successful generation, oldest evicted first once the
// capacity is exceeded.
//
// Memory is safe for concurrent use by multiple goroutines.
type Memory struct {
	id       string
	entries  []string
	capacity int
	mu       sync.RWMutex
}

// NewMemory creates an empty memory holding at most capacity entries.
// A non-positive capacity uses DefaultMemoryCapacity.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{
		id:       uuid.New().String(),
		entries:  make([]string, 0, capacity),
		capacity: capacity,
	}
}

// ID returns the unique identifier for this memory.
func (m *Memory) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// Capacity returns the maximum number of stored entries.
func (m *Memory) Capacity() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.capacity
}

// Append stores an entry, evicting the oldest beyond capacity.
func (m *Memory) Append(entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append(make([]string, 0, m.capacity), m.entries[over:]...)
	}
}

// Entries returns a copy of all entries in insertion order.
func (m *Memory) Entries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]string, len(m.entries))
	copy(entries, m.entries)
	return entries
}

// Recent returns up to n most recent entries, oldest first.
func (m *Memory) Recent(n int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 {
		return []string{}
	}
	start := len(m.entries) - n
	if start < 0 {
		start = 0
	}
	recent := make([]string, len(m.entries)-start)
	copy(recent, m.entries[start:])
	return recent
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear removes all entries.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make([]string, 0, m.capacity)
}
