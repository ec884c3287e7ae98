package springseq

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestMemory(t *testing.T) {
	m := NewMemory(3)
	if m.ID() == "" {
		t.Error("Expected an id")
	}
	if m.Capacity() != 3 {
		t.Errorf("Expected capacity 3, got %d", m.Capacity())
	}

	for i := 1; i <= 5; i++ {
		m.Append(fmt.Sprintf("entry %d", i))
	}
	if diff := cmp.Diff([]string{"entry 3", "entry 4", "entry 5"}, m.Entries()); diff != "" {
		t.Errorf("Oldest entries should be evicted (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"entry 4", "entry 5"}, m.Recent(2)); diff != "" {
		t.Errorf("Recent(2) mismatch (-want +got):\n%s", diff)
	}
	if got := m.Recent(10); len(got) != 3 {
		t.Errorf("Recent beyond length should return all, got %d", len(got))
	}
	if got := m.Recent(0); got == nil || len(got) != 0 {
		t.Errorf("Recent(0) should be empty and non-nil, got %v", got)
	}

	m.Clear()
	if m.Len() != 0 {
		t.Errorf("Expected empty memory, got %d", m.Len())
	}
}

func TestMemoryDefaultCapacity(t *testing.T) {
	if NewMemory(0).Capacity() != DefaultMemoryCapacity {
		t.Error("Expected default capacity")
	}
}

func TestMemoryEntriesAreCopies(t *testing.T) {
	m := NewMemory(2)
	m.Append("a")
	entries := m.Entries()
	entries[0] = "mutated"
	if m.Entries()[0] != "a" {
		t.Error("Entries should return a copy")
	}
}

func TestMemoryConcurrent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := NewMemory(10)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.Append(fmt.Sprintf("%d-%d", i, j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = m.Recent(MemoryWindow)
			}
		}()
	}
	wg.Wait()

	if m.Len() != 10 {
		t.Errorf("Expected 10 entries, got %d", m.Len())
	}
}
