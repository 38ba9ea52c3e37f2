package logbuffer

import (
	"sync"
	"time"
)

const (
	// DefaultBufferSize is the default number of entries to keep
	DefaultBufferSize = 1000
	// MaxEntrySize is the maximum size of a single log message in bytes
	MaxEntrySize = 2048
)

// LogEntry represents a single log entry kept by the debug logger
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Function  string    `json:"function"`
}

// Truncated returns a copy of the entry with the message capped at MaxEntrySize
func (e LogEntry) Truncated() LogEntry {
	if len(e.Message) > MaxEntrySize {
		e.Message = e.Message[:MaxEntrySize-3] + "..."
	}
	return e
}

// RingBuffer is a thread-safe circular buffer. Once full, every Add
// overwrites the oldest entry.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	entries  []T
	head     int  // next write position
	count    int  // number of entries currently stored
	capacity int  // maximum number of entries
	full     bool // whether the buffer has wrapped
}

// New creates a new RingBuffer with the specified capacity
func New[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &RingBuffer[T]{
		entries:  make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends entries in order, dropping the oldest ones once the
// capacity is exceeded
func (rb *RingBuffer[T]) Add(items ...T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for _, item := range items {
		rb.entries[rb.head] = item
		rb.head = (rb.head + 1) % rb.capacity

		if rb.count < rb.capacity {
			rb.count++
		} else {
			rb.full = true
		}
	}
}

// GetAll returns all entries in chronological order (oldest first)
func (rb *RingBuffer[T]) GetAll() []T {
	return rb.Filter(nil)
}

// Filter returns the entries accepted by keep in chronological order.
// A nil keep accepts everything.
func (rb *RingBuffer[T]) Filter(keep func(T) bool) []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return nil
	}

	// oldest entry is at head once the buffer has wrapped
	start := 0
	if rb.full {
		start = rb.head
	}

	result := make([]T, 0, rb.count)
	for i := 0; i < rb.count; i++ {
		entry := rb.entries[(start+i)%rb.capacity]
		if keep == nil || keep(entry) {
			result = append(result, entry)
		}
	}

	return result
}

// Clear removes all entries from the buffer
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := range rb.entries {
		rb.entries[i] = zero
	}
	rb.head = 0
	rb.count = 0
	rb.full = false
}

// Count returns the number of entries currently in the buffer
func (rb *RingBuffer[T]) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Capacity returns the maximum number of entries the buffer can hold
func (rb *RingBuffer[T]) Capacity() int {
	return rb.capacity
}

// IsFull returns true if the buffer has wrapped at least once
func (rb *RingBuffer[T]) IsFull() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.full
}
