package results

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Index remembers which hashes have already been reported, in memory that
// does not grow with the potfile. Membership is answered by the bloom filter
// alone: at the configured 1% false positive rate a few new hashes are
// taken for known ones and are not reported by the watcher. The sweep sync
// writes the whole potfile, so persisted results still catch up.
type Index struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	added  int
}

// NewIndex sizes the filter for expected entries at a 1% false positive rate
func NewIndex(expected uint) *Index {
	if expected == 0 {
		expected = 100000
	}
	return &Index{
		filter: bloom.NewWithEstimates(expected, 0.01),
	}
}

// Contains reports whether hash has probably been added
func (i *Index) Contains(hash string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.filter.TestString(hash)
}

// Add records hash and reports whether it was new
func (i *Index) Add(hash string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.filter.TestAndAddString(hash) {
		return false
	}
	i.added++
	return true
}

// Merge adds records and returns those whose hash was not yet known,
// keeping the first record per hash
func (i *Index) Merge(records []CrackedRecord) []CrackedRecord {
	var fresh []CrackedRecord
	for _, r := range records {
		if i.Add(r.Hash) {
			fresh = append(fresh, r)
		}
	}
	return fresh
}

// Len returns the number of hashes accepted as new
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.added
}

// MemoryBytes returns the size of the filter's bit set
func (i *Index) MemoryBytes() uint {
	return i.filter.Cap() / 8
}
