package catalogio

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Dedup remembers record keys in a bloom filter shared by concurrent readers.
// A false positive makes a new record look like a duplicate at roughly the
// configured rate; nothing seen is ever reported as new.
type Dedup struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewDedup sizes the filter for capacity keys at false positive rate fpr.
func NewDedup(capacity uint, fpr float64) *Dedup {
	return &Dedup{filter: bloom.NewWithEstimates(capacity, fpr)}
}

// Seen reports whether key was probably added before and adds it.
func (d *Dedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filter.TestOrAddString(key)
}
