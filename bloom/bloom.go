// Package bloom implements a small thread-safe Bloom filter used to
// sketch an address set: the Bloom-based inevitability admission policy
// sketches an inevitable transaction's write set, and the Bloom retry
// policy sketches a parked transaction's read set, so a committing writer
// can test "might this wake someone" without keeping the exact set around.
package bloom

import (
	"hash"
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

const defaultFalsePositiveRate = 0.01

// Filter is safe for concurrent Add/Contains/Reset calls.
type Filter struct {
	mu      sync.RWMutex
	bitset  []bool
	hashFns []hash.Hash32
	m       int
}

// New creates a Filter sized for n expected elements at false-positive
// rate p.
func New(n int, p float64) *Filter {
	if n < 1 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = defaultFalsePositiveRate
	}
	m := int(math.Ceil(-float64(n) * math.Log(p) / math.Pow(math.Log(2), 2)))
	if m < 1 {
		m = 1
	}
	k := int(math.Round((float64(m) / float64(n)) * math.Log(2)))
	if k < 1 {
		k = 1
	}

	hashFns := make([]hash.Hash32, k)
	for i := range hashFns {
		hashFns[i] = murmur3.New32WithSeed(uint32(i))
	}

	return &Filter{
		bitset:  make([]bool, m),
		hashFns: hashFns,
		m:       m,
	}
}

// NewDefault creates a Filter sized for n expected elements at the default
// false-positive rate.
func NewDefault(n int) *Filter {
	return New(n, defaultFalsePositiveRate)
}

// Add inserts key into the filter.
func (f *Filter) Add(key []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.hashFns {
		fn.Reset()
		_, _ = fn.Write(key)
		index := int(fn.Sum32()) % f.m
		f.bitset[index] = true
	}
}

// Contains reports whether key might have been added. False positives are
// possible; false negatives are not.
func (f *Filter) Contains(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	// Concurrent readers share the read lock, so hash with the stateless
	// seeded function (the same values as hashFns[i]) instead of mutating
	// the shared hashers.
	for i := range f.hashFns {
		index := int(murmur3.Sum32WithSeed(key, uint32(i))) % f.m
		if !f.bitset[index] {
			return false
		}
	}
	return true
}

// Intersects reports whether any key in keys might be present in the
// filter -- used by a committing writer to test whether its touched
// addresses might overlap a parked transaction's sketched read set.
func (f *Filter) Intersects(keys [][]byte) bool {
	for _, k := range keys {
		if f.Contains(k) {
			return true
		}
	}
	return false
}

// Reset clears the filter for reuse.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bitset {
		f.bitset[i] = false
	}
}
