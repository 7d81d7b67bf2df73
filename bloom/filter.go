// Package bloom implements the append-only membership filter that gates
// cache probes for keys that were never written.
package bloom

import (
	"math"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultSize is the bit count used when no size is configured.
	DefaultSize uint64 = 1_000_000
	// DefaultHashCount is the number of bit positions set per key.
	DefaultHashCount uint = 5
)

// Filter is a fixed-size Bloom filter. Add and Check are safe for
// concurrent use without locks. There is no removal.
type Filter struct {
	words []atomic.Uint64
	size  uint64
	k     uint
}

// New returns a filter with size bits and hashCount positions per key.
// A zero size yields a filter that reports every key absent.
func New(size uint64, hashCount uint) *Filter {
	if hashCount == 0 {
		hashCount = DefaultHashCount
	}
	return &Filter{
		words: make([]atomic.Uint64, (size+63)/64),
		size:  size,
		k:     hashCount,
	}
}

// NewWithEstimate sizes a filter for n keys at false positive rate p.
func NewWithEstimate(n uint64, p float64) *Filter {
	m, k := OptimalParams(n, p)
	return New(m, k)
}

// OptimalParams returns the bit count and hash count minimizing false
// positives for n keys at target rate p.
func OptimalParams(n uint64, p float64) (uint64, uint) {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	m := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	k := math.Round(m / float64(n) * math.Ln2)
	if k < 1 {
		k = 1
	}
	return uint64(m), uint(k)
}

// Size reports the bit count.
func (f *Filter) Size() uint64 {
	if f == nil {
		return 0
	}
	return f.size
}

// HashCount reports the positions set per key.
func (f *Filter) HashCount() uint {
	if f == nil {
		return 0
	}
	return f.k
}

// Add sets the positions for key.
func (f *Filter) Add(key string) {
	if f == nil || f.size == 0 {
		return
	}
	h1, h2 := split(key)
	for i := uint64(0); i < uint64(f.k); i++ {
		pos := (h1 + i*h2) % f.size
		f.words[pos>>6].Or(1 << (pos & 63))
	}
}

// Check reports whether key may have been added. False means definitely absent.
func (f *Filter) Check(key string) bool {
	if f == nil || f.size == 0 {
		return false
	}
	h1, h2 := split(key)
	for i := uint64(0); i < uint64(f.k); i++ {
		pos := (h1 + i*h2) % f.size
		if f.words[pos>>6].Load()&(1<<(pos&63)) == 0 {
			return false
		}
	}
	return true
}

// EstimatedFalsePositive returns the expected false positive rate after n
// distinct insertions.
func (f *Filter) EstimatedFalsePositive(n uint64) float64 {
	if f == nil || f.size == 0 {
		return 0
	}
	k := float64(f.k)
	return math.Pow(1-math.Exp(-k*float64(n)/float64(f.size)), k)
}

// split derives the two double-hashing seeds from one 64-bit digest.
func split(key string) (uint64, uint64) {
	sum := xxhash.Sum64String(key)
	h1 := sum & 0xffffffff
	h2 := sum >> 32
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}
