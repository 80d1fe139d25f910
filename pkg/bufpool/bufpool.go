// Package bufpool provides pooled byte buffers with strict rent/return
// accounting. Returning a buffer twice, or returning a buffer the pool never
// handed out, is reported as an error instead of corrupting the free lists.
package bufpool

import (
	"errors"
	"sync"
)

// Size classes.
const (
	MinClassSize = 256
	MaxClassSize = 1 << 19

	// DefaultFreePerClass is the number of idle buffers kept per class.
	DefaultFreePerClass = 32
)

// Pool errors.
var (
	ErrDoubleReturn  = errors.New("buffer returned twice")
	ErrForeignBuffer = errors.New("buffer not rented from this pool")
)

// Stats is a snapshot of pool accounting.
type Stats struct {
	Rented      uint64
	Returned    uint64
	Outstanding int
	Idle        int
}

// Pool hands out byte buffers in power-of-two size classes. It is safe for
// concurrent use.
type Pool struct {
	mu sync.Mutex

	// free lists indexed by size class
	free [][][]byte

	// owned tracks every buffer the pool knows about; true while rented
	owned map[*byte]bool

	maxFree  int
	rented   uint64
	returned uint64
}

// New creates an empty pool.
func New() *Pool {
	return NewWithLimit(DefaultFreePerClass)
}

// NewWithLimit creates a pool keeping at most maxFree idle buffers per class.
func NewWithLimit(maxFree int) *Pool {
	n := 0
	for s := MinClassSize; s <= MaxClassSize; s <<= 1 {
		n++
	}
	return &Pool{
		free:    make([][][]byte, n),
		owned:   make(map[*byte]bool),
		maxFree: maxFree,
	}
}

func classFor(n int) (idx, size int) {
	size = MinClassSize
	for size < n {
		size <<= 1
		idx++
	}
	return idx, size
}

func key(b []byte) *byte {
	if cap(b) == 0 {
		return nil
	}
	return &b[:1][0]
}

// Rent returns a buffer of length n. The contents are not zeroed.
func (p *Pool) Rent(n int) []byte {
	if n < 0 {
		n = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var b []byte
	if n <= MaxClassSize {
		idx, size := classFor(n)
		if l := len(p.free[idx]); l > 0 {
			b = p.free[idx][l-1]
			p.free[idx] = p.free[idx][:l-1]
		} else {
			b = make([]byte, size)
		}
	} else {
		b = make([]byte, n)
	}

	p.owned[key(b)] = true
	p.rented++
	return b[:n]
}

// Return gives a buffer back to the pool. The caller must not touch b
// afterwards.
func (p *Pool) Return(b []byte) error {
	k := key(b)
	if k == nil {
		return ErrForeignBuffer
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rented, ok := p.owned[k]
	if !ok {
		return ErrForeignBuffer
	}
	if !rented {
		return ErrDoubleReturn
	}
	p.returned++

	b = b[:cap(b)]
	if len(b) > MaxClassSize {
		delete(p.owned, k)
		return nil
	}
	idx, size := classFor(len(b))
	if size != len(b) || len(p.free[idx]) >= p.maxFree {
		delete(p.owned, k)
		return nil
	}
	p.owned[k] = false
	p.free[idx] = append(p.free[idx], b)
	return nil
}

// Outstanding returns the number of buffers currently rented.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.rented - p.returned)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := 0
	for _, l := range p.free {
		idle += len(l)
	}
	return Stats{
		Rented:      p.rented,
		Returned:    p.returned,
		Outstanding: int(p.rented - p.returned),
		Idle:        idle,
	}
}
