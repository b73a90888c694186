// Package pool provides reusable byte buffers for the hashing and copy paths.
//
// Buffers are grouped into power-of-two buckets, each backed by a sync.Pool, so
// a caller asking for a 64 KiB hash chunk and a caller asking for a 256 KiB
// weak-hash window never receive each other's slices. Buffers larger than the
// biggest bucket are allocated on demand and dropped on Put.
package pool

import (
	"fmt"
	"math/bits"
	"sync"
)

// Buffers hands out byte slices by size class.
type Buffers struct {
	minExp  int
	maxExp  int
	buckets []sync.Pool
}

// New creates a pool for sizes between minSize and maxSize. Both must be
// powers of two and minSize must be smaller than maxSize.
func New(minSize, maxSize int) *Buffers {
	if !isPowerOfTwo(minSize) || !isPowerOfTwo(maxSize) {
		panic(fmt.Sprintf("pool sizes must be powers of two, got %d and %d", minSize, maxSize))
	}
	if maxSize <= minSize {
		panic("maxSize must be greater than minSize")
	}

	b := &Buffers{
		minExp: bits.TrailingZeros(uint(minSize)),
		maxExp: bits.TrailingZeros(uint(maxSize)),
	}
	b.buckets = make([]sync.Pool, b.maxExp+1)
	for exp := b.minExp; exp <= b.maxExp; exp++ {
		size := 1 << exp
		b.buckets[exp].New = func() any {
			buf := make([]byte, size)
			return &buf
		}
	}
	return b
}

// Get returns a slice of exactly size bytes. Its capacity may be larger.
func (b *Buffers) Get(size int) *[]byte {
	if size <= 0 {
		buf := make([]byte, 0)
		return &buf
	}
	if size > 1<<b.maxExp {
		buf := make([]byte, size)
		return &buf
	}

	exp := max(bits.Len(uint(size-1)), b.minExp)
	bufPtr := b.buckets[exp].Get().(*[]byte)
	*bufPtr = (*bufPtr)[:size]
	return bufPtr
}

// Put returns a buffer obtained from Get. Foreign or oversized buffers are dropped.
func (b *Buffers) Put(bufPtr *[]byte) {
	if bufPtr == nil {
		return
	}
	c := cap(*bufPtr)
	if c < 1<<b.minExp || c > 1<<b.maxExp || !isPowerOfTwo(c) {
		return
	}
	*bufPtr = (*bufPtr)[:c]
	b.buckets[bits.TrailingZeros(uint(c))].Put(bufPtr)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
