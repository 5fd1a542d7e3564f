package util

import "sync"

// DefaultChunkSize is the file-part payload size used for downloads
// and uploads (512 KiB).
const DefaultChunkSize = 512 * 1024

// BufPool hands out reusable byte buffers of one fixed size, reducing
// GC pressure on the transfer loops.  A session streams at most one
// download at a time, so a pool per process keeps memory flat even with
// many concurrent connections.
type BufPool struct {
	size int
	pool sync.Pool
}

// NewBufPool returns a pool of buffers of the given size.
func NewBufPool(size int) *BufPool {
	if size <= 0 {
		size = DefaultChunkSize
	}
	p := &BufPool{size: size}
	p.pool.New = func() interface{} {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Size reports the length of every buffer in the pool.
func (p *BufPool) Size() int { return p.size }

// Get retrieves a buffer from the pool.  Callers must return it with
// [BufPool.Put] when finished.
func (p *BufPool) Get() *[]byte {
	return p.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool for reuse.  Buffers of a foreign size
// are dropped.
func (p *BufPool) Put(buf *[]byte) {
	if buf == nil || len(*buf) != p.size {
		return
	}
	p.pool.Put(buf)
}
