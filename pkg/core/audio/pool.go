package audio

import "sync"

// FramePool hands out fixed-size PCM buffers for capture frames. Frames live
// for exactly one handoff (convert, send) so the same few buffers cycle
// through the pipeline instead of being reallocated per callback.
type FramePool struct {
	size int
	pool sync.Pool
}

// NewFramePool creates a pool of byte buffers of exactly size bytes.
func NewFramePool(size int) *FramePool {
	p := &FramePool{size: size}
	p.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return p
}

// Get returns a buffer of the pool's frame size.
func (p *FramePool) Get() []byte {
	return *(p.pool.Get().(*[]byte))
}

// Put returns a buffer to the pool. Buffers of the wrong size are dropped.
func (p *FramePool) Put(buf []byte) {
	if len(buf) != p.size {
		return
	}
	p.pool.Put(&buf)
}

// FrameSize returns the byte size of pooled frames.
func (p *FramePool) FrameSize() int {
	return p.size
}
