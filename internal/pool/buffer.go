// Package pool provides a small pooled byte buffer used to assemble the
// in-memory MemeDB carrier payload during write, sized for the handful of
// short tags a tag set typically holds rather than for bulk data.
package pool

import "sync"

// CarrierBufferDefaultSize is the default capacity handed out by the pool.
// A MemeDB payload holding a handful of short tags fits comfortably within
// this without any reallocation.
const (
	CarrierBufferDefaultSize  = 256
	CarrierBufferMaxThreshold = 1024 * 64 // 64KiB
)

// ByteBuffer is a growable byte slice wrapper, reused across encode calls via
// a sync.Pool to avoid repeated allocation for every write.
type ByteBuffer struct {
	B []byte
}

// NewByteBuffer creates a ByteBuffer with the given starting capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{B: make([]byte, 0, defaultSize)}
}

// Bytes returns the buffer's current contents.
func (bb *ByteBuffer) Bytes() []byte { return bb.B }

// Len returns the number of bytes currently held.
func (bb *ByteBuffer) Len() int { return len(bb.B) }

// Reset empties the buffer while retaining its backing array.
func (bb *ByteBuffer) Reset() { bb.B = bb.B[:0] }

// Write appends data, growing the backing array if necessary.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.B = append(bb.B, data...)
	return len(data), nil
}

// WriteByte appends a single byte.
func (bb *ByteBuffer) WriteByte(c byte) error {
	bb.B = append(bb.B, c)
	return nil
}

// Pool hands out ByteBuffers backed by a sync.Pool, discarding buffers that
// grew past maxThreshold so one oversized tag set doesn't inflate steady
// state memory.
type Pool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewPool creates a Pool whose buffers start at defaultSize and are
// discarded, rather than recycled, once they exceed maxThreshold.
func NewPool(defaultSize, maxThreshold int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any { return NewByteBuffer(defaultSize) },
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a reset ByteBuffer from the pool.
func (p *Pool) Get() *ByteBuffer {
	bb, _ := p.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns bb to the pool for reuse.
func (p *Pool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	if p.maxThreshold > 0 && cap(bb.B) > p.maxThreshold {
		return
	}

	bb.Reset()
	p.pool.Put(bb)
}

var carrierPool = NewPool(CarrierBufferDefaultSize, CarrierBufferMaxThreshold)

// GetCarrierBuffer retrieves a ByteBuffer from the shared carrier-payload pool.
func GetCarrierBuffer() *ByteBuffer { return carrierPool.Get() }

// PutCarrierBuffer returns bb to the shared carrier-payload pool.
func PutCarrierBuffer(bb *ByteBuffer) { carrierPool.Put(bb) }
