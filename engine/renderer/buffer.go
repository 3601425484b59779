package renderer

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/orng/engine/core"
)

// Buffer is a device-resident byte buffer with a stable handle.
type Buffer interface {
	// Handle stays the same across resizes.
	Handle() uint32
	// Size in bytes.
	Size() int
	// Resize reallocates to size bytes, keeping the old prefix and zero
	// filling any growth.
	Resize(size int)
	// SubData overwrites [offset, offset+len(data)). The range must fit.
	SubData(offset int, data []byte) error
	// PushBack grows the buffer by len(data) and writes data at the end.
	PushBack(data []byte)
	// Bytes reads the buffer back. The returned slice must not be modified.
	Bytes() []byte
	Release()
}

// BufferFactory allocates buffers for a renderer backend.
type BufferFactory interface {
	CreateBuffer(label string) Buffer
}

// BufferStats counts the driver calls made against a HostBuffer.
type BufferStats struct {
	Resizes   int
	SubWrites int
	Appends   int
	// Bytes written through SubData and PushBack.
	BytesWritten int
}

// HostBuffer keeps the buffer in system memory. It is the backend used when
// no GPU is available, and it is byte-exact, so tests can read back what a
// real driver would hold.
type HostBuffer struct {
	handle   uint32
	label    string
	data     []byte
	released bool
	stats    BufferStats
}

func (b *HostBuffer) Handle() uint32 { return b.handle }

func (b *HostBuffer) Label() string { return b.label }

func (b *HostBuffer) Size() int { return len(b.data) }

func (b *HostBuffer) Resize(size int) {
	if size < 0 {
		size = 0
	}
	b.stats.Resizes++
	if size <= cap(b.data) {
		old := len(b.data)
		b.data = b.data[:size]
		if size > old {
			clear(b.data[old:])
		}
		return
	}
	grown := make([]byte, size)
	copy(grown, b.data)
	b.data = grown
}

func (b *HostBuffer) SubData(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("buffer %d: write [%d, %d) past size %d: %w",
			b.handle, offset, offset+len(data), len(b.data), core.ErrOutOfRange)
	}
	b.stats.SubWrites++
	b.stats.BytesWritten += len(data)
	copy(b.data[offset:], data)
	return nil
}

func (b *HostBuffer) PushBack(data []byte) {
	b.stats.Appends++
	b.stats.BytesWritten += len(data)
	b.data = append(b.data, data...)
}

func (b *HostBuffer) Bytes() []byte { return b.data }

func (b *HostBuffer) Release() {
	b.released = true
	b.data = nil
}

func (b *HostBuffer) Released() bool { return b.released }

func (b *HostBuffer) Stats() BufferStats { return b.stats }

// ResetStats zeroes the counters, e.g. between frames.
func (b *HostBuffer) ResetStats() { b.stats = BufferStats{} }

// HostBufferFactory hands out HostBuffers with process-unique handles.
type HostBufferFactory struct {
	nextHandle atomic.Uint32
}

func NewHostBufferFactory() *HostBufferFactory {
	return &HostBufferFactory{}
}

func (f *HostBufferFactory) CreateBuffer(label string) Buffer {
	return &HostBuffer{
		handle: f.nextHandle.Add(1),
		label:  label,
	}
}
