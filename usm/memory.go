package usm

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// MemKind is the USM allocation kind.
type MemKind int

const (
	// MemShared memory is addressable from both host and device.
	MemShared MemKind = iota
	// MemDevice memory is addressable from the device only.
	MemDevice
	// MemHost memory is host memory pinned for device access.
	MemHost
)

// String implements fmt.Stringer.
func (k MemKind) String() string {
	switch k {
	case MemShared:
		return "shared"
	case MemDevice:
		return "device"
	case MemHost:
		return "host"
	}
	return fmt.Sprintf("MemKind(%d)", int(k))
}

// Valid reports whether k is one of the defined kinds.
func (k MemKind) Valid() bool {
	return k == MemShared || k == MemDevice || k == MemHost
}

// MemKindFromString parses the external "shared"/"device"/"host" spelling.
func MemKindFromString(s string) (MemKind, error) {
	switch strings.ToLower(s) {
	case "shared":
		return MemShared, nil
	case "device":
		return MemDevice, nil
	case "host":
		return MemHost, nil
	}
	return 0, errors.Wrapf(ErrInvalidMemoryKind, "supported kinds are shared, device and host, got %q", s)
}

// BufferAlignment is the alignment of USM allocations, in bytes.
const BufferAlignment = 64

// Buffer is a reference to USM memory allocated against a specific queue.
//
// The component that allocated it owns it until Destroy; array views hold
// non-owning references (see Retain/Release). A Buffer is not safe for
// concurrent use from two launches without external synchronization.
type Buffer struct {
	wrapper *memoryWrapper
	queue   *Queue
	kind    MemKind
	size    int
}

// memoryWrapper holds the backing storage that requires cleanup.
type memoryWrapper struct {
	storage []byte // aligned view into a larger Go allocation
	refs    atomic.Int64
}

func (wrapper *memoryWrapper) isValid() bool {
	return wrapper != nil && wrapper.storage != nil
}

func (wrapper *memoryWrapper) destroy() error {
	if wrapper == nil || wrapper.storage == nil {
		// Already destroyed, no-op.
		return nil
	}
	if refs := wrapper.refs.Load(); refs > 1 {
		return errors.Errorf("buffer still has %d outstanding references", refs-1)
	}
	wrapper.storage = nil
	buffersAlive.Add(-1)
	return nil
}

// destroyOrLog destroys the buffer, logging instead of failing on error.
func destroyOrLog(b *Buffer) {
	if err := b.Destroy(); err != nil {
		klog.Errorf("usm.Buffer.Destroy failed: %v", err)
	}
}

var buffersAlive atomic.Int64

// BuffersAlive returns the number of USM buffers currently allocated and
// tracked by the runtime.
func BuffersAlive() int64 {
	return buffersAlive.Load()
}

// alignedBytes allocates size bytes aligned to BufferAlignment.
// The extra slack lets us slide the view to an aligned offset; the Go heap
// does not move allocations, so the alignment is stable.
func alignedBytes(size int) []byte {
	raw := make([]byte, size+BufferAlignment)
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	offset := int((BufferAlignment - addr%BufferAlignment) % BufferAlignment)
	return raw[offset : offset+size : offset+size]
}

// newBuffer allocates USM memory and registers it for cleanup.
// Internal: use Queue.AllocMemory.
func newBuffer(queue *Queue, kind MemKind, size int) *Buffer {
	b := &Buffer{
		wrapper: &memoryWrapper{storage: alignedBytes(size)},
		queue:   queue,
		kind:    kind,
		size:    size,
	}
	b.wrapper.refs.Store(1)
	buffersAlive.Add(1)

	runtime.AddCleanup(b, func(wrapper *memoryWrapper) {
		if err := wrapper.destroy(); err != nil {
			klog.Errorf("usm.Buffer leaked and cleanup failed: %v", err)
		}
	}, b.wrapper)
	return b
}

// Destroy releases the buffer's memory. After Destroy the buffer is no
// longer valid. It fails if array views still hold references.
// This is automatically called if the Buffer is garbage collected.
func (b *Buffer) Destroy() error {
	if b == nil || !b.wrapper.isValid() {
		return nil
	}
	if err := b.wrapper.destroy(); err != nil {
		return err
	}
	b.queue = nil
	return nil
}

// IsValid reports whether the buffer still holds memory.
func (b *Buffer) IsValid() bool {
	return b != nil && b.wrapper.isValid()
}

// Size returns the buffer's byte size.
func (b *Buffer) Size() int { return b.size }

// Kind returns the USM kind the buffer was allocated as.
func (b *Buffer) Kind() MemKind { return b.kind }

// Queue returns the queue the buffer was allocated against.
func (b *Buffer) Queue() *Queue { return b.queue }

// Ptr returns the device address of the buffer's memory.
// The pointer stays valid while the buffer is retained.
func (b *Buffer) Ptr() unsafe.Pointer {
	if !b.IsValid() {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(b.wrapper.storage))
}

// bytes returns the buffer's memory as a byte slice, for transfers.
func (b *Buffer) bytes() []byte {
	if !b.IsValid() {
		return nil
	}
	return b.wrapper.storage
}

// Retain adds a non-owning reference, e.g. for an array view sharing the
// buffer. Each Retain must be balanced by a Release.
func (b *Buffer) Retain() {
	if b.IsValid() {
		b.wrapper.refs.Add(1)
	}
}

// Release drops a reference taken with Retain.
func (b *Buffer) Release() {
	if b.IsValid() {
		b.wrapper.refs.Add(-1)
	}
}

// RefCount returns the current reference count.
func (b *Buffer) RefCount() int64 {
	if !b.IsValid() {
		return 0
	}
	return b.wrapper.refs.Load()
}

// String implements fmt.Stringer.
func (b *Buffer) String() string {
	if !b.IsValid() {
		return "Buffer(destroyed)"
	}
	return fmt.Sprintf("Buffer(%s, %d bytes, queue=%s)", b.kind, b.size, b.queue)
}

// USMMemory implements the Memory capability interface: a Buffer trivially
// describes itself.
func (b *Buffer) USMMemory() *MemoryDescriptor {
	if !b.IsValid() {
		return nil
	}
	return &MemoryDescriptor{
		Buffer:    b,
		Data:      b.Ptr(),
		SizeBytes: b.size,
		Queue:     b.queue,
		Kind:      b.kind,
		RefCount:  b.RefCount(),
	}
}
