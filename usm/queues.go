package usm

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gousm/gousm/target"
	"github.com/pkg/errors"
)

// Device is an execution target described by one of the closed set of
// backend descriptors. The in-process runtime executes kernels on the host,
// whatever kind the descriptor declares; the descriptor governs typing and
// address-space tagging.
type Device struct {
	desc    target.BackendDescriptor
	ordinal int
}

// NewDevice creates a device for the given backend descriptor.
func NewDevice(desc target.BackendDescriptor, ordinal int) *Device {
	return &Device{desc: desc, ordinal: ordinal}
}

// Backend returns the device's backend descriptor.
func (d *Device) Backend() target.BackendDescriptor { return d.desc }

// Ordinal returns the device index within its backend.
func (d *Device) Ordinal() int { return d.ordinal }

// IsAddressable reports whether this process can allocate on and launch to
// the device.
func (d *Device) IsAddressable() bool { return d.desc.Addressable }

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("Device(%s:%d)", d.desc.Name, d.ordinal)
}

// NewQueue creates a command queue on the device.
func (d *Device) NewQueue() (*Queue, error) {
	if !d.IsAddressable() {
		return nil, errors.Errorf("device %s is not addressable from this process", d)
	}
	q := &Queue{id: uuid.New(), device: d}
	q.alive.Store(true)
	return q, nil
}

// Queue identifies a device execution context. Allocation, marshaling and
// launch are always performed against an explicit queue; the runtime keeps
// no implicit current queue.
//
// Queues are identity-comparable via Equal (or their UUID).
type Queue struct {
	id     uuid.UUID
	device *Device
	alive  atomic.Bool
}

// ID returns the queue's unique identity.
func (q *Queue) ID() uuid.UUID { return q.id }

// Device returns the device the queue executes on.
func (q *Queue) Device() *Device { return q.device }

// Equal reports whether both handles name the same queue.
func (q *Queue) Equal(other *Queue) bool {
	return q != nil && other != nil && q.id == other.id
}

// IsValid reports whether the queue is usable (created and not destroyed).
func (q *Queue) IsValid() bool {
	return q != nil && q.alive.Load()
}

// Destroy invalidates the queue. Idempotent. Buffers allocated against it
// stay alive until they are destroyed themselves.
func (q *Queue) Destroy() error {
	if q != nil {
		q.alive.Store(false)
	}
	return nil
}

// String implements fmt.Stringer.
func (q *Queue) String() string {
	if q == nil {
		return "Queue(nil)"
	}
	return fmt.Sprintf("Queue(%s, %s)", q.device, shortID(q.id))
}

func shortID(id uuid.UUID) string {
	s := id.String()
	return s[:8]
}

// AllocMemory allocates a USM buffer of the given kind and byte size on the
// queue. The buffer's byte size is exactly sizeBytes.
func (q *Queue) AllocMemory(kind MemKind, sizeBytes int) (*Buffer, error) {
	if !q.IsValid() {
		return nil, errors.Wrapf(ErrInvalidQueueType, "cannot allocate on %s", q)
	}
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrInvalidMemoryKind, "supported kinds are shared, device and host, got %d", int(kind))
	}
	if sizeBytes <= 0 {
		return nil, errors.Errorf("allocation size must be positive, got %d", sizeBytes)
	}
	return newBuffer(q, kind, sizeBytes), nil
}
