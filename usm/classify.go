package usm

import (
	"unsafe"

	"k8s.io/klog/v2"
)

// MemoryDescriptor is the capability descriptor a host value exposes to
// declare itself USM-backed. It is the only thing the classifier consumes:
// no other attribute of the value is inspected.
type MemoryDescriptor struct {
	// Buffer is the backing USM buffer.
	Buffer *Buffer

	// Data, SizeBytes, Queue, Kind and RefCount mirror the buffer's state so
	// the descriptor can be validated without touching the value again.
	Data      unsafe.Pointer
	SizeBytes int
	Queue     *Queue
	Kind      MemKind
	RefCount  int64
}

// Memory is implemented by host values backed by USM memory.
type Memory interface {
	// USMMemory returns the value's memory descriptor, or nil if the value
	// is not currently backed by USM memory.
	USMMemory() *MemoryDescriptor
}

// Owned is implemented by views that delegate memory ownership to a parent
// value (slices and reshapes commonly do).
type Owned interface {
	Owner() any
}

// AsUSMMemory determines whether obj exposes device-addressable memory and
// returns its backing buffer, or nil if none is discoverable.
//
// The probe is two-level: obj itself first, then obj's owner if obj
// implements Owned. "Not backed" is never an error; a malformed descriptor
// is reported as a diagnostic (klog verbosity 2) and treated as not backed.
func AsUSMMemory(obj any) *Buffer {
	if buf := probeUSMMemory(obj); buf != nil {
		return buf
	}
	if owned, ok := obj.(Owned); ok {
		if buf := probeUSMMemory(owned.Owner()); buf != nil {
			return buf
		}
	}
	return nil
}

func probeUSMMemory(obj any) *Buffer {
	mem, ok := obj.(Memory)
	if !ok {
		return nil
	}
	desc := mem.USMMemory()
	if desc == nil {
		return nil
	}
	if desc.Buffer == nil || desc.Data == nil || desc.SizeBytes <= 0 || desc.Queue == nil {
		klog.V(2).Infof("usm: malformed memory descriptor from %T (buffer=%v data=%v size=%d queue=%v), treating as not backed",
			obj, desc.Buffer, desc.Data, desc.SizeBytes, desc.Queue)
		return nil
	}
	if desc.SizeBytes != desc.Buffer.Size() {
		klog.V(2).Infof("usm: memory descriptor from %T declares %d bytes but buffer holds %d, treating as not backed",
			obj, desc.SizeBytes, desc.Buffer.Size())
		return nil
	}
	return desc.Buffer
}
