package usm

// Transfer engine: byte-exact copies between host arrays and USM buffers.
//
// Host-to-device repacks a non-contiguous source into row-major order before
// copying. Device-to-host never repacks: the destination the caller supplied
// must already be exactly sized and contiguous, it is never silently resized
// or rearranged.

import (
	"github.com/pkg/errors"
)

// CopyFromHost copies a host array's bytes into a USM buffer.
//
// If a is not row-major contiguous, a packed row-major copy is made first
// and returned with wasPacked=true; otherwise packed is a itself.
//
// Fails with ErrNotDeviceBacked if buf exposes no USM memory, with
// ErrUnsupportedDType for dtypes outside the transfer set, and with
// ErrSizeMismatch if the buffer byte size differs from the (packed) array
// byte size.
func CopyFromHost(buf *Buffer, a *HostArray) (packed *HostArray, wasPacked bool, err error) {
	mem := AsUSMMemory(buf)
	if mem == nil {
		return nil, false, errors.WithMessage(ErrNotDeviceBacked, "CopyFromHost destination")
	}
	if a == nil {
		return nil, false, errors.New("CopyFromHost given a nil host array")
	}
	if !a.DType().TransferSupported() {
		return nil, false, errors.Wrapf(ErrUnsupportedDType, "host array dtype %s", a.DType())
	}

	packed = a
	if !a.IsCContiguous() {
		packed = a.Flatten()
		wasPacked = true
	}

	if mem.Size() != packed.SizeBytes() {
		return nil, false, errors.Wrapf(ErrSizeMismatch,
			"USM buffer holds %d bytes, host array needs %d", mem.Size(), packed.SizeBytes())
	}
	copy(mem.bytes(), packed.Bytes())
	return packed, wasPacked, nil
}

// CopyToHost copies a USM buffer's bytes into a host array.
//
// The destination must already be row-major contiguous and exactly sized;
// repacking the destination is not supported and fails with ErrSizeMismatch.
func CopyToHost(buf *Buffer, a *HostArray) error {
	mem := AsUSMMemory(buf)
	if mem == nil {
		return errors.WithMessage(ErrNotDeviceBacked, "CopyToHost source")
	}
	if a == nil {
		return errors.New("CopyToHost given a nil host array")
	}
	if !a.DType().TransferSupported() {
		return errors.Wrapf(ErrUnsupportedDType, "host array dtype %s", a.DType())
	}
	if !a.IsCContiguous() {
		return errors.Wrapf(ErrSizeMismatch, "destination host array must be C-contiguous")
	}
	if mem.Size() != a.SizeBytes() {
		return errors.Wrapf(ErrSizeMismatch,
			"USM buffer holds %d bytes, host array holds %d", mem.Size(), a.SizeBytes())
	}
	copy(a.Bytes(), mem.bytes())
	return nil
}

// Materialize returns USM memory backing obj.
//
// If the classifier already finds backing memory, it is returned unchanged
// and nothing is allocated or copied. Otherwise obj must be a *HostArray
// (ErrNotDeviceBacked), q a valid queue (ErrQueueRequired when nil,
// ErrInvalidQueueType when destroyed) and kind a valid USM kind
// (ErrInvalidMemoryKind); a buffer of exactly obj's byte size is allocated
// on q, and obj's data copied in when copyData is set.
func Materialize(obj any, q *Queue, kind MemKind, copyData bool) (*Buffer, error) {
	if buf := AsUSMMemory(obj); buf != nil {
		return buf, nil
	}

	if q == nil {
		return nil, errors.WithMessage(ErrQueueRequired, "materializing USM memory needs a queue to allocate on")
	}
	if !q.IsValid() {
		return nil, errors.Wrapf(ErrInvalidQueueType, "queue %s was destroyed", q)
	}
	if !kind.Valid() {
		return nil, errors.Wrapf(ErrInvalidMemoryKind, "supported kinds are shared, device and host, got %d", int(kind))
	}

	a, ok := obj.(*HostArray)
	if !ok || a == nil {
		return nil, errors.Wrapf(ErrNotDeviceBacked, "value of type %T is also not a host array", obj)
	}
	if !a.DType().TransferSupported() {
		return nil, errors.Wrapf(ErrUnsupportedDType, "host array dtype %s", a.DType())
	}

	buf, err := q.AllocMemory(kind, a.SizeBytes())
	if err != nil {
		return nil, err
	}
	if copyData {
		if _, _, err := CopyFromHost(buf, a); err != nil {
			destroyOrLog(buf)
			return nil, err
		}
	}
	return buf, nil
}
