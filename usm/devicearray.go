package usm

import (
	"fmt"

	"github.com/gousm/gousm/usmarray"
	"github.com/pkg/errors"
)

// DeviceArray is a typed array view over a USM buffer: the runtime value a
// kernel argument of array type marshals from. It pairs an ArrayType (dtype,
// rank, layout, address space) with shape/stride metadata and a non-owning
// reference to the buffer.
//
// Several views may share one buffer; each view retains it and must be
// released (Release) before the buffer can be destroyed.
type DeviceArray struct {
	typ     usmarray.ArrayType
	buf     *Buffer
	dims    []int
	strides []int // byte strides
	parent  any
}

// NewDeviceArray builds a C-contiguous device array view over buf.
//
// The buffer byte size must equal itemsize * element-count of the view: the
// view never addresses memory the buffer does not hold, and never leaves a
// tail of the buffer unaccounted for.
func NewDeviceArray(t usmarray.ArrayType, buf *Buffer, dims ...int) (*DeviceArray, error) {
	itemSize := t.DType.SizeOf()
	if itemSize == 0 {
		return nil, errors.Errorf("NewDeviceArray given invalid dtype %s", t.DType)
	}
	dimsCopy := append([]int(nil), dims...)
	return newDeviceArray(t, buf, dimsCopy, cStrides(dimsCopy, itemSize))
}

// NewDeviceArrayStrided builds a strided device array view over buf.
// The size invariant of NewDeviceArray still holds.
func NewDeviceArrayStrided(t usmarray.ArrayType, buf *Buffer, dims, strides []int) (*DeviceArray, error) {
	if t.DType.SizeOf() == 0 {
		return nil, errors.Errorf("NewDeviceArrayStrided given invalid dtype %s", t.DType)
	}
	if len(dims) != len(strides) {
		return nil, errors.Errorf("NewDeviceArrayStrided needs one stride per dimension, got dims=%v strides=%v", dims, strides)
	}
	return newDeviceArray(t, buf, append([]int(nil), dims...), append([]int(nil), strides...))
}

func newDeviceArray(t usmarray.ArrayType, buf *Buffer, dims, strides []int) (*DeviceArray, error) {
	if !buf.IsValid() {
		return nil, errors.WithMessage(ErrNotDeviceBacked, "device array over a destroyed buffer")
	}
	if t.Ndim != len(dims) {
		return nil, errors.Errorf("array type %s has rank %d but %d dimensions given", t, t.Ndim, len(dims))
	}
	for _, dim := range dims {
		if dim <= 0 {
			return nil, errors.Errorf("device array cannot have zero or negative dimensions, got %v", dims)
		}
	}
	wantBytes := numElements(dims) * t.DType.SizeOf()
	if buf.Size() != wantBytes {
		return nil, errors.Wrapf(ErrSizeMismatch,
			"buffer holds %d bytes but view %s%v needs %d", buf.Size(), t.DType, dims, wantBytes)
	}
	buf.Retain()
	return &DeviceArray{typ: t, buf: buf, dims: dims, strides: strides}, nil
}

// Type returns the view's array type.
func (a *DeviceArray) Type() usmarray.ArrayType { return a.typ }

// Buffer returns the backing USM buffer.
func (a *DeviceArray) Buffer() *Buffer { return a.buf }

// Dims returns the view's dimensions. Owned by the view.
func (a *DeviceArray) Dims() []int { return a.dims }

// Strides returns the view's byte strides. Owned by the view.
func (a *DeviceArray) Strides() []int { return a.strides }

// NumElements returns the total element count.
func (a *DeviceArray) NumElements() int { return numElements(a.dims) }

// ItemSize returns the element size in bytes.
func (a *DeviceArray) ItemSize() int { return a.typ.DType.SizeOf() }

// Release drops the view's reference to the buffer. The view is invalid
// afterwards.
func (a *DeviceArray) Release() {
	if a.buf != nil {
		a.buf.Release()
		a.buf = nil
	}
}

// USMMemory implements the Memory capability interface: the view is backed
// by its buffer's memory.
func (a *DeviceArray) USMMemory() *MemoryDescriptor {
	if a == nil || a.buf == nil {
		return nil
	}
	return a.buf.USMMemory()
}

// Owner implements the Owned interface for derived views.
func (a *DeviceArray) Owner() any { return a.parent }

// ViewAs returns a new view over the same buffer with a derived array type,
// e.g. the same data retyped into another address space. Shape, strides and
// the size invariant carry over, so only type-level fields may differ.
func (a *DeviceArray) ViewAs(t usmarray.ArrayType) (*DeviceArray, error) {
	if t.DType != a.typ.DType || t.Ndim != a.typ.Ndim {
		return nil, errors.Errorf("ViewAs can only retype, not reshape: %s -> %s", a.typ, t)
	}
	view, err := newDeviceArray(t, a.buf, a.dims, a.strides)
	if err != nil {
		return nil, err
	}
	view.parent = a
	return view, nil
}

// String implements fmt.Stringer.
func (a *DeviceArray) String() string {
	return fmt.Sprintf("DeviceArray(%s, dims=%v, %s)", a.typ, a.dims, a.buf)
}
