package usm

import (
	"fmt"
	"unsafe"

	"github.com/gousm/gousm/dtypes"
	"github.com/pkg/errors"
)

// HostArray is a host-memory n-dimensional array: flat backing bytes plus
// dtype, dimensions and byte strides. It is the host-side value the transfer
// engine copies from and to.
//
// The backing bytes are shared with the slice the array was built from, not
// copied.
type HostArray struct {
	data    []byte
	dtype   dtypes.DType
	dims    []int
	strides []int // byte strides, one per dimension
	owner   any   // parent value for views, nil otherwise
}

// cStrides returns the row-major contiguous byte strides for dims.
func cStrides(dims []int, itemSize int) []int {
	strides := make([]int, len(dims))
	acc := itemSize
	for i := len(dims) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= dims[i]
	}
	return strides
}

func numElements(dims []int) int {
	n := 1
	for _, dim := range dims {
		n *= dim
	}
	return n
}

// NewHostArray builds a C-contiguous host array over flat with the given
// dimensions. len(flat) must equal the product of the dimensions. With no
// dimensions the array is a scalar and flat must have length 1.
func NewHostArray[T dtypes.Supported](flat []T, dims ...int) (*HostArray, error) {
	for _, dim := range dims {
		if dim <= 0 {
			return nil, errors.Errorf("NewHostArray cannot be given zero or negative dimensions, got %v", dims)
		}
	}
	if len(flat) != numElements(dims) {
		return nil, errors.Errorf("NewHostArray(flat, dims=%v) needs %d values to match dimensions, but got len(flat)=%d",
			dims, numElements(dims), len(flat))
	}
	dtype := dtypes.FromGenericsType[T]()
	itemSize := dtype.SizeOf()
	data := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(flat))), len(flat)*itemSize)
	dimsCopy := append([]int(nil), dims...)
	return &HostArray{
		data:    data,
		dtype:   dtype,
		dims:    dimsCopy,
		strides: cStrides(dimsCopy, itemSize),
	}, nil
}

// NewHostArrayStrided builds a strided view over flat with explicit byte
// strides, e.g. a transpose or a stepped slice. The strided extent must fit
// within flat.
func NewHostArrayStrided[T dtypes.Supported](flat []T, dims []int, strides []int) (*HostArray, error) {
	if len(dims) != len(strides) {
		return nil, errors.Errorf("NewHostArrayStrided needs one stride per dimension, got dims=%v strides=%v", dims, strides)
	}
	dtype := dtypes.FromGenericsType[T]()
	itemSize := dtype.SizeOf()
	extent := itemSize
	for i, dim := range dims {
		if dim <= 0 {
			return nil, errors.Errorf("NewHostArrayStrided cannot be given zero or negative dimensions, got %v", dims)
		}
		if strides[i] < 0 {
			return nil, errors.Errorf("NewHostArrayStrided does not support negative strides, got %v", strides)
		}
		extent += (dim - 1) * strides[i]
	}
	sizeBytes := len(flat) * itemSize
	if extent > sizeBytes {
		return nil, errors.Errorf("NewHostArrayStrided view extends %d bytes past the %d-byte backing", extent-sizeBytes, sizeBytes)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(flat))), sizeBytes)
	return &HostArray{
		data:    data,
		dtype:   dtype,
		dims:    append([]int(nil), dims...),
		strides: append([]int(nil), strides...),
	}, nil
}

// HostArrayFromBytes builds a C-contiguous host array over raw bytes.
func HostArrayFromBytes(raw []byte, dtype dtypes.DType, dims ...int) (*HostArray, error) {
	itemSize := dtype.SizeOf()
	if itemSize == 0 {
		return nil, errors.Errorf("HostArrayFromBytes given invalid dtype %s", dtype)
	}
	if len(raw) != numElements(dims)*itemSize {
		return nil, errors.Errorf("HostArrayFromBytes(raw, %s, dims=%v) needs %d bytes, got %d",
			dtype, dims, numElements(dims)*itemSize, len(raw))
	}
	dimsCopy := append([]int(nil), dims...)
	return &HostArray{
		data:    raw,
		dtype:   dtype,
		dims:    dimsCopy,
		strides: cStrides(dimsCopy, itemSize),
	}, nil
}

// WithOwner returns a shallow copy of the array that reports owner from
// Owner(), marking it as a view whose memory belongs to owner. The
// classifier probes the owner when the view itself exposes no USM memory.
func (a *HostArray) WithOwner(owner any) *HostArray {
	view := *a
	view.owner = owner
	return &view
}

// Owner implements the Owned interface. It returns nil for non-views.
func (a *HostArray) Owner() any { return a.owner }

// DType returns the element dtype.
func (a *HostArray) DType() dtypes.DType { return a.dtype }

// Ndim returns the number of dimensions.
func (a *HostArray) Ndim() int { return len(a.dims) }

// Dims returns the dimensions. The returned slice is owned by the array.
func (a *HostArray) Dims() []int { return a.dims }

// Strides returns the byte strides. The returned slice is owned by the array.
func (a *HostArray) Strides() []int { return a.strides }

// ItemSize returns the element size in bytes.
func (a *HostArray) ItemSize() int { return a.dtype.SizeOf() }

// NumElements returns the total element count.
func (a *HostArray) NumElements() int { return numElements(a.dims) }

// SizeBytes returns the logical byte size: NumElements * ItemSize.
func (a *HostArray) SizeBytes() int { return a.NumElements() * a.ItemSize() }

// IsCContiguous reports whether the array is laid out row-major contiguous.
func (a *HostArray) IsCContiguous() bool {
	expected := cStrides(a.dims, a.ItemSize())
	for i, stride := range a.strides {
		// A stride on a size-1 dimension never moves, any value is fine.
		if a.dims[i] != 1 && stride != expected[i] {
			return false
		}
	}
	return true
}

// Bytes returns the array's bytes. Only valid for C-contiguous arrays; a
// strided view must be Flatten()ed first.
func (a *HostArray) Bytes() []byte {
	return a.data[:a.SizeBytes():a.SizeBytes()]
}

// elementOffset returns the byte offset of the element at the multi-index.
func (a *HostArray) elementOffset(idx []int) int {
	offset := 0
	for i, ix := range idx {
		offset += ix * a.strides[i]
	}
	return offset
}

// Flatten returns a row-major contiguous copy of the array. If the array is
// already C-contiguous it is returned unchanged, without copying.
func (a *HostArray) Flatten() *HostArray {
	if a.IsCContiguous() {
		return a
	}
	itemSize := a.ItemSize()
	packed := make([]byte, a.SizeBytes())
	idx := make([]int, a.Ndim())
	for out := 0; out < len(packed); out += itemSize {
		src := a.elementOffset(idx)
		copy(packed[out:out+itemSize], a.data[src:src+itemSize])
		// Advance the multi-index in row-major order.
		for dim := a.Ndim() - 1; dim >= 0; dim-- {
			idx[dim]++
			if idx[dim] < a.dims[dim] {
				break
			}
			idx[dim] = 0
		}
	}
	dims := append([]int(nil), a.dims...)
	return &HostArray{
		data:    packed,
		dtype:   a.dtype,
		dims:    dims,
		strides: cStrides(dims, itemSize),
	}
}

// String implements fmt.Stringer.
func (a *HostArray) String() string {
	return fmt.Sprintf("HostArray(%s, dims=%v)", a.dtype, a.dims)
}

// Flat returns the array's elements as a typed slice sharing the backing
// memory. The array must be C-contiguous and T must match its dtype.
func Flat[T dtypes.Supported](a *HostArray) ([]T, error) {
	if dtype := dtypes.FromGenericsType[T](); dtype != a.dtype {
		var dummy T
		return nil, errors.Errorf("Flat[%T] called on %s array", dummy, a.dtype)
	}
	if !a.IsCContiguous() {
		return nil, errors.Errorf("Flat requires a C-contiguous array, call Flatten first")
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(a.data))), a.NumElements()), nil
}

// At returns the element at the multi-index. For tests and debugging.
func At[T dtypes.Supported](a *HostArray, idx ...int) (T, error) {
	var value T
	if dtype := dtypes.FromGenericsType[T](); dtype != a.dtype {
		return value, errors.Errorf("At[%T] called on %s array", value, a.dtype)
	}
	if len(idx) != a.Ndim() {
		return value, errors.Errorf("At needs %d indices, got %d", a.Ndim(), len(idx))
	}
	for i, ix := range idx {
		if ix < 0 || ix >= a.dims[i] {
			return value, errors.Errorf("index %v out of bounds for dims %v", idx, a.dims)
		}
	}
	offset := a.elementOffset(idx)
	value = *(*T)(unsafe.Pointer(unsafe.SliceData(a.data[offset:])))
	return value, nil
}
