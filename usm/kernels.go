package usm

import (
	"unsafe"

	"github.com/chewxy/math32"
)

// Kernel is an opaque compiled-kernel handle. The compilation pipeline that
// produces device binaries is an external collaborator; the in-process
// runtime represents a kernel by its entry point, invoked once per work item
// with the marshaled argument list.
type Kernel struct {
	name string
	fn   KernelFunc
}

// KernelFunc is the in-process kernel entry point.
type KernelFunc func(item WorkItem, args []Arg)

// WorkItem identifies one point of the launch's index space.
type WorkItem struct {
	// GlobalID is the item's coordinates in the global range.
	GlobalID []int
	// LocalID is the item's coordinates within its work-group.
	LocalID []int
	// GroupID is the work-group's coordinates.
	GroupID []int
}

// NewKernel wraps an entry point as a kernel handle.
func NewKernel(name string, fn KernelFunc) *Kernel {
	return &Kernel{name: name, fn: fn}
}

// Name returns the kernel's name.
func (k *Kernel) Name() string { return k.name }

// GroupArgs splits a flat marshaled argument list back into per-array
// argument groups and standalone scalars. Each array group starts at its
// meminfo field and spans the full struct layout. Kernel entry points use
// this to address their operands.
func GroupArgs(args []Arg) (arrays [][]Arg, scalars []Arg) {
	start := -1
	flush := func(end int) {
		if start >= 0 {
			arrays = append(arrays, args[start:end])
			start = -1
		}
	}
	for i, arg := range args {
		switch arg.Kind {
		case ArgMemInfo:
			flush(i)
			start = i
		case ArgScalar:
			flush(i)
			scalars = append(scalars, arg)
		}
	}
	flush(len(args))
	return arrays, scalars
}

// flatF32 views an array argument group's data as a float32 slice.
func flatF32(group []Arg) []float32 {
	nitems := group[2].Int
	return unsafe.Slice((*float32)(group[4].Ptr), nitems)
}

// Built-in kernels used by tests and examples. Real device kernels come out
// of the external compilation pipeline; these exercise the same marshaling
// and launch path in-process.
var (
	// VecAddF32 computes z[i] = x[i] + y[i] over three 1-d float32 arrays.
	VecAddF32 = NewKernel("vec_add_f32", func(item WorkItem, args []Arg) {
		arrays, _ := GroupArgs(args)
		x, y, z := flatF32(arrays[0]), flatF32(arrays[1]), flatF32(arrays[2])
		i := item.GlobalID[0]
		if i < len(z) {
			z[i] = x[i] + y[i]
		}
	})

	// AXPYF32 computes y[i] = alpha*x[i] + y[i] with a float32 scalar alpha.
	AXPYF32 = NewKernel("axpy_f32", func(item WorkItem, args []Arg) {
		arrays, scalars := GroupArgs(args)
		alpha := scalars[0].Scalar.(float32)
		x, y := flatF32(arrays[0]), flatF32(arrays[1])
		i := item.GlobalID[0]
		if i < len(y) {
			y[i] = alpha*x[i] + y[i]
		}
	})

	// RSqrtF32 computes y[i] = 1/sqrt(x[i]).
	RSqrtF32 = NewKernel("rsqrt_f32", func(item WorkItem, args []Arg) {
		arrays, _ := GroupArgs(args)
		x, y := flatF32(arrays[0]), flatF32(arrays[1])
		i := item.GlobalID[0]
		if i < len(y) {
			y[i] = 1 / math32.Sqrt(x[i])
		}
	})
)
