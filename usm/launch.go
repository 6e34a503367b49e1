package usm

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gousm/gousm/dtypes"
	"github.com/gousm/gousm/usmarray"
	"github.com/pkg/errors"
)

// ArgKind classifies one marshaled kernel argument.
type ArgKind int

const (
	// ArgMemInfo is the reference-counted allocation handle of an array.
	ArgMemInfo ArgKind = iota
	// ArgParent is the (nullable) owning-object back-reference of an array.
	ArgParent
	// ArgInt is a machine-word integer: nitems, itemsize, shape and stride
	// words.
	ArgInt
	// ArgDataPointer is an array's raw data pointer, queue-relative and
	// tagged with the array type's address space.
	ArgDataPointer
	// ArgScalar is a standalone scalar argument.
	ArgScalar
)

// Arg is one device-callable argument descriptor. A bound array flattens to
// the struct layout of its type -- meminfo, parent, nitems, itemsize, data,
// shape words, stride words, in that order -- a scalar to a single ArgScalar.
//
// Args are ephemeral: they are built per launch and not retained past it.
type Arg struct {
	Kind ArgKind
	Name string

	Int    int            // ArgInt payload
	Ptr    unsafe.Pointer // ArgDataPointer payload
	Mem    *Buffer        // ArgMemInfo payload
	Parent any            // ArgParent payload, usually nil
	Scalar any            // ArgScalar payload

	// DType is set for data pointers (the array's dtype) and scalars.
	DType dtypes.DType
	// AddrSpace is set on data pointers only.
	AddrSpace usmarray.AddrSpace
}

// Binding is the marshaled form of one call argument bound to a queue.
type Binding struct {
	// Args is the argument descriptor sequence in device call order.
	Args []Arg

	// Materialized lists buffers this binding allocated and copied host data
	// into. The external dispatch layer owns the reverse copy for these
	// after the launch; the marshaler itself never copies back.
	Materialized []*Buffer
}

// Bind converts one call argument into its device-callable argument
// descriptors, bound to the given queue.
//
//   - *DeviceArray: emits the array struct layout. Never allocates.
//   - *HostArray: resolves existing USM backing via the classifier; if there
//     is none, materializes shared USM memory on q with a host copy (the one
//     marshaling path that allocates) and records it in Binding.Materialized.
//
// A resolved buffer must have been allocated on q (ErrInvalidQueueType) and
// hold exactly the bound view's bytes (ErrSizeMismatch).
//   - Scalars of any supported dtype: a single value descriptor, no
//     allocation, no copy.
func Bind(q *Queue, value any) (*Binding, error) {
	switch v := value.(type) {
	case *DeviceArray:
		buf := AsUSMMemory(v)
		if buf == nil {
			return nil, errors.WithMessagef(ErrNotDeviceBacked, "device array %s was released", v)
		}
		if err := checkBindable(q, buf, v.NumElements()*v.ItemSize()); err != nil {
			return nil, errors.WithMessagef(err, "binding device array %s", v)
		}
		return &Binding{Args: arrayArgs(v.typ, v.buf, v.dims, v.strides)}, nil

	case *HostArray:
		if buf := AsUSMMemory(v); buf != nil {
			if err := checkBindable(q, buf, v.SizeBytes()); err != nil {
				return nil, errors.WithMessagef(err, "binding host array %s", v)
			}
			t, dims, strides := hostViewMetadata(v, q)
			return &Binding{Args: arrayArgs(t, buf, dims, strides)}, nil
		}
		buf, err := Materialize(v, q, MemShared, false)
		if err != nil {
			return nil, errors.WithMessagef(err, "binding host array %s", v)
		}
		packed, _, err := CopyFromHost(buf, v)
		if err != nil {
			destroyOrLog(buf)
			return nil, errors.WithMessagef(err, "binding host array %s", v)
		}
		// The device sees the packed row-major geometry, whatever the host
		// view looked like.
		t, dims, strides := hostViewMetadata(packed, q)
		return &Binding{
			Args:         arrayArgs(t, buf, dims, strides),
			Materialized: []*Buffer{buf},
		}, nil
	}

	if dtype := dtypes.FromAny(value); dtype != dtypes.InvalidDType {
		return &Binding{Args: []Arg{{
			Kind:   ArgScalar,
			Name:   "scalar",
			Scalar: value,
			DType:  dtype,
		}}}, nil
	}
	return nil, errors.Errorf("cannot marshal %T as a kernel argument", value)
}

// checkBindable validates a resolved buffer against the view being bound:
// the buffer must be allocated on the bind queue, and its byte size must
// equal itemsize * element-count of the view (a view never addresses memory
// the buffer does not hold).
func checkBindable(q *Queue, buf *Buffer, viewBytes int) error {
	if !buf.Queue().Equal(q) {
		return errors.Wrapf(ErrInvalidQueueType,
			"buffer allocated on %s cannot bind to %s", buf.Queue(), q)
	}
	if buf.Size() != viewBytes {
		return errors.Wrapf(ErrSizeMismatch,
			"buffer holds %d bytes but the bound view needs %d", buf.Size(), viewBytes)
	}
	return nil
}

// hostViewMetadata derives the array type and geometry a host array takes
// when bound for the queue's backend.
func hostViewMetadata(a *HostArray, q *Queue) (usmarray.ArrayType, []int, []int) {
	layout := usmarray.LayoutAny
	if a.IsCContiguous() {
		layout = usmarray.LayoutC
	}
	t := usmarray.New(a.DType(), a.Ndim(), layout)
	if q != nil && q.Device() != nil {
		as := q.Device().Backend().DataAddrSpace
		t = usmarray.Derive(t, usmarray.Overrides{AddrSpace: &as})
	}
	return t, a.Dims(), a.Strides()
}

// arrayArgs flattens a typed array view into the device call convention,
// following the struct layout field order exactly.
func arrayArgs(t usmarray.ArrayType, buf *Buffer, dims, strides []int) []Arg {
	args := make([]Arg, 0, 5+2*len(dims))
	args = append(args,
		Arg{Kind: ArgMemInfo, Name: "meminfo", Mem: buf},
		Arg{Kind: ArgParent, Name: "parent"},
		Arg{Kind: ArgInt, Name: "nitems", Int: numElements(dims)},
		Arg{Kind: ArgInt, Name: "itemsize", Int: t.DType.SizeOf()},
		Arg{Kind: ArgDataPointer, Name: "data", Ptr: buf.Ptr(), DType: t.DType, AddrSpace: t.AddrSpace},
	)
	for i, dim := range dims {
		args = append(args, Arg{Kind: ArgInt, Name: fmt.Sprintf("shape[%d]", i), Int: dim})
	}
	for i, stride := range strides {
		args = append(args, Arg{Kind: ArgInt, Name: fmt.Sprintf("strides[%d]", i), Int: stride})
	}
	return args
}

// LaunchResult reports the outcome of a launch.
type LaunchResult struct {
	// WorkItems is the number of work items executed.
	WorkItems int
	// Elapsed is the wall time the device took.
	Elapsed time.Duration
	// Err is the device-level error status, nil on success.
	Err error
}

// LaunchConfig configures a kernel launch on a queue. It is created with
// Launch; call Done to validate, issue the launch and wait for completion.
type LaunchConfig struct {
	queue    *Queue
	kernel   *Kernel
	bindings []*Binding
	global   []int
	local    []int

	// err stores the first error that happened during configuration.
	// If it is not nil, it is immediately returned by the Done call.
	err error
}

// Launch starts configuring a launch of kernel k on queue q.
func Launch(q *Queue, k *Kernel) *LaunchConfig {
	c := &LaunchConfig{queue: q, kernel: k}
	if k == nil {
		c.err = errors.New("Launch given a nil kernel")
	}
	return c
}

// Args binds each value (arrays, scalars) to the launch's queue, in call
// order. May be called more than once; bindings accumulate.
func (c *LaunchConfig) Args(values ...any) *LaunchConfig {
	if c.err != nil {
		return c
	}
	for _, value := range values {
		binding, err := Bind(c.queue, value)
		if err != nil {
			c.err = err
			return c
		}
		c.bindings = append(c.bindings, binding)
	}
	return c
}

// ArgBindings appends already-marshaled bindings.
func (c *LaunchConfig) ArgBindings(bindings ...*Binding) *LaunchConfig {
	if c.err != nil {
		return c
	}
	c.bindings = append(c.bindings, bindings...)
	return c
}

// GlobalRange sets the global index-space dimensions.
func (c *LaunchConfig) GlobalRange(dims ...int) *LaunchConfig {
	if c.err != nil {
		return c
	}
	c.global = dims
	return c
}

// LocalRange sets the work-group dimensions. Optional; when set it must have
// the global range's rank and evenly divide it componentwise.
func (c *LaunchConfig) LocalRange(dims ...int) *LaunchConfig {
	if c.err != nil {
		return c
	}
	c.local = dims
	return c
}

// Materialized returns the buffers the launch's bindings allocated and
// copied host data into, so the dispatch layer can copy results back.
func (c *LaunchConfig) Materialized() []*Buffer {
	var buffers []*Buffer
	for _, binding := range c.bindings {
		buffers = append(buffers, binding.Materialized...)
	}
	return buffers
}

func validRange(dims []int) bool {
	if len(dims) == 0 {
		return false
	}
	for _, dim := range dims {
		if dim <= 0 {
			return false
		}
	}
	return true
}

// Done validates the configuration, issues the launch, and blocks until the
// device signals completion.
func (c *LaunchConfig) Done() (*LaunchResult, error) {
	if c.err != nil {
		// Return first error saved during configuration.
		return nil, c.err
	}
	if !c.queue.IsValid() {
		return nil, errors.Wrapf(ErrInvalidQueueType, "cannot launch %q on %s", c.kernel.Name(), c.queue)
	}
	if !validRange(c.global) {
		return nil, errors.Wrapf(ErrInvalidRange, "global range must be a positive-integer tuple, got %v", c.global)
	}
	local := c.local
	if local != nil {
		if len(local) != len(c.global) || !validRange(local) {
			return nil, errors.Wrapf(ErrInvalidRange,
				"local range %v does not match global range %v", local, c.global)
		}
		for i := range local {
			if c.global[i]%local[i] != 0 {
				return nil, errors.Wrapf(ErrIndivisibleRange,
					"global range %v, local range %v at dimension %d", c.global, local, i)
			}
		}
	} else {
		// One work-group spanning the whole range.
		local = c.global
	}

	args := make([]Arg, 0)
	for _, binding := range c.bindings {
		args = append(args, binding.Args...)
	}

	start := time.Now()
	err := runKernel(c.kernel, args, c.global, local)
	result := &LaunchResult{
		WorkItems: numElements(c.global),
		Elapsed:   time.Since(start),
		Err:       err,
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

// runKernel executes the kernel over the index space: work-groups fan out
// over goroutines, items within a group run sequentially. It returns after
// every work item completed (synchronous launch semantics).
func runKernel(k *Kernel, args []Arg, global, local []int) error {
	rank := len(global)
	groups := make([]int, rank)
	for i := range global {
		groups[i] = global[i] / local[i]
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	forEachIndex(groups, func(groupID []int) {
		groupID = append([]int(nil), groupID...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = errors.Errorf("kernel %q failed in work-group %v: %v", k.Name(), groupID, r)
					}
					mu.Unlock()
				}
			}()
			item := WorkItem{
				GlobalID: make([]int, rank),
				GroupID:  groupID,
			}
			forEachIndex(local, func(localID []int) {
				for i := range localID {
					item.GlobalID[i] = groupID[i]*local[i] + localID[i]
				}
				item.LocalID = localID
				k.fn(item, args)
			})
		}()
	})
	wg.Wait()
	return firstErr
}

// forEachIndex visits every multi-index of the given extents in row-major
// order. The index slice is reused between calls.
func forEachIndex(extents []int, visit func(idx []int)) {
	idx := make([]int, len(extents))
	for {
		visit(idx)
		dim := len(extents) - 1
		for ; dim >= 0; dim-- {
			idx[dim]++
			if idx[dim] < extents[dim] {
				break
			}
			idx[dim] = 0
		}
		if dim < 0 {
			return
		}
	}
}
