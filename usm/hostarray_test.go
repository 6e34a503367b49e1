package usm

import (
	"testing"

	"github.com/gousm/gousm/dtypes"
	"github.com/stretchr/testify/require"
)

func TestNewHostArray(t *testing.T) {
	flat := []float32{1, 2, 3, 4, 5, 6}
	a, err := NewHostArray(flat, 2, 3)
	require.NoError(t, err)

	require.Equal(t, dtypes.Float32, a.DType())
	require.Equal(t, 2, a.Ndim())
	require.Equal(t, []int{2, 3}, a.Dims())
	require.Equal(t, []int{12, 4}, a.Strides())
	require.Equal(t, 6, a.NumElements())
	require.Equal(t, 24, a.SizeBytes())
	require.True(t, a.IsCContiguous())

	// The array shares memory with the slice it was built from.
	flat[0] = 42
	v, err := At[float32](a, 0, 0)
	require.NoError(t, err)
	require.Equal(t, float32(42), v)
}

func TestNewHostArrayValidation(t *testing.T) {
	_, err := NewHostArray([]float32{1, 2, 3}, 2, 3)
	require.Error(t, err)
	_, err = NewHostArray([]float32{1, 2}, 2, 0)
	require.Error(t, err)
	_, err = NewHostArray([]float32{1, 2}, -2)
	require.Error(t, err)
}

func TestHostArrayScalar(t *testing.T) {
	a, err := NewHostArray([]int64{7})
	require.NoError(t, err)
	require.Equal(t, 0, a.Ndim())
	require.Equal(t, 1, a.NumElements())
	require.Equal(t, 8, a.SizeBytes())
	require.True(t, a.IsCContiguous())
}

func TestHostArrayFromBytes(t *testing.T) {
	raw := make([]byte, 16)
	a, err := HostArrayFromBytes(raw, dtypes.Int32, 4)
	require.NoError(t, err)
	require.Equal(t, 4, a.NumElements())

	_, err = HostArrayFromBytes(raw, dtypes.Int32, 5)
	require.Error(t, err)
	_, err = HostArrayFromBytes(raw, dtypes.InvalidDType, 4)
	require.Error(t, err)
}

// transposeView returns a column-major (transposed) view of a row-major
// rows x cols array.
func transposeView[T dtypes.Supported](t *testing.T, flat []T, rows, cols int) *HostArray {
	t.Helper()
	itemSize := dtypes.FromGenericsType[T]().SizeOf()
	view, err := NewHostArrayStrided(flat, []int{cols, rows}, []int{itemSize, cols * itemSize})
	require.NoError(t, err)
	return view
}

func TestStridedViewNotContiguous(t *testing.T) {
	flat := []float32{1, 2, 3, 4, 5, 6}
	view := transposeView(t, flat, 2, 3)

	require.False(t, view.IsCContiguous())
	require.Equal(t, []int{3, 2}, view.Dims())

	// view[i][j] == flat[j*3+i]
	v, err := At[float32](view, 0, 1)
	require.NoError(t, err)
	require.Equal(t, float32(4), v)
	v, err = At[float32](view, 2, 0)
	require.NoError(t, err)
	require.Equal(t, float32(3), v)
}

func TestFlattenRepacksRowMajor(t *testing.T) {
	flat := []float32{1, 2, 3, 4, 5, 6}
	view := transposeView(t, flat, 2, 3)

	packed := view.Flatten()
	require.True(t, packed.IsCContiguous())
	require.Equal(t, view.Dims(), packed.Dims())

	values, err := Flat[float32](packed)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 4, 2, 5, 3, 6}, values)

	// A contiguous array flattens to itself, no copy.
	a, err := NewHostArray(flat, 2, 3)
	require.NoError(t, err)
	require.Same(t, a, a.Flatten())
}

func TestNewHostArrayStridedBounds(t *testing.T) {
	flat := []float32{1, 2, 3, 4}
	_, err := NewHostArrayStrided(flat, []int{4}, []int{8})
	require.Error(t, err) // extends past the backing
	_, err = NewHostArrayStrided(flat, []int{2, 2}, []int{8})
	require.Error(t, err) // stride per dimension
	_, err = NewHostArrayStrided(flat, []int{4}, []int{-4})
	require.Error(t, err)
}

func TestFlatTypeChecks(t *testing.T) {
	a, err := NewHostArray([]float32{1, 2, 3}, 3)
	require.NoError(t, err)

	_, err = Flat[int32](a)
	require.Error(t, err)

	view := transposeView(t, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	_, err = Flat[float32](view)
	require.Error(t, err) // not contiguous

	_, err = At[float64](a, 0)
	require.Error(t, err)
	_, err = At[float32](a, 0, 0)
	require.Error(t, err) // wrong rank
	_, err = At[float32](a, 5)
	require.Error(t, err) // out of bounds
}

func TestWithOwner(t *testing.T) {
	a, err := NewHostArray([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	require.Nil(t, a.Owner())

	owner := "parent"
	view := a.WithOwner(owner)
	require.Equal(t, owner, view.Owner())
	require.Nil(t, a.Owner())
}
