package usm

import (
	"testing"

	"github.com/gousm/gousm/dtypes"
	"github.com/gousm/gousm/usmarray"
	"github.com/stretchr/testify/require"
)

func TestNewDeviceArray(t *testing.T) {
	q := newTestQueue(t)
	buf, err := q.AllocMemory(MemShared, 6*4)
	require.NoError(t, err)

	arrType := usmarray.New(dtypes.Float32, 2, usmarray.LayoutC)
	a, err := NewDeviceArray(arrType, buf, 2, 3)
	require.NoError(t, err)

	require.Equal(t, arrType, a.Type())
	require.Same(t, buf, a.Buffer())
	require.Equal(t, []int{2, 3}, a.Dims())
	require.Equal(t, []int{12, 4}, a.Strides())
	require.Equal(t, 6, a.NumElements())
	require.Equal(t, 4, a.ItemSize())

	// The view holds a reference: the buffer cannot be destroyed under it.
	require.EqualValues(t, 2, buf.RefCount())
	require.Error(t, buf.Destroy())

	a.Release()
	require.NoError(t, buf.Destroy())
}

func TestNewDeviceArraySizeInvariant(t *testing.T) {
	q := newTestQueue(t)
	buf, err := q.AllocMemory(MemShared, 24)
	require.NoError(t, err)
	defer func() { require.NoError(t, buf.Destroy()) }()

	arrType := usmarray.New(dtypes.Float32, 1, usmarray.LayoutC)
	// 24 bytes holds 6 float32s, not 5 or 7.
	_, err = NewDeviceArray(arrType, buf, 5)
	require.ErrorIs(t, err, ErrSizeMismatch)
	_, err = NewDeviceArray(arrType, buf, 7)
	require.ErrorIs(t, err, ErrSizeMismatch)

	a, err := NewDeviceArray(arrType, buf, 6)
	require.NoError(t, err)
	a.Release()

	// Rank must match the type.
	_, err = NewDeviceArray(arrType, buf, 2, 3)
	require.Error(t, err)
	_, err = NewDeviceArray(usmarray.New(dtypes.InvalidDType, 1, usmarray.LayoutC), buf, 6)
	require.Error(t, err)
}

func TestDeviceArrayClassifies(t *testing.T) {
	q := newTestQueue(t)
	buf, err := q.AllocMemory(MemShared, 16)
	require.NoError(t, err)

	arrType := usmarray.New(dtypes.Int32, 1, usmarray.LayoutC)
	a, err := NewDeviceArray(arrType, buf, 4)
	require.NoError(t, err)

	require.Same(t, buf, AsUSMMemory(a))

	a.Release()
	require.Nil(t, AsUSMMemory(a))
	require.NoError(t, buf.Destroy())
}

func TestDeviceArrayViewAs(t *testing.T) {
	q := newTestQueue(t)
	buf, err := q.AllocMemory(MemShared, 16)
	require.NoError(t, err)

	base := usmarray.New(dtypes.Int32, 1, usmarray.LayoutC)
	a, err := NewDeviceArray(base, buf, 4)
	require.NoError(t, err)

	global := usmarray.AddrSpaceGlobal
	tagged := usmarray.Derive(base, usmarray.Overrides{AddrSpace: &global})
	view, err := a.ViewAs(tagged)
	require.NoError(t, err)
	require.Equal(t, tagged, view.Type())
	require.Same(t, a, view.Owner())
	require.Same(t, buf, AsUSMMemory(view))

	// Retyping cannot reshape.
	other := usmarray.New(dtypes.Int64, 1, usmarray.LayoutC)
	_, err = a.ViewAs(other)
	require.Error(t, err)

	view.Release()
	a.Release()
	require.NoError(t, buf.Destroy())
}
