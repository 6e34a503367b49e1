package dtypes

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestSizeOf(t *testing.T) {
	require.Equal(t, 0, InvalidDType.SizeOf())
	require.Equal(t, 2, Float16.SizeOf())
	require.Equal(t, 4, Int32.SizeOf())
	require.Equal(t, 4, Uint32.SizeOf())
	require.Equal(t, 4, Float32.SizeOf())
	require.Equal(t, 8, Int64.SizeOf())
	require.Equal(t, 8, Uint64.SizeOf())
	require.Equal(t, 8, Float64.SizeOf())
}

func TestGoTypeRoundTrip(t *testing.T) {
	for _, dtype := range []DType{Int32, Int64, Uint32, Uint64, Float16, Float32, Float64} {
		goType := dtype.GoType()
		require.NotNil(t, goType, "GoType for %s", dtype)
		require.Equal(t, dtype, FromGoType(goType))
		require.Equal(t, int(goType.Size()), dtype.SizeOf())
	}
	require.Nil(t, InvalidDType.GoType())
}

func TestFromGenericsType(t *testing.T) {
	require.Equal(t, Int32, FromGenericsType[int32]())
	require.Equal(t, Uint64, FromGenericsType[uint64]())
	require.Equal(t, Float16, FromGenericsType[float16.Float16]())
	require.Equal(t, Float64, FromGenericsType[float64]())
}

func TestFromAny(t *testing.T) {
	require.Equal(t, Float32, FromAny(float32(1)))
	require.Equal(t, Int64, FromAny(int64(-1)))
	require.Equal(t, InvalidDType, FromAny("not a dtype"))
	require.Equal(t, InvalidDType, FromAny(nil))
	// Plain int has no fixed width and no dtype.
	require.Equal(t, InvalidDType, FromAny(7))
}

func TestMapOfNames(t *testing.T) {
	require.Equal(t, Float32, MapOfNames["Float32"])
	require.Equal(t, Float32, MapOfNames["float32"])
	require.Equal(t, Float32, MapOfNames["F32"])
	require.Equal(t, Float32, MapOfNames["f32"])

	require.Equal(t, Uint64, MapOfNames["U64"])
	require.Equal(t, Uint64, MapOfNames["uint64"])

	_, found := MapOfNames["InvalidDType"]
	require.False(t, found)
}

func TestTransferSupported(t *testing.T) {
	for _, dtype := range []DType{Int32, Int64, Uint32, Uint64, Float32, Float64} {
		require.True(t, dtype.TransferSupported(), "%s", dtype)
	}
	require.False(t, Float16.TransferSupported())
	require.False(t, InvalidDType.TransferSupported())
}

func TestPredicates(t *testing.T) {
	require.True(t, Float16.IsFloat())
	require.False(t, Float16.IsInt())
	require.True(t, Uint32.IsUnsigned())
	require.True(t, Uint32.IsInt())
	require.False(t, Int64.IsUnsigned())
	require.False(t, Float64.IsInt())
}
