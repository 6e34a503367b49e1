// Package dtypes enumerates the element types that can cross the host/device
// boundary, and maps them to and from Go types.
//
// The enumeration is shared by the usm runtime (buffers, transfers, kernel
// arguments) and the usmarray type layer. Not every dtype is accepted by the
// transfer engine: see DType.TransferSupported.
package dtypes

import (
	"reflect"
	"strings"

	"github.com/x448/float16"
)

// DType is the type of an array element or scalar kernel argument.
type DType int

const (
	// InvalidDType represents an invalid (or not set) dtype.
	InvalidDType DType = iota

	Int32
	Int64
	Uint32
	Uint64
	Float16
	Float32
	Float64
)

// Aliases using the short dtype naming convention.
const (
	Invalid = InvalidDType

	S32 = Int32
	S64 = Int64
	U32 = Uint32
	U64 = Uint64
	F16 = Float16
	F32 = Float32
	F64 = Float64
)

// Supported are the Go types corresponding to the valid dtypes.
// It can be used as a generics constraint by anything accepting dtype-typed
// flat data or scalars.
type Supported interface {
	int32 | int64 | uint32 | uint64 | float16.Float16 | float32 | float64
}

var dtypeNames = map[DType]string{
	InvalidDType: "InvalidDType",
	Int32:        "Int32",
	Int64:        "Int64",
	Uint32:       "Uint32",
	Uint64:       "Uint64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if name, found := dtypeNames[dtype]; found {
		return name
	}
	return "DType(?)"
}

// SizeOf returns the size in bytes of one element of the given dtype.
// It returns 0 for InvalidDType.
func (dtype DType) SizeOf() int {
	switch dtype {
	case Float16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// IsFloat returns whether dtype is a floating point type.
func (dtype DType) IsFloat() bool {
	return dtype == Float16 || dtype == Float32 || dtype == Float64
}

// IsInt returns whether dtype is an integer type, signed or unsigned.
func (dtype DType) IsInt() bool {
	switch dtype {
	case Int32, Int64, Uint32, Uint64:
		return true
	}
	return false
}

// IsUnsigned returns whether dtype is an unsigned integer type.
func (dtype DType) IsUnsigned() bool {
	return dtype == Uint32 || dtype == Uint64
}

// TransferSupported returns whether the transfer engine accepts this dtype
// when copying between host and USM memory.
//
// The device call convention supports Float16, but host<->device copies are
// restricted to the 32/64-bit integer and float dtypes.
func (dtype DType) TransferSupported() bool {
	switch dtype {
	case Int32, Int64, Uint32, Uint64, Float32, Float64:
		return true
	}
	return false
}

var (
	dtypeToGoType = map[DType]reflect.Type{
		Int32:   reflect.TypeOf(int32(0)),
		Int64:   reflect.TypeOf(int64(0)),
		Uint32:  reflect.TypeOf(uint32(0)),
		Uint64:  reflect.TypeOf(uint64(0)),
		Float16: reflect.TypeOf(float16.Float16(0)),
		Float32: reflect.TypeOf(float32(0)),
		Float64: reflect.TypeOf(float64(0)),
	}
	goTypeToDType = func() map[reflect.Type]DType {
		m := make(map[reflect.Type]DType, len(dtypeToGoType))
		for dtype, goType := range dtypeToGoType {
			m[goType] = dtype
		}
		return m
	}()
)

// GoType returns the Go type corresponding to the dtype, or nil for
// InvalidDType.
func (dtype DType) GoType() reflect.Type {
	return dtypeToGoType[dtype]
}

// FromGoType returns the DType corresponding to the given Go type, or
// InvalidDType if there is no correspondence.
func FromGoType(goType reflect.Type) DType {
	return goTypeToDType[goType]
}

// FromAny returns the DType of the dynamically typed value, or InvalidDType
// if value's type has no corresponding dtype.
func FromAny(value any) DType {
	if value == nil {
		return InvalidDType
	}
	return FromGoType(reflect.TypeOf(value))
}

// FromGenericsType returns the DType for the Go type given as the generic
// parameter.
func FromGenericsType[T Supported]() DType {
	var t T
	return FromGoType(reflect.TypeOf(t))
}

// MapOfNames maps canonical dtype names and their common aliases (lower-case
// and short forms) to the corresponding DType.
var MapOfNames = func() map[string]DType {
	m := make(map[string]DType)
	for dtype, name := range dtypeNames {
		if dtype == InvalidDType {
			continue
		}
		m[name] = dtype
		m[strings.ToLower(name)] = dtype
	}
	for alias, dtype := range map[string]DType{
		"S32": S32, "S64": S64,
		"U32": U32, "U64": U64,
		"F16": F16, "F32": F32, "F64": F64,
	} {
		m[alias] = dtype
		m[strings.ToLower(alias)] = dtype
	}
	return m
}()
