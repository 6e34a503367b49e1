// Package usmarray defines the device-aware array type used by the offload
// pipeline: an array type carrying, besides dtype/rank/layout, an
// address-space tag that identifies which memory space its data pointer
// resolves against in generated device code.
//
// ArrayType values are immutable, comparable, and usable directly as keys in
// a compilation cache. Two types differing only in their address-space tag
// are distinct types: that distinction is what keeps generated code from
// dereferencing a pointer in the wrong memory space.
package usmarray

import (
	"fmt"

	"github.com/gousm/gousm/dtypes"
)

// AddrSpace tags a pointer with the memory space it resolves against.
// The numeric values follow the SPIR-V storage-class numbering used by the
// device code generator.
type AddrSpace int

const (
	// AddrSpaceUnset means the host default address space (no tag).
	AddrSpaceUnset AddrSpace = -1

	AddrSpacePrivate  AddrSpace = 0
	AddrSpaceGlobal   AddrSpace = 1
	AddrSpaceConstant AddrSpace = 2
	AddrSpaceLocal    AddrSpace = 3
	AddrSpaceGeneric  AddrSpace = 4
)

// String implements fmt.Stringer.
func (as AddrSpace) String() string {
	switch as {
	case AddrSpaceUnset:
		return "unset"
	case AddrSpacePrivate:
		return "private"
	case AddrSpaceGlobal:
		return "global"
	case AddrSpaceConstant:
		return "constant"
	case AddrSpaceLocal:
		return "local"
	case AddrSpaceGeneric:
		return "generic"
	}
	return fmt.Sprintf("AddrSpace(%d)", int(as))
}

// Layout is the memory layout class of an array type.
type Layout byte

const (
	// LayoutC is row-major contiguous.
	LayoutC Layout = 'C'
	// LayoutF is column-major contiguous.
	LayoutF Layout = 'F'
	// LayoutAny is strided (no contiguity guarantee).
	LayoutAny Layout = 'A'
)

// String implements fmt.Stringer.
func (l Layout) String() string { return string(l) }

// ArrayType is the device-aware array type: the identity of a typed array in
// the typing and code-generation layers.
//
// It is a plain value: construct it with New (or a struct literal), derive
// variants with Derive, and compare with ==. The zero value is not a valid
// type (its dtype is invalid).
type ArrayType struct {
	DType     dtypes.DType
	Ndim      int
	Layout    Layout
	Mutable   bool
	Aligned   bool
	AddrSpace AddrSpace
}

// New returns an ArrayType with the given dtype, rank and layout, mutable,
// aligned, and with no address-space tag.
func New(dtype dtypes.DType, ndim int, layout Layout) ArrayType {
	return ArrayType{
		DType:     dtype,
		Ndim:      ndim,
		Layout:    layout,
		Mutable:   true,
		Aligned:   true,
		AddrSpace: AddrSpaceUnset,
	}
}

// Key is the identity key of an ArrayType: the tuple
// (dtype, ndim, layout, mutable, aligned, address space).
//
// Key is a comparable value, so it can be used directly as a Go map key when
// caching compiled artifacts per array type.
type Key struct {
	DType     dtypes.DType
	Ndim      int
	Layout    Layout
	Mutable   bool
	Aligned   bool
	AddrSpace AddrSpace
}

// Key returns the identity key of the type.
func (t ArrayType) Key() Key { return Key(t) }

// Equal reports whether two types have identical keys.
func (t ArrayType) Equal(other ArrayType) bool { return t == other }

// Name returns the canonical name of the type, e.g.
// "array(Float32, 2d, C)" or "readonly array(Int64, 1d, A, addrspace=global)".
func (t ArrayType) Name() string {
	prefix := ""
	if !t.Mutable {
		prefix = "readonly "
	}
	if !t.Aligned {
		prefix += "unaligned "
	}
	suffix := ""
	if t.AddrSpace != AddrSpaceUnset {
		suffix = fmt.Sprintf(", addrspace=%s", t.AddrSpace)
	}
	return fmt.Sprintf("%sarray(%s, %dd, %s%s)", prefix, t.DType, t.Ndim, t.Layout, suffix)
}

// String implements fmt.Stringer.
func (t ArrayType) String() string { return t.Name() }

// Overrides selects which fields Derive replaces. A nil field is inherited
// unchanged from the source type.
type Overrides struct {
	DType     *dtypes.DType
	Ndim      *int
	Layout    *Layout
	Mutable   *bool
	Aligned   *bool
	AddrSpace *AddrSpace
}

// Derive returns a new ArrayType with the overridden fields replaced and all
// the other fields inherited from t. Derive with empty Overrides returns a
// type equal to t.
func Derive(t ArrayType, o Overrides) ArrayType {
	derived := t
	if o.DType != nil {
		derived.DType = *o.DType
	}
	if o.Ndim != nil {
		derived.Ndim = *o.Ndim
	}
	if o.Layout != nil {
		derived.Layout = *o.Layout
	}
	if o.Mutable != nil {
		derived.Mutable = *o.Mutable
	}
	if o.Aligned != nil {
		derived.Aligned = *o.Aligned
	}
	if o.AddrSpace != nil {
		derived.AddrSpace = *o.AddrSpace
	}
	return derived
}
