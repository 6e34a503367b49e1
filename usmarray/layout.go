package usmarray

// This file defines the physical struct layout of a typed array as passed to
// device code. The field order is a binary contract: host-side argument
// packing and device-side generated code must agree on it byte for byte.

// FieldKind classifies a struct-layout field.
type FieldKind int

const (
	// KindMemInfo is the reference-counted allocation handle.
	KindMemInfo FieldKind = iota
	// KindObject is an opaque host-object back-reference (nullable).
	KindObject
	// KindInt is a machine-word integer.
	KindInt
	// KindDataPointer is the raw data pointer, tagged with the array type's
	// address space.
	KindDataPointer
	// KindIntTuple is a tuple of machine-word integers (shape, strides).
	KindIntTuple
)

// Field describes one field of the array struct layout.
type Field struct {
	Name string
	Kind FieldKind

	// Words is the field width in machine words (Ndim for shape/strides,
	// 1 otherwise).
	Words int

	// AddrSpace is the address-space tag of the field. Only the data pointer
	// carries the array's tag; every other field is AddrSpaceUnset.
	AddrSpace AddrSpace
}

// StructLayout returns the fixed 7-field physical layout of the array type:
//
//	meminfo, parent, nitems, itemsize, data, shape, strides
//
// The shape and strides tuples are each Ndim words wide. The address-space
// tag of t propagates into the data field only.
func StructLayout(t ArrayType) []Field {
	return []Field{
		{Name: "meminfo", Kind: KindMemInfo, Words: 1, AddrSpace: AddrSpaceUnset},
		{Name: "parent", Kind: KindObject, Words: 1, AddrSpace: AddrSpaceUnset},
		{Name: "nitems", Kind: KindInt, Words: 1, AddrSpace: AddrSpaceUnset},
		{Name: "itemsize", Kind: KindInt, Words: 1, AddrSpace: AddrSpaceUnset},
		{Name: "data", Kind: KindDataPointer, Words: 1, AddrSpace: t.AddrSpace},
		{Name: "shape", Kind: KindIntTuple, Words: t.Ndim, AddrSpace: AddrSpaceUnset},
		{Name: "strides", Kind: KindIntTuple, Words: t.Ndim, AddrSpace: AddrSpaceUnset},
	}
}
