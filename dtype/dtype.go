// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dtype enumerates the closed set of element kinds the tensor
// runtime core understands: the scalar numeric kinds and the fixed-size
// vector composites built from them.
package dtype

import "fmt"

// Kind is a runtime tag for an element's memory layout. It replaces
// runtime-polymorphic element types with a bounded, size-parameterized set.
type Kind int

// Scalar kinds, plus fixed-size vector composites whose memory layout is
// a fixed count of consecutive scalar components.
const (
	U8 Kind = iota
	U16
	I16
	I32
	I64
	U64
	F16
	F32
	F64
	Bool

	// RGB is three consecutive F32 components.
	RGB
	// RGBA is four consecutive F32 components.
	RGBA
	// Stereo is two consecutive F32 components (left, right).
	Stereo
)

// componentKind and componentCount describe a composite kind's layout in
// terms of its scalar component kind and how many of them it packs.
var componentKind = map[Kind]Kind{
	RGB: F32, RGBA: F32, Stereo: F32,
}

var componentCount = map[Kind]int{
	RGB: 3, RGBA: 4, Stereo: 2,
}

// scalarSize is the canonical fixed byte size of each scalar kind.
var scalarSize = map[Kind]int{
	U8: 1, Bool: 1,
	U16: 2, I16: 2, F16: 2,
	I32: 4, U64: 8, I64: 8,
	F32: 4, F64: 8,
}

// IsComposite reports whether k is a fixed-size vector composite rather
// than a bare scalar kind.
func (k Kind) IsComposite() bool {
	_, ok := componentKind[k]
	return ok
}

// Component returns the scalar kind underlying a composite kind, and the
// number of consecutive components per element. For a scalar kind it
// returns itself and a count of 1.
func (k Kind) Component() (Kind, int) {
	if ck, ok := componentKind[k]; ok {
		return ck, componentCount[k]
	}
	return k, 1
}

// Size returns the canonical fixed byte size of one element of this kind.
func (k Kind) Size() int {
	if ck, ok := componentKind[k]; ok {
		return scalarSize[ck] * componentCount[k]
	}
	if sz, ok := scalarSize[k]; ok {
		return sz
	}
	panic(fmt.Sprintf("dtype: unknown kind %d", int(k)))
}

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case U8:
		return "u8"
	case U16:
		return "u16"
	case I16:
		return "i16"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case U64:
		return "u64"
	case F16:
		return "f16"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Bool:
		return "bool"
	case RGB:
		return "rgb"
	case RGBA:
		return "rgba"
	case Stereo:
		return "stereo"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the closed set of supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case U8, U16, I16, I32, I64, U64, F16, F32, F64, Bool, RGB, RGBA, Stereo:
		return true
	default:
		return false
	}
}
