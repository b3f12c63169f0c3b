// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package iter converts a linear visit of a view's logical coordinates
// into a (data offset, is-padding) pair, for both plain strided traversal
// and the padded/repeated traversal views can describe.
//
// Rather than the bespoke per-axis incremental rebasing state machine
// some tensor runtimes hand-roll for this, Cursor recomputes each axis's
// contribution from the linear index directly. It is simpler to read and
// just as correct; see DESIGN.md for the tradeoff.
package iter

import "fmt"

// Axis describes one dimension's mapping from a view coordinate to a
// data coordinate: either direct (Repeated == false), optionally padded,
// or wrapped modulo DataExtent (Repeated == true, the broadcast case).
type Axis struct {
	ViewExtent int
	DataExtent int
	DataStride int
	PadBefore  int
	PadAfter   int
	Align      int
	Repeated   bool
}

// resolve maps a coordinate along this axis (0 <= c < ViewExtent) to a
// data-relative index and whether that position is padding.
func (a Axis) resolve(c int) (dataIdx int, isPad bool) {
	if a.Repeated {
		m := (c + a.Align) % a.DataExtent
		if m < 0 {
			m += a.DataExtent
		}
		return m, false
	}
	inner := c - a.PadBefore
	if inner < 0 || inner >= a.DataExtent {
		return 0, true
	}
	return inner, false
}

// Cursor is a bidirectional random-access view over a padded, strided,
// possibly-repeated n-dimensional traversal. It implements both the
// "rank-specialized" and "general n-dimensional with padding" families
// from the index-iterator model: there is no separate fast path, since a
// direct per-axis divmod is already O(rank) per step.
type Cursor struct {
	axes  []Axis
	count int
}

// New builds a Cursor over axes, outermost first. PadValue-bearing reads
// are the caller's responsibility (see Values); Cursor only resolves
// offsets.
func New(axes []Axis) *Cursor {
	count := 1
	for _, a := range axes {
		count *= a.ViewExtent
	}
	return &Cursor{axes: append([]Axis(nil), axes...), count: count}
}

// NewScalar returns the (degenerate) zero-axis cursor: a single element.
func NewScalar() *Cursor { return New(nil) }

// NewVector returns a cursor over a single axis.
func NewVector(extent, stride int) *Cursor {
	return New([]Axis{{ViewExtent: extent, DataExtent: extent, DataStride: stride}})
}

// NewMatrix returns a cursor over two axes (rows, cols).
func NewMatrix(rows, rowStride, cols, colStride int) *Cursor {
	return New([]Axis{
		{ViewExtent: rows, DataExtent: rows, DataStride: rowStride},
		{ViewExtent: cols, DataExtent: cols, DataStride: colStride},
	})
}

// NewVolume returns a cursor over three axes.
func NewVolume(d0, s0, d1, s1, d2, s2 int) *Cursor {
	return New([]Axis{
		{ViewExtent: d0, DataExtent: d0, DataStride: s0},
		{ViewExtent: d1, DataExtent: d1, DataStride: s1},
		{ViewExtent: d2, DataExtent: d2, DataStride: s2},
	})
}

// Rank returns the number of axes.
func (c *Cursor) Rank() int { return len(c.axes) }

// Count returns the total number of positions the cursor visits,
// i.e. the padded shape's element count.
func (c *Cursor) Count() int { return c.count }

// Coords decomposes a linear view index into per-axis coordinates,
// outermost first, using the view extents as mixed-radix digits.
func (c *Cursor) Coords(viewIndex int) []int {
	coords := make([]int, len(c.axes))
	rem := viewIndex
	for i := len(c.axes) - 1; i >= 0; i-- {
		ext := c.axes[i].ViewExtent
		coords[i] = rem % ext
		rem /= ext
	}
	return coords
}

// At resolves the linear view index viewIndex to a data offset (in
// elements, not bytes) and whether the position falls in padding. A
// padded position's offset is meaningless and must not be dereferenced.
func (c *Cursor) At(viewIndex int) (dataOffset int, isPad bool) {
	if viewIndex < 0 || viewIndex >= c.count {
		panic(fmt.Sprintf("iter: view index %d out of range [0,%d)", viewIndex, c.count))
	}
	coords := c.Coords(viewIndex)
	offset := 0
	for i, a := range c.axes {
		idx, pad := a.resolve(coords[i])
		if pad {
			return 0, true
		}
		offset += idx * a.DataStride
	}
	return offset, false
}

// Advanced returns a new view index obtained by moving n positions from
// start, the random-access analogue of repeated increment().
func (c *Cursor) Advanced(start, n int) int { return start + n }
