// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package view implements the tensor view: a shape-and-offset aperture
// into a storage, with optional padding and repetition. Copying a view
// is cheap (clone the struct, bump storage's shared-owner count); the
// expensive path, copy-on-write, only triggers when a shared view is
// mutated.
package view

import (
	"errors"
	"fmt"

	"github.com/born-ml/tensorcore/device"
	"github.com/born-ml/tensorcore/dtype"
	"github.com/born-ml/tensorcore/iter"
	"github.com/born-ml/tensorcore/shape"
	"github.com/born-ml/tensorcore/storage"
	"github.com/born-ml/tensorcore/stream"
)

// ErrShapeMismatch is returned for out-of-bounds sub-views, rank
// mismatches in broadcast, or count disagreements.
var ErrShapeMismatch = errors.New("view: shape mismatch")

// View is a shape-and-offset aperture into a Storage. offset and
// dataShape describe the data region in storage element units; pads and
// repeating/align describe how the logical viewExtents map onto that
// region for positions the data region alone cannot satisfy.
type View struct {
	st *storage.Storage

	kind      dtype.Kind
	dataShape shape.Shape
	offset    int

	viewExtents []int
	pads        []shape.Padding
	repeating   bool
	align       []int
	padValue    []byte

	isShared bool
}

func newBase(st *storage.Storage, kind dtype.Kind, extents []int) *View {
	s := shape.New(extents...)
	return &View{
		st:          st,
		kind:        kind,
		dataShape:   s,
		viewExtents: append([]int(nil), extents...),
		padValue:    make([]byte, kind.Size()),
	}
}

// NewScalar creates a rank-0 view backed by a fresh, never-written storage.
func NewScalar(host *device.Device, kind dtype.Kind) *View {
	return newBase(storage.New(host, kind, 1, false), kind, nil)
}

// NewVector creates a rank-1 view of n elements.
func NewVector(host *device.Device, kind dtype.Kind, n int) *View {
	return newBase(storage.New(host, kind, n, false), kind, []int{n})
}

// NewMatrix creates a rank-2 view of rows x cols elements.
func NewMatrix(host *device.Device, kind dtype.Kind, rows, cols int) *View {
	return newBase(storage.New(host, kind, rows*cols, false), kind, []int{rows, cols})
}

// NewVolume creates a rank-3 view.
func NewVolume(host *device.Device, kind dtype.Kind, d0, d1, d2 int) *View {
	return newBase(storage.New(host, kind, d0*d1*d2, false), kind, []int{d0, d1, d2})
}

// NewNCHW creates a rank-4 view in batch/channel/height/width order.
func NewNCHW(host *device.Device, kind dtype.Kind, n, c, h, w int) *View {
	return newBase(storage.New(host, kind, n*c*h*w, false), kind, []int{n, c, h, w})
}

// NewNHWC creates a rank-4 view in batch/height/width/channel order.
func NewNHWC(host *device.Device, kind dtype.Kind, n, h, w, c int) *View {
	return newBase(storage.New(host, kind, n*h*w*c, false), kind, []int{n, h, w, c})
}

// NewNDArray creates a view of arbitrary rank.
func NewNDArray(host *device.Device, kind dtype.Kind, extents ...int) *View {
	count := 1
	for _, e := range extents {
		count *= e
	}
	return newBase(storage.New(host, kind, count, false), kind, extents)
}

// NewFromValue creates a scalar view seeded with value's bytes (len(value)
// must equal kind.Size()).
func NewFromValue(host *device.Device, kind dtype.Kind, value []byte) (*View, error) {
	if len(value) != kind.Size() {
		return nil, fmt.Errorf("%w: value is %d bytes, want %d", ErrShapeMismatch, len(value), kind.Size())
	}
	st, err := storage.NewFromHost(host, kind, value, false)
	if err != nil {
		return nil, err
	}
	return newBaseFromStorage(st, kind, nil), nil
}

// NewFromSlice creates a view of extents seeded with data (row-major
// element bytes), or, when columnMajor is set, with data laid out
// column-major: the bytes are stored exactly as given and the shape's
// strides alone account for the reordering on read.
func NewFromSlice(host *device.Device, kind dtype.Kind, extents []int, data []byte, columnMajor bool) (*View, error) {
	want := 1
	for _, e := range extents {
		want *= e
	}
	if len(data) != want*kind.Size() {
		return nil, fmt.Errorf("%w: %d bytes for %d elements of size %d", ErrShapeMismatch, len(data), want, kind.Size())
	}
	st, err := storage.NewFromHost(host, kind, data, false)
	if err != nil {
		return nil, err
	}
	v := newBaseFromStorage(st, kind, extents)
	if columnMajor {
		v.dataShape = shape.NewColumnMajor(extents...)
	}
	return v, nil
}

// NewFromHostReadOnly creates a read-only view seeded with a copy of the
// host bytes data: ReadWrite on it always fails. The view does not alias
// data, so later changes to data are not seen through it.
func NewFromHostReadOnly(host *device.Device, kind dtype.Kind, extents []int, data []byte) (*View, error) {
	st, err := storage.NewFromHost(host, kind, data, true)
	if err != nil {
		return nil, err
	}
	return newBaseFromStorage(st, kind, extents), nil
}

// NewFromHostReadWrite creates a mutable view seeded with a copy of the host
// bytes data. The view does not alias data: writes through the view do not
// reach data, and later changes to data are not seen through it.
func NewFromHostReadWrite(host *device.Device, kind dtype.Kind, extents []int, data []byte) (*View, error) {
	st, err := storage.NewFromHost(host, kind, data, false)
	if err != nil {
		return nil, err
	}
	return newBaseFromStorage(st, kind, extents), nil
}

func newBaseFromStorage(st *storage.Storage, kind dtype.Kind, extents []int) *View {
	v := newBase(st, kind, extents)
	v.st = st
	return v
}

// Kind returns the view's element kind.
func (v *View) Kind() dtype.Kind { return v.kind }

// Extents returns the logical (possibly padded or repeated) extents.
func (v *View) Extents() []int { return append([]int(nil), v.viewExtents...) }

// Storage returns the backing storage, for diagnostics and tests.
func (v *View) Storage() *storage.Storage { return v.st }

// SetPadValue sets the bytes (len must equal kind.Size()) yielded for
// padded positions.
func (v *View) SetPadValue(value []byte) error {
	if len(value) != v.kind.Size() {
		return fmt.Errorf("%w: pad value is %d bytes, want %d", ErrShapeMismatch, len(value), v.kind.Size())
	}
	copy(v.padValue, value)
	return nil
}

// Padded returns a view with pads applied (one entry per axis, or a
// single entry applied to every axis).
func (v *View) Padded(pads []shape.Padding) (*View, error) {
	expanded, err := shape.ExpandPadding(pads, v.dataShape.Rank())
	if err != nil {
		return nil, err
	}
	padded, err := v.dataShape.Padded(expanded)
	if err != nil {
		return nil, err
	}
	cp := *v
	cp.pads = expanded
	cp.viewExtents = append([]int(nil), padded.Extents...)
	v.st.AddRef()
	return &cp, nil
}

// SubView validates offset+extents lie within the current view extents
// and returns a new view over that region, borrowing the parent's
// strides. isReference marks the sub-view as shared, so writes through
// it skip copy-on-write.
func (v *View) SubView(offset, extents []int, isReference bool) (*View, error) {
	rank := v.dataShape.Rank()
	if len(offset) != rank || len(extents) != rank {
		return nil, fmt.Errorf("%w: sub-view rank %d/%d, want %d", ErrShapeMismatch, len(offset), len(extents), rank)
	}
	for i := range extents {
		if offset[i] < 0 || extents[i] < 0 || offset[i]+extents[i] > v.viewExtents[i] {
			return nil, fmt.Errorf("%w: sub-view [%v,%v) exceeds extent %v at axis %d",
				ErrShapeMismatch, offset[i], offset[i]+extents[i], v.viewExtents[i], i)
		}
	}
	cp := *v
	cp.offset = v.offset + v.dataShape.LinearIndex(offset)
	cp.dataShape = shape.WithStrides(extents, v.dataShape.Strides)
	cp.viewExtents = append([]int(nil), extents...)
	cp.pads = nil
	cp.repeating = false
	cp.align = nil
	if isReference {
		cp.isShared = true
	}
	v.st.AddRef()
	return &cp, nil
}

// Repeating returns a view with logical extents targetExtents, reading
// through to self (the source) via broadcast wraparound: no data is
// copied. align is the per-axis repetition offset; nil means zero
// alignment on every axis.
func (v *View) Repeating(targetExtents, align []int) (*View, error) {
	target := shape.New(targetExtents...)
	resolved, err := shape.BroadcastAlign(target, v.dataShape, align)
	if err != nil {
		return nil, err
	}
	cp := *v
	cp.viewExtents = append([]int(nil), targetExtents...)
	cp.repeating = true
	cp.align = resolved
	cp.pads = nil
	v.st.AddRef()
	return &cp, nil
}

// Flattened collapses every axis above axis into it, as in the shape
// algebra. It is not defined for padded or repeating views.
func (v *View) Flattened(axis int) (*View, error) {
	if v.repeating || shape.HasPadding(v.pads) {
		return nil, fmt.Errorf("%w: cannot flatten a padded or repeating view", ErrShapeMismatch)
	}
	newShape, err := v.dataShape.Flattened(axis)
	if err != nil {
		return nil, err
	}
	cp := *v
	cp.dataShape = newShape
	cp.viewExtents = append([]int(nil), newShape.Extents...)
	v.st.AddRef()
	return &cp, nil
}

// Transposed swaps the two innermost axes of the data shape (and, if
// present, their padding). Not defined for repeating views.
func (v *View) Transposed() (*View, error) {
	if v.repeating {
		return nil, fmt.Errorf("%w: cannot transpose a repeating view", ErrShapeMismatch)
	}
	newShape := v.dataShape.Transposed()
	cp := *v
	cp.dataShape = newShape
	cp.viewExtents = append([]int(nil), v.viewExtents...)
	last := len(cp.viewExtents) - 1
	cp.viewExtents[last-1], cp.viewExtents[last] = cp.viewExtents[last], cp.viewExtents[last-1]
	if n := len(cp.pads); n >= 2 {
		swapped := append([]shape.Padding(nil), cp.pads...)
		swapped[n-2], swapped[n-1] = swapped[n-1], swapped[n-2]
		cp.pads = swapped
	}
	v.st.AddRef()
	return &cp, nil
}

// Reference returns a view aliasing the same storage with is_shared set,
// forcing the storage unique up front (copy-on-write now, rather than on
// the next write) so that subsequent writes from either alias mutate the
// same storage safely.
func (v *View) Reference(dev *device.Device, s *stream.Stream) (*View, error) {
	if !v.st.IsUnique() {
		fresh, err := storage.CopyFrom(v.st, dev, s)
		if err != nil {
			return nil, err
		}
		v.st.Release()
		v.st = fresh
	}
	v.isShared = true
	v.st.AddRef()
	cp := *v
	return &cp, nil
}

// AsComponents reinterprets a composite element kind (RGB, RGBA, Stereo)
// as its scalar component kind, appending an innermost axis of the
// component count. It is a pure reshape: no bytes move.
func (v *View) AsComponents() (*View, error) {
	compKind, count := v.kind.Component()
	if count == 1 {
		return nil, fmt.Errorf("%w: %s is not a composite kind", ErrShapeMismatch, v.kind)
	}
	extents := append(append([]int(nil), v.dataShape.Extents...), count)
	strides := make([]int, len(v.dataShape.Strides)+1)
	for i, st := range v.dataShape.Strides {
		strides[i] = st * count
	}
	strides[len(strides)-1] = 1
	cp := *v
	cp.kind = compKind
	cp.dataShape = shape.WithStrides(extents, strides)
	cp.viewExtents = append([]int(nil), extents...)
	cp.offset = v.offset * count
	cp.pads = nil
	cp.repeating = false
	cp.padValue = make([]byte, compKind.Size())
	v.st.AddRef()
	return &cp, nil
}

// ReadWrite resolves a mutable buffer for dev on s, cloning this view's
// storage first if it is shared with another, unreferenced view (S1's
// copy-on-write-on-mutation contract). Callers that enqueue closures on
// s must call CommitWrite(s) once those closures are all enqueued.
func (v *View) ReadWrite(dev *device.Device, s *stream.Stream) (*device.Buffer, error) {
	if !v.st.IsUnique() && !v.isShared {
		fresh, err := storage.CopyFrom(v.st, dev, s)
		if err != nil {
			return nil, err
		}
		v.st.Release()
		v.st = fresh
		v.st.SetLastAccessMutatedView(true)
	}
	return v.st.ReadWrite(dev, s)
}

// CommitWrite marks the write enqueued on s (following a prior
// ReadWrite/MutableValues call) as complete.
func (v *View) CommitWrite(s *stream.Stream) { v.st.CommitWrite(s) }

// ReadOnly resolves a read-only buffer for dev on s.
func (v *View) ReadOnly(dev *device.Device, s *stream.Stream) (*device.Buffer, error) {
	return v.st.ReadOnly(dev, s)
}

// Release drops this view's reference to its storage.
func (v *View) Release() { v.st.Release() }

// Clone makes a cheap independent handle to the same storage: the
// struct is copied and the shared-owner count bumped.
func (v *View) Clone() *View {
	v.st.AddRef()
	cp := *v
	return &cp
}

// buildAxes constructs the per-axis iteration parameters used by Values
// and MutableValues, handling the rank expansion a lower-rank source
// undergoes when broadcast to a higher-rank target.
func (v *View) buildAxes() []iter.Axis {
	n := len(v.viewExtents)
	rankDiff := n - v.dataShape.Rank()
	pads := v.pads
	if pads == nil {
		pads = make([]shape.Padding, v.dataShape.Rank())
	}
	axes := make([]iter.Axis, n)
	for i := 0; i < n; i++ {
		srcIdx := i - rankDiff
		a := iter.Axis{ViewExtent: v.viewExtents[i]}
		if srcIdx < 0 {
			a.DataExtent = 1
			a.DataStride = 0
			a.Repeated = v.repeating
		} else {
			a.DataExtent = v.dataShape.Extents[srcIdx]
			a.DataStride = v.dataShape.Strides[srcIdx]
			if v.repeating {
				a.Repeated = true
			} else if srcIdx < len(pads) {
				a.PadBefore = pads[srcIdx].Before
				a.PadAfter = pads[srcIdx].After
			}
		}
		if v.repeating && v.align != nil {
			a.Align = v.align[i]
		}
		axes[i] = a
	}
	return axes
}

// Values migrates this view's storage to dev and returns a read-only
// value sequence over it.
func (v *View) Values(dev *device.Device, s *stream.Stream) (*iter.Values, error) {
	buf, err := v.ReadOnly(dev, s)
	if err != nil {
		return nil, err
	}
	elemSize := v.kind.Size()
	cursor := iter.New(v.buildAxes())
	return iter.NewValues(cursor, buf.Bytes()[v.offset*elemSize:], elemSize, v.padValue), nil
}

// MutableValues resolves write access (cloning storage first if shared)
// and returns a writable value sequence over it. The caller must call
// CommitWrite(s) once done writing through the returned sequence.
func (v *View) MutableValues(dev *device.Device, s *stream.Stream) (*iter.MutableValues, error) {
	buf, err := v.ReadWrite(dev, s)
	if err != nil {
		return nil, err
	}
	elemSize := v.kind.Size()
	cursor := iter.New(v.buildAxes())
	return iter.NewMutableValues(cursor, buf.Bytes()[v.offset*elemSize:], elemSize), nil
}
