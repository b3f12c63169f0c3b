package shape

import (
	"reflect"
	"testing"
)

func TestNewRowMajorStrides(t *testing.T) {
	s := New(3, 2)
	if !reflect.DeepEqual(s.Strides, []int{2, 1}) {
		t.Errorf("strides = %v, want [2 1]", s.Strides)
	}
	if s.ElementCount() != 6 {
		t.Errorf("ElementCount() = %d, want 6", s.ElementCount())
	}
}

func TestNewColumnMajor(t *testing.T) {
	// A (3,2) column-major matrix: six elements laid out [0,2,4,1,3,5]
	// should have strides such that element (r,c) maps to r + c*3.
	s := NewColumnMajor(3, 2)
	if s.LinearIndex([]int{0, 0}) != 0 || s.LinearIndex([]int{1, 0}) != 1 ||
		s.LinearIndex([]int{0, 1}) != 3 {
		t.Errorf("column-major strides wrong: %v", s.Strides)
	}
}

func TestSpanAndContiguous(t *testing.T) {
	s := New(3, 2)
	if s.SpanCount() != 6 || !s.IsContiguous() {
		t.Errorf("expected contiguous span 6, got span=%d contiguous=%v", s.SpanCount(), s.IsContiguous())
	}
}

func TestEmptyShapeIsScalarOne(t *testing.T) {
	s := New()
	if s.ElementCount() != 1 {
		t.Errorf("empty shape ElementCount() = %d, want 1", s.ElementCount())
	}
}

func TestZeroExtentIsEmpty(t *testing.T) {
	s := New(0, 4)
	if s.ElementCount() != 0 {
		t.Errorf("ElementCount() = %d, want 0", s.ElementCount())
	}
}

func TestTransposedInvolution(t *testing.T) {
	s := New(2, 3)
	tt := s.Transposed().Transposed()
	if !reflect.DeepEqual(tt.Extents, s.Extents) || !reflect.DeepEqual(tt.Strides, s.Strides) {
		t.Errorf("transpose is not involutive: got %+v, want %+v", tt, s)
	}
}

func TestFlattened(t *testing.T) {
	s := New(2, 3, 4)
	f, err := s.Flattened(1)
	if err != nil {
		t.Fatalf("Flattened: %v", err)
	}
	if !reflect.DeepEqual(f.Extents, []int{2, 12}) {
		t.Errorf("Extents = %v, want [2 12]", f.Extents)
	}
}

func TestFlattenedNonContiguousFails(t *testing.T) {
	s := New(2, 3, 4).Transposed() // now axis 2 and 1 swapped, non-default strides
	if _, err := s.Flattened(0); err == nil {
		t.Error("expected error flattening non-contiguous tail")
	}
}

func TestPaddedSingleUniform(t *testing.T) {
	s := New(3)
	p, err := s.Padded([]Padding{{Before: 1, After: 2}})
	if err != nil {
		t.Fatalf("Padded: %v", err)
	}
	if p.Extents[0] != 6 {
		t.Errorf("padded extent = %d, want 6", p.Extents[0])
	}
}

func TestPaddedWrongCount(t *testing.T) {
	s := New(3, 3)
	if _, err := s.Padded([]Padding{{Before: 1}, {Before: 1}, {Before: 1}}); err == nil {
		t.Error("expected error for mismatched padding count")
	}
}

func TestBroadcastAlignRejectsNegative(t *testing.T) {
	target := New(10)
	source := New(10)
	if _, err := BroadcastAlign(target, source, []int{-1}); err == nil {
		t.Error("expected error for negative alignment")
	}
}

func TestBroadcastAlignRankMismatch(t *testing.T) {
	target := New(3)
	source := New(3, 3)
	if _, err := BroadcastAlign(target, source, nil); err == nil {
		t.Error("expected error when source rank exceeds target rank")
	}
}
