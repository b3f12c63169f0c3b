package iter

import "testing"

func TestVectorCursorNormalTraversal(t *testing.T) {
	c := NewVector(3, 1)
	for i := 0; i < 3; i++ {
		off, pad := c.At(i)
		if pad || off != i {
			t.Fatalf("At(%d) = (%d,%v), want (%d,false)", i, off, pad, i)
		}
	}
}

func TestMatrixCursorRowMajorOffsets(t *testing.T) {
	c := NewMatrix(2, 3, 3, 1)
	want := [][2]int{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}}
	for i, w := range want {
		off, pad := c.At(i)
		if pad || off != w[1] {
			t.Fatalf("At(%d) = (%d,%v), want (%d,false)", i, off, pad, w[1])
		}
	}
}

// TestPaddedVectorIteration exercises S4: a vector [1,2,3] with padding
// (before=1, after=2) and pad value 0 yields 0,1,2,3,0,0.
func TestPaddedVectorIteration(t *testing.T) {
	axis := Axis{ViewExtent: 6, DataExtent: 3, DataStride: 1, PadBefore: 1, PadAfter: 2}
	c := New([]Axis{axis})
	data := []byte{1, 2, 3}
	padValue := []byte{0}
	values := NewValues(c, data, 1, padValue)

	want := []byte{0, 1, 2, 3, 0, 0}
	for i, w := range want {
		got := values.At(i)
		if got[0] != w {
			t.Fatalf("values.At(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestPaddedWritesAreNoOps(t *testing.T) {
	axis := Axis{ViewExtent: 4, DataExtent: 2, DataStride: 1, PadBefore: 1, PadAfter: 1}
	c := New([]Axis{axis})
	data := []byte{10, 20}
	mv := NewMutableValues(c, data, 1)

	mv.Set(0, []byte{99}) // padded, before region
	mv.Set(3, []byte{99}) // padded, after region
	if data[0] != 10 || data[1] != 20 {
		t.Fatalf("data = %v, want unchanged by padded writes", data)
	}
	mv.Set(1, []byte{77})
	if data[0] != 77 {
		t.Fatalf("data[0] = %d, want 77 after in-bounds write", data[0])
	}
}

// TestRepeatFidelity exercises invariant 4: r.value(c) == source.value(c_reduced).
func TestRepeatFidelity(t *testing.T) {
	source := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	axis := Axis{ViewExtent: 10, DataExtent: 10, DataStride: 1, Repeated: true}
	row := New([]Axis{axis})
	big := New([]Axis{
		{ViewExtent: 10, DataExtent: 10, DataStride: 0, Repeated: false, PadBefore: 0, PadAfter: 0},
		axis,
	})

	for r := 0; r < 10; r++ {
		for col := 0; col < 10; col++ {
			idx := r*10 + col
			off, pad := big.At(idx)
			if pad {
				t.Fatalf("big.At(%d,%d) unexpectedly padded", r, col)
			}
			rowOff, rowPad := row.At(col)
			if rowPad || source[rowOff] != source[off] {
				t.Fatalf("big(%d,%d) = %d, want %d", r, col, source[off], source[rowOff])
			}
		}
	}
}

func TestAdvancedMatchesLinearSteps(t *testing.T) {
	c := NewVector(5, 1)
	start := 1
	if got := c.Advanced(start, 2); got != 3 {
		t.Fatalf("Advanced(1,2) = %d, want 3", got)
	}
}
