package dtype

import "testing"

func TestSize(t *testing.T) {
	tests := []struct {
		kind Kind
		size int
	}{
		{U8, 1}, {Bool, 1},
		{U16, 2}, {I16, 2}, {F16, 2},
		{I32, 4}, {F32, 4},
		{I64, 8}, {U64, 8}, {F64, 8},
		{RGB, 12}, {RGBA, 16}, {Stereo, 8},
	}
	for _, tt := range tests {
		if got := tt.kind.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.kind, got, tt.size)
		}
	}
}

func TestComponent(t *testing.T) {
	ck, n := RGBA.Component()
	if ck != F32 || n != 4 {
		t.Errorf("RGBA.Component() = (%s, %d), want (f32, 4)", ck, n)
	}
	ck, n = F32.Component()
	if ck != F32 || n != 1 {
		t.Errorf("F32.Component() = (%s, %d), want (f32, 1)", ck, n)
	}
}

func TestValid(t *testing.T) {
	if !F32.Valid() {
		t.Error("F32 should be valid")
	}
	if Kind(999).Valid() {
		t.Error("Kind(999) should not be valid")
	}
}

func TestString(t *testing.T) {
	if F32.String() != "f32" {
		t.Errorf("F32.String() = %q, want f32", F32.String())
	}
}
