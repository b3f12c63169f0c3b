// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package codec

import (
	"bytes"
	"testing"

	"github.com/born-ml/tensorcore/device"
	"github.com/born-ml/tensorcore/dtype"
	"github.com/born-ml/tensorcore/storage"
)

func allKinds() []dtype.Kind {
	return []dtype.Kind{
		dtype.U8, dtype.U16, dtype.I16, dtype.I32, dtype.I64, dtype.U64,
		dtype.F16, dtype.F32, dtype.F64, dtype.Bool,
		dtype.RGB, dtype.RGBA, dtype.Stereo,
	}
}

// TestEncodeDecodeRoundTrip exercises property 8 (round-trip encode/decode)
// across every dtype.Kind, including the composite vector kinds.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := device.NewPlatform()
	cpu := p.CPU()

	for _, k := range allKinds() {
		k := k
		t.Run(k.String(), func(t *testing.T) {
			// Each subtest runs on its own goroutine, and a stream only
			// accepts work from the goroutine that created it.
			s := cpu.NewStream()
			defer s.Close()

			const count = 4
			data := make([]byte, count*k.Size())
			for i := range data {
				data[i] = byte(i + 1)
			}
			st, err := storage.NewFromHost(cpu, k, data, false)
			if err != nil {
				t.Fatalf("seed storage: %v", err)
			}

			rec, err := Encode("x", st, cpu, s)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if rec.Dtype != k {
				t.Fatalf("Encode dtype = %v, want %v", rec.Dtype, k)
			}
			if !bytes.Equal(rec.Data, data) {
				t.Fatalf("Encode data = %v, want %v", rec.Data, data)
			}

			wire, err := Marshal(rec)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			back, err := Unmarshal(wire)
			if err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if back.Name != rec.Name || back.Dtype != rec.Dtype || !bytes.Equal(back.Data, rec.Data) {
				t.Fatalf("Unmarshal round trip mismatch: got %+v, want %+v", back, rec)
			}

			decoded, err := Decode(back, cpu)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			out, err := decoded.ReadOnly(cpu, s)
			if err != nil {
				t.Fatalf("ReadOnly after Decode: %v", err)
			}
			if err := s.BlockUntilIdle(); err != nil {
				t.Fatalf("BlockUntilIdle: %v", err)
			}
			if !bytes.Equal(out.Bytes(), data) {
				t.Fatalf("decoded bytes = %v, want %v", out.Bytes(), data)
			}
		})
	}
}

func TestUnmarshalRejectsBadMagic(t *testing.T) {
	if _, err := Unmarshal([]byte("not a record")); err != ErrInvalidMagic {
		t.Fatalf("Unmarshal error = %v, want ErrInvalidMagic", err)
	}
}

func TestUnmarshalDetectsCorruption(t *testing.T) {
	rec := Record{Name: "x", Dtype: dtype.F32, Shape: []int{2}, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	wire, err := Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	wire[len(wire)-1] ^= 0xFF
	if _, err := Unmarshal(wire); err != ErrChecksumMismatch {
		t.Fatalf("Unmarshal error = %v, want ErrChecksumMismatch", err)
	}
}
