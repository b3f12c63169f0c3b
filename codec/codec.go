// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package codec implements the persisted state layout: a tensor becomes a
// flat {name, dtype, shape, contiguous elements} record, independent of
// which device or replica it was read from. It is grounded in the same
// magic-bytes-plus-JSON-header convention the framework's own .born format
// uses, scaled down to the single-record case a tensor needs.
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/born-ml/tensorcore/device"
	"github.com/born-ml/tensorcore/dtype"
	"github.com/born-ml/tensorcore/storage"
	"github.com/born-ml/tensorcore/stream"
)

// magicBytes tags the encoded form so a reader can fail fast on garbage
// input rather than misinterpreting it.
const magicBytes = "TCR1"

// ErrInvalidMagic is returned by Unmarshal when the leading bytes
// don't match magicBytes.
var ErrInvalidMagic = errors.New("codec: not a tensorcore record (bad magic)")

// ErrChecksumMismatch is returned when a decoded record's checksum doesn't
// match its payload, indicating corruption.
var ErrChecksumMismatch = errors.New("codec: checksum mismatch")

// Record is the persisted form of a tensor: a name, its element kind and
// shape, and the contiguous byte sequence of its elements in row-major
// order.
type Record struct {
	Name  string
	Dtype dtype.Kind
	Shape []int
	Data  []byte
}

// header is the JSON-serialized metadata written ahead of the raw element
// bytes. Data itself is never embedded in JSON: it follows as a raw
// trailer so large tensors avoid a base64 blow-up.
type header struct {
	Name     string `json:"name"`
	Dtype    int    `json:"dtype"`
	Shape    []int  `json:"shape"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Encode resolves st's current contents on the host device via a blocking
// read_only access (draining s when one is given), then snapshots them into
// a Record. st carries its own name only implicitly; callers that persist
// multiple tensors supply name explicitly since Storage itself has no name
// field.
func Encode(name string, st *storage.Storage, host *device.Device, s *stream.Stream) (Record, error) {
	buf, err := st.ReadOnly(host, s)
	if err != nil {
		return Record{}, fmt.Errorf("codec: encode: %w", err)
	}
	if s != nil {
		if err := s.BlockUntilIdle(); err != nil {
			return Record{}, fmt.Errorf("codec: encode: %w", err)
		}
	}
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return Record{
		Name:  name,
		Dtype: st.ElementType(),
		Shape: shapeFromCount(st.Count()),
		Data:  data,
	}, nil
}

// shapeFromCount produces a rank-1 shape for a storage, since Storage
// itself only tracks a flat element count; callers that need a richer
// shape attach it via view and round-trip it separately.
func shapeFromCount(count int) []int {
	return []int{count}
}

// Decode builds a fresh Storage on dev from r, seeding it as the master
// replica at version 0 — the inverse of Encode.
func Decode(r Record, dev *device.Device) (*storage.Storage, error) {
	if !r.Dtype.Valid() {
		return nil, fmt.Errorf("codec: decode %q: invalid dtype %d", r.Name, int(r.Dtype))
	}
	want := elementCount(r.Shape) * r.Dtype.Size()
	if want != len(r.Data) {
		return nil, fmt.Errorf("codec: decode %q: shape/dtype imply %d bytes, got %d", r.Name, want, len(r.Data))
	}
	return storage.NewFromHost(dev, r.Dtype, r.Data, false)
}

func elementCount(shape []int) int {
	n := 1
	for _, e := range shape {
		n *= e
	}
	return n
}

// Marshal serializes r to the on-disk wire form: magic bytes, a length-
// prefixed JSON header (name, dtype, shape, size, sha-256 checksum of the
// data), followed immediately by the raw element bytes.
func Marshal(r Record) ([]byte, error) {
	sum := sha256.Sum256(r.Data)
	h := header{
		Name:     r.Name,
		Dtype:    int(r.Dtype),
		Shape:    r.Shape,
		Size:     int64(len(r.Data)),
		Checksum: fmt.Sprintf("%x", sum),
	}
	hb, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal header: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(magicBytes)
	if err := binary.Write(&out, binary.LittleEndian, uint32(len(hb))); err != nil {
		return nil, err
	}
	out.Write(hb)
	out.Write(r.Data)
	return out.Bytes(), nil
}

// Unmarshal parses the wire form produced by Marshal, validating the
// magic bytes and the data checksum.
func Unmarshal(b []byte) (Record, error) {
	if len(b) < len(magicBytes)+4 {
		return Record{}, ErrInvalidMagic
	}
	if string(b[:len(magicBytes)]) != magicBytes {
		return Record{}, ErrInvalidMagic
	}
	rest := b[len(magicBytes):]
	var headerLen uint32
	if err := binary.Read(bytes.NewReader(rest[:4]), binary.LittleEndian, &headerLen); err != nil {
		return Record{}, fmt.Errorf("codec: read header length: %w", err)
	}
	rest = rest[4:]
	if uint32(len(rest)) < headerLen {
		return Record{}, io.ErrUnexpectedEOF
	}
	var h header
	if err := json.Unmarshal(rest[:headerLen], &h); err != nil {
		return Record{}, fmt.Errorf("codec: parse header: %w", err)
	}
	data := rest[headerLen:]
	if int64(len(data)) != h.Size {
		return Record{}, fmt.Errorf("codec: header declares %d bytes, got %d", h.Size, len(data))
	}
	sum := sha256.Sum256(data)
	if fmt.Sprintf("%x", sum) != h.Checksum {
		return Record{}, ErrChecksumMismatch
	}
	return Record{
		Name:  h.Name,
		Dtype: dtype.Kind(h.Dtype),
		Shape: h.Shape,
		Data:  data,
	}, nil
}
