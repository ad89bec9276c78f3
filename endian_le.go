// endian_le.go -- index-table decoding for little-endian archs.
//
// Counterpart to endian_be.go. On little-endian hosts the on-disk u32 LE
// layout already matches the native in-memory layout, so loadIndexTable
// can reinterpret the raw bytes as a []uint32 instead of decoding one slot
// at a time. NewMmapReader copies the result into a slice it owns.
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

//go:build !ppc64 && !mips && !mips64 && !s390x

package ckv

import (
	"encoding/binary"
	"unsafe"
)

// loadIndexTable decodes buf -- raw little-endian u32 slots, typically a
// slice into an mmap'd file -- into a []uint32. table_offset is a
// variable-length-record boundary, not guaranteed 4-byte aligned on every
// platform (see spec §4.5), so this only takes the zero-copy
// unsafe.Slice path when the backing address happens to be aligned;
// otherwise it falls back to a decoded copy, which is always safe.
func loadIndexTable(buf []byte) []uint32 {
	n := len(buf) / 4
	if n == 0 {
		return nil
	}

	if uintptr(unsafe.Pointer(&buf[0]))%4 == 0 {
		return unsafe.Slice((*uint32)(unsafe.Pointer(&buf[0])), n)
	}

	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return out
}
