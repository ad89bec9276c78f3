// endian_be.go -- index-table decoding for big-endian archs.
//
// Grounded on the teacher's endian_be.go/endian_be_test.go split: keep the
// byte-swap path isolated in its own build-tagged file rather than branching
// on runtime endianness. Unlike the teacher's version (which only covered
// the table-to-int conversions CHD needed), this one decodes the raw on-disk
// u32 LE slots used by the cuckoo/linear-probe index table.
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

//go:build ppc64 || mips || mips64 || s390x

package ckv

import "encoding/binary"

// loadIndexTable decodes buf -- raw little-endian u32 slots read straight
// off disk or out of an mmap -- into a []uint32, byte-swapping each slot
// since this host's native uint32 layout is big-endian.
func loadIndexTable(buf []byte) []uint32 {
	n := len(buf) / 4
	out := make([]uint32, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[i*4 : i*4+4])
	}
	return out
}
