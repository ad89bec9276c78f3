// trailer.go -- decode and verify the optional bloom-filter and
// integrity-trailer blocks that may follow the index table. Shared by
// BufferedReader and MmapReader so both agree on the exact same trailing
// layout (see writer.go's extMagic/extFlag constants and SPEC_FULL.md §6.1a).
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package ckv

import (
	"bytes"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/bits-and-blooms/bloom/v3"
)

const trailerSize = sha512.Size256 // 32 bytes

// trailingMeta holds whatever optional blocks were found after the index
// table: an optional bloom filter.
type trailingMeta struct {
	bloom *bloom.BloomFilter
}

// decodeTrailing parses the optional extension header in rest (the bytes
// immediately after the index table) and, if it declares an integrity
// trailer, verifies it against hdrBytes+tableBytes+(the extension bytes that
// precede the trailer itself) -- exactly what Writer.Finish hashed, and
// deliberately not the records (see SPEC_FULL.md §4.8).
func decodeTrailing(hdrBytes, tableBytes, rest []byte) (trailingMeta, error) {
	var meta trailingMeta

	if len(rest) == 0 {
		return meta, nil
	}

	if len(rest) < 5 || string(rest[0:4]) != extMagic {
		return trailingMeta{}, fmt.Errorf("%w: unrecognized %d trailing bytes after index table", ErrCorrupt, len(rest))
	}

	flags := rest[4]
	pos := 5

	if flags&extFlagBloom != 0 {
		if len(rest) < pos+4 {
			return trailingMeta{}, fmt.Errorf("%w: truncated bloom block length", ErrCorrupt)
		}
		blen := binary.LittleEndian.Uint32(rest[pos : pos+4])
		pos += 4

		if uint64(pos)+uint64(blen) > uint64(len(rest)) {
			return trailingMeta{}, fmt.Errorf("%w: truncated bloom block", ErrCorrupt)
		}

		f := &bloom.BloomFilter{}
		if _, err := f.ReadFrom(bytes.NewReader(rest[pos : pos+int(blen)])); err != nil {
			return trailingMeta{}, fmt.Errorf("%w: can't decode bloom block: %v", ErrCorrupt, err)
		}
		meta.bloom = f
		pos += int(blen)
	}

	if flags&extFlagTrailer != 0 {
		if len(rest)-pos != trailerSize {
			return trailingMeta{}, fmt.Errorf("%w: trailer size mismatch", ErrCorrupt)
		}

		var h hash.Hash = sha512.New512_256()
		h.Write(hdrBytes)
		h.Write(tableBytes)
		h.Write(rest[:pos]) // ext_magic + ext_flags (+ bloom block, if any)
		sum := h.Sum(nil)
		if !bytes.Equal(sum, rest[pos:]) {
			return trailingMeta{}, fmt.Errorf("%w: integrity trailer checksum mismatch", ErrCorrupt)
		}
		pos += trailerSize
	}

	if pos != len(rest) {
		return trailingMeta{}, fmt.Errorf("%w: %d unexpected bytes after extension blocks", ErrCorrupt, len(rest)-pos)
	}

	return meta, nil
}

// mayContain reports whether the bloom filter (if any) says key's
// fingerprint might be present. When there is no bloom filter, it always
// returns true -- callers fall through to the normal table lookup.
func (m trailingMeta) mayContain(h1, h2 uint32) bool {
	if m.bloom == nil {
		return true
	}
	var fp [8]byte
	binary.LittleEndian.PutUint32(fp[0:4], h1)
	binary.LittleEndian.PutUint32(fp[4:8], h2)
	return m.bloom.Test(fp[:])
}
