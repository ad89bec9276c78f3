// mmap_reader.go -- mmap-backed reader (component E).
//
// Grounded on the teacher's dbreader.go: mmap the file once at construction,
// keep the raw byte slice around, and serve lookups by indexing into it
// instead of seeking. The teacher mmap'd only the offset/CHD region and
// seeked into the file for each record's value; this reader mmaps the whole
// file so LookupZeroCopy can hand back a slice straight into the mapping
// with no read(2) at all. OS-specific mmap/munmap live in mmap_unix.go and
// mmap_windows.go; loadIndexTable's endian handling lives in
// endian_be.go/endian_le.go.
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package ckv

import (
	"encoding/binary"
	"fmt"
	"os"
)

// MmapReader answers point lookups against a finalized file by memory
// mapping it once at construction. LookupZeroCopy avoids all copying;
// Lookup is the same but returns an independent copy of the value, safe to
// retain after Close.
type MmapReader struct {
	cfg   readerConfig
	hdr   decodedHeader
	table []uint32
	trail trailingMeta
	cache *recordCache

	f    *os.File
	data []byte
}

// NewMmapReader opens path, maps it into memory, and prepares it for
// Lookup/LookupZeroCopy. The returned *MmapReader must be Closed to release
// the mapping.
func NewMmapReader(path string, opts ...ReaderOption) (*MmapReader, error) {
	cfg := defaultReaderConfig()
	for _, o := range opts {
		o(&cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := st.Size()

	if size < headerSize {
		f.Close()
		return nil, fmt.Errorf("%w: file smaller than header", ErrCorrupt)
	}

	data, err := mmapFile(f, size)
	if err != nil {
		f.Close()
		return nil, err
	}

	hdr, err := decodeHeader(data[:headerSize], size)
	if err != nil {
		munmapFile(data)
		f.Close()
		return nil, err
	}

	tableEnd := hdr.tableEnd()
	tableBytes := data[hdr.tableOffset:tableEnd]
	table := make([]uint32, hdr.tableLen)
	copy(table, loadIndexTable(tableBytes))

	rest := data[tableEnd:]
	trail, err := decodeTrailing(data[:headerSize], tableBytes, rest)
	if err != nil {
		munmapFile(data)
		f.Close()
		return nil, err
	}

	cache, err := newRecordCache(cfg.cacheSize)
	if err != nil {
		munmapFile(data)
		f.Close()
		return nil, err
	}

	return &MmapReader{
		cfg:   cfg,
		hdr:   hdr,
		table: table,
		trail: trail,
		cache: cache,
		f:     f,
		data:  data,
	}, nil
}

// Close unmaps the file and closes its descriptor. The *MmapReader (and any
// slice returned by LookupZeroCopy) must not be used afterward.
func (r *MmapReader) Close() error {
	err := munmapFile(r.data)
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Lookup returns an independent copy of the value stored for key, safe to
// retain past Close. See LookupZeroCopy to avoid the copy.
func (r *MmapReader) Lookup(key []byte) ([]byte, error) {
	v, err := r.LookupZeroCopy(key)
	if err != nil || v == nil {
		return v, err
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// LookupZeroCopy returns the value stored for key as a slice into the
// underlying mapping -- no allocation, no read(2). The slice is valid only
// until Close is called. Returns ErrNotFound if key is absent.
func (r *MmapReader) LookupZeroCopy(key []byte) ([]byte, error) {
	h1, h2 := r.cfg.hasher.fingerprint(key)

	if !r.trail.mayContain(h1, h2) {
		return nil, ErrNotFound
	}

	if v, ok := r.cache.get(h1, h2, key); ok {
		return v, nil
	}

	var (
		v   []byte
		err error
	)
	switch r.cfg.placement {
	case LinearProbe:
		v, err = r.lookupLinear(key, h1)
	default:
		v, err = r.lookupCuckoo(key, h1, h2)
	}
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}

	r.cache.add(h1, h2, key, v)
	return v, nil
}

func (r *MmapReader) lookupCuckoo(key []byte, h1, h2 uint32) ([]byte, error) {
	if len(r.table) == 0 {
		return nil, nil
	}

	if s1 := r.table[h1%uint32(len(r.table))]; s1 != 0 {
		v, err := r.tryRead(key, s1)
		if err != nil || v != nil {
			return v, err
		}
	}
	if s2 := r.table[h2%uint32(len(r.table))]; s2 != 0 {
		v, err := r.tryRead(key, s2)
		if err != nil || v != nil {
			return v, err
		}
	}
	return nil, nil
}

func (r *MmapReader) lookupLinear(key []byte, h uint32) ([]byte, error) {
	n := uint32(len(r.table))
	if n == 0 {
		return nil, nil
	}

	slot := h % n
	for {
		off := r.table[slot]
		if off == 0 {
			return nil, nil
		}
		v, err := r.tryRead(key, off)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
		slot = (slot + 1) % n
	}
}

// tryRead decodes the record at byte offset off directly out of the
// mapping and returns its value if its key matches, nil if it doesn't, or
// an error if the record is malformed.
func (r *MmapReader) tryRead(key []byte, off uint32) ([]byte, error) {
	if err := validateSlot(off, r.hdr.tableOffset); err != nil {
		return nil, err
	}

	buf := r.data
	if uint64(off)+4 > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: record header at %d out of range", ErrCorrupt, off)
	}
	keyLen := binary.LittleEndian.Uint32(buf[off : off+4])
	pos := uint64(off) + 4

	if pos+uint64(keyLen) > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: key at %d out of range", ErrCorrupt, off)
	}
	keyBuf := buf[pos : pos+uint64(keyLen)]
	pos += uint64(keyLen)

	if !bytesEqual(keyBuf, key) {
		return nil, nil
	}

	if pos+4 > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: value length at %d out of range", ErrCorrupt, off)
	}
	valueLen := binary.LittleEndian.Uint32(buf[pos : pos+4])
	pos += 4

	if pos+uint64(valueLen) > uint64(len(buf)) {
		return nil, fmt.Errorf("%w: value at %d out of range", ErrCorrupt, off)
	}

	return buf[pos : pos+uint64(valueLen)], nil
}
