// trailer_test.go -- test suite for the optional extension-header decoder.
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package ckv

import (
	"errors"
	"testing"
)

func TestDecodeTrailingEmpty(t *testing.T) {
	assert := newAsserter(t)

	m, err := decodeTrailing([]byte{0, 0, 0, 0, 0, 0, 0, 0}, nil, nil)
	assert(err == nil, "empty trailing region should decode cleanly: %s", err)
	assert(m.bloom == nil, "no bloom filter expected")
}

func TestDecodeTrailingRejectsBadMagic(t *testing.T) {
	_, err := decodeTrailing(nil, nil, []byte("NOPE!"))
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for bad magic, got %v", err)
	}
}

func TestDecodeTrailingRejectsTrailingGarbage(t *testing.T) {
	rest := append([]byte(extMagic), 0) // valid header, no blocks, but flags claim none
	rest = append(rest, 0xde, 0xad)     // unexpected extra bytes
	_, err := decodeTrailing(nil, nil, rest)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt for unexpected trailing bytes, got %v", err)
	}
}

func TestMayContainWithoutBloomAlwaysTrue(t *testing.T) {
	var m trailingMeta
	if !m.mayContain(1, 2) {
		t.Fatalf("mayContain with no bloom filter must always return true")
	}
}
