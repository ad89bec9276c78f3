// fingerprint.go -- pluggable key fingerprints for the cuckoo index
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package ckv

import (
	"github.com/dchest/siphash"
	"github.com/zeebo/xxh3"
)

// Hasher fingerprints a key into two 32-bit halves that the cuckoo placer
// treats as statistically independent hash functions. The same Hasher must
// be used by a Writer and every Reader that opens its output file; the file
// format carries no record of which one was used (see the "fingerprint
// identity" note in DESIGN.md).
type Hasher interface {
	fingerprint(key []byte) (h1, h2 uint32)
}

// siphashKey is fixed, not random: the 8-byte header has no room to persist
// a per-file key, so the default Hasher's key is compiled in instead. This
// makes every default-configured Writer and Reader compatible with each
// other without any out-of-band coordination.
var siphashKey0, siphashKey1 uint64 = 0x646e756f66656863, 0x2d766b632d6f672d

// SipHasher is the default Hasher, built on siphash-2-4.
type SipHasher struct{}

func (SipHasher) fingerprint(key []byte) (uint32, uint32) {
	h := siphash.Hash(siphashKey0, siphashKey1, key)
	return uint32(h), uint32(h >> 32)
}

// XXH3Hasher is an alternate Hasher built on xxh3. It is selectable via
// WithHasher for callers who want a different throughput/collision
// trade-off than SipHasher; a Writer and its Readers must agree on the
// choice.
type XXH3Hasher struct{}

func (XXH3Hasher) fingerprint(key []byte) (uint32, uint32) {
	h := xxh3.Hash(key)
	return uint32(h), uint32(h >> 32)
}

var (
	_ Hasher = SipHasher{}
	_ Hasher = XXH3Hasher{}
)
