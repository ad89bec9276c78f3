// errors.go -- error kinds for go-ckv
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package ckv

import "errors"

var (
	// ErrNotFound is returned from Lookup when the key is absent. It is
	// never wrapped in a different error -- callers can compare with ==
	// or errors.Is.
	ErrNotFound = errors.New("ckv: key not found")

	// ErrFrozen is returned when Append or Finish is called on a Writer
	// that has already been finished.
	ErrFrozen = errors.New("ckv: writer already finished")

	// ErrPlacementFailed is returned from Finish when no candidate
	// capacity in {2n..5n} admits a valid cuckoo placement. The usual
	// cause is three or more keys that collide on both fingerprint
	// halves -- e.g. the same key appended three or more times.
	ErrPlacementFailed = errors.New("ckv: could not place all keys in the index table")

	// ErrTooLarge is returned from Append when the next record offset
	// would overflow a uint32.
	ErrTooLarge = errors.New("ckv: file too large for a 32-bit offset table")

	// ErrCorrupt is returned when a file's header, index table, or
	// optional integrity trailer is out of range or fails verification.
	ErrCorrupt = errors.New("ckv: corrupt or malformed file")

	// ErrValueTooLarge is returned if a value's length exceeds 2^32-1 bytes.
	ErrValueTooLarge = errors.New("ckv: value larger than 2^32-1 bytes")
)
