// cuckoo.go -- cuckoo-hash placement for the index table
//
// Ported from the displacement-chain idea in go-chd's Freeze() (bucket
// eviction via repeated seed search), generalized here to the two-slot
// cuckoo-eviction scheme this package's index actually uses: every key has
// exactly two candidate slots (h1, h2) instead of a bucket of seeds.
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package ckv

import "fmt"

// maxCuckooAttempts bounds the eviction chain for a single insertion before
// Placement failure gives up on the current capacity.
const maxCuckooAttempts = 50

// cuckooEntry is the minimal view the placer needs of a log entry: its two
// candidate slots, already reduced mod the table capacity is NOT assumed --
// h1/h2 are the raw fingerprint halves, reduced per-capacity by the placer.
type cuckooEntry struct {
	h1, h2 uint32
}

// placeCuckoo assigns each entry in input to exactly one of its two
// candidate slots (entries[i].h1 mod cap or entries[i].h2 mod cap) in a
// table of length cap. It returns the resulting table, where a cell holds
// the index into input of its occupant, or -1 if empty.
//
// The algorithm is modeled as an iterative (cur, loc) state machine rather
// than recursion, per the design note that the eviction chain is just a
// counter and two integers: which entry is currently being placed, and
// which slot it is about to be written to.
func placeCuckoo(entries []cuckooEntry, cap int) ([]int, error) {
	table := make([]int, cap)
	for i := range table {
		table[i] = -1
	}

	slot := func(h uint32) int {
		return int(h) % cap
	}

	for i := range entries {
		l1 := slot(entries[i].h1)
		if table[l1] == -1 {
			table[l1] = i
			continue
		}

		cur := i
		loc := slot(entries[cur].h2)
		placed := false
		for attempt := 0; attempt <= maxCuckooAttempts; attempt++ {
			prev := table[loc]
			table[loc] = cur
			if prev == -1 {
				placed = true
				break
			}

			cur = prev
			p1 := slot(entries[prev].h1)
			if p1 != loc {
				loc = p1
			} else {
				loc = slot(entries[prev].h2)
			}
		}
		if !placed {
			return nil, fmt.Errorf("%w: could not place entry %d at capacity %d", ErrPlacementFailed, i, cap)
		}
	}

	return table, nil
}

// tryPlaceCuckoo retries placeCuckoo across a sequence of candidate
// capacities, returning the first table that succeeds. caps must be
// non-empty. If every capacity fails, the last attempt's error is wrapped
// and returned.
func tryPlaceCuckoo(entries []cuckooEntry, caps []int) ([]int, int, error) {
	var lastErr error
	for _, c := range caps {
		table, err := placeCuckoo(entries, c)
		if err == nil {
			return table, c, nil
		}
		lastErr = err
	}
	return nil, 0, fmt.Errorf("%w: exhausted all candidate capacities: %v", ErrPlacementFailed, lastErr)
}

// clampStartMultiple enforces the load-factor floor documented on
// WithLoadFactor: multiples below 2 are raised to 2, matching the spec's
// cap >= 2n requirement (spec.md §4.2.1).
func clampStartMultiple(startMultiple int) int {
	if startMultiple < 2 {
		return 2
	}
	return startMultiple
}

// defaultCapacities returns the spec's fixed {2n, 3n, 4n, 5n} retry
// sequence, starting from startMultiple instead of 2 when the caller
// requested a higher initial load factor via WithLoadFactor. A
// startMultiple above 5 still yields at least one capacity (startMultiple*n
// itself) rather than an empty retry sequence -- a higher load factor is
// meant to trade space for fewer retries, not make placement impossible.
func defaultCapacities(n, startMultiple int) []int {
	startMultiple = clampStartMultiple(startMultiple)

	top := 5
	if startMultiple > top {
		top = startMultiple
	}

	caps := make([]int, 0, top-startMultiple+1)
	for m := startMultiple; m <= top; m++ {
		caps = append(caps, m*n)
	}
	return caps
}
