// linearprobe.go -- legacy linear-probe placement for the index table
//
// Simpler than cuckoo placement and never fails construction, at the cost
// of longer worst-case probe chains. Kept alongside the cuckoo placer so a
// Writer can opt into it via WithPlacement(LinearProbe).
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package ckv

// linearEntry is the minimal view the legacy placer needs: a single hash,
// not a pair.
type linearEntry struct {
	h uint32
}

// placeLinear assigns every entry to the first empty cell found by probing
// (h mod cap), (h+1 mod cap), (h+2 mod cap), ... It never fails, provided
// cap > len(entries).
func placeLinear(entries []linearEntry, cap int) []int {
	table := make([]int, cap)
	for i := range table {
		table[i] = -1
	}

	for i := range entries {
		slot := int(entries[i].h) % cap
		for table[slot] != -1 {
			slot = (slot + 1) % cap
		}
		table[slot] = i
	}

	return table
}
