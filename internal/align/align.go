// Package align pairs the items of an original document with the items of its fixed
// counterpart by prefix-drift matching.
//
// Matching is not a sequence diff. An original item at offset k1 is matched to the first
// unused fixed item at offset k1+drift, where drift is the sum of the length changes of all
// earlier changed items. Reordered, duplicated or split items are not recognized.
package align

import (
	"bytes"

	"rustdiag/internal/items"
)

// Pair is one changed item: its offset in the original document and both versions of it.
type Pair struct {
	Offset int    `json:"offset"`
	Before []byte `json:"-"`
	After  []byte `json:"-"`
}

// Drift returns the byte-length change introduced by the pair.
func (p Pair) Drift() int {
	return len(p.After) - len(p.Before)
}

// Result is the outcome of aligning one file.
type Result struct {
	Pairs     []Pair
	// Drift is the accumulated length change after the last accepted match.
	Drift     int
	// Unmatched lists original offsets that had no counterpart at the drifted offset.
	Unmatched []int
	// Unchanged counts matched items with identical content.
	Unchanged int
}

// Align walks both maps in ascending offset order and returns the pairs of matched items
// whose content differs. Pairs are ordered by original offset.
func Align(original, fixed items.Map) Result {
	var res Result

	fixedKeys := fixed.Keys()
	used := make([]bool, len(fixedKeys))

	for _, k1 := range original.Keys() {
		v1 := original[k1]
		target := k1 + res.Drift
		matched := false

		for j, k2 := range fixedKeys {
			if k2 > target {
				break
			}
			if used[j] || k2 != target {
				continue
			}
			used[j] = true
			matched = true

			v2 := fixed[k2]
			if bytes.Equal(v1.Content, v2.Content) {
				res.Unchanged++
			} else {
				p := Pair{Offset: k1, Before: v1.Content, After: v2.Content}
				res.Pairs = append(res.Pairs, p)
				res.Drift += p.Drift()
			}
			break
		}

		if !matched {
			res.Unmatched = append(res.Unmatched, k1)
		}
	}

	return res
}
