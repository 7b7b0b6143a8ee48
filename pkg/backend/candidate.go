package backend

import "sort"

// Rank orders candidates for presentation: descending SortKey, with the
// preferred quality winning ties. The sort is stable, so candidates that tie
// on both keys keep their arrival order. The input slice is sorted in place
// and returned.
func Rank(cands []Candidate, preferredQuality string) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].SortKey != cands[j].SortKey {
			return cands[i].SortKey > cands[j].SortKey
		}
		iPref := preferredQuality != "" && cands[i].Quality == preferredQuality
		jPref := preferredQuality != "" && cands[j].Quality == preferredQuality
		return iPref && !jPref
	})
	return cands
}
