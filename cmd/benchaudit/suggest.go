package main

import (
	"cmp"
	"slices"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// maxSuggestions caps the "did you mean" list for an unknown --id.
const maxSuggestions = 3

// levenshtein returns the rune edit distance between a and b, keeping a
// single row of the distance matrix.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i, ca := range ra {
		diag := row[0]
		row[0] = i + 1
		for j, cb := range rb {
			above := row[j+1]
			cost := 1
			if ca == cb {
				cost = 0
			}
			row[j+1] = min(row[j]+1, above+1, diag+cost)
			diag = above
		}
	}
	return row[len(rb)]
}

// suggestIDs returns the task IDs nearest to input, closest first. A
// candidate must be within a third of the input's length (at least 1).
func suggestIDs(input string, tasks []*types.AuditTask) []string {
	type match struct {
		id   string
		dist int
	}

	limit := max(len(input)/3, 1)
	var matches []match
	for _, t := range tasks {
		if d := levenshtein(input, t.ID); d > 0 && d <= limit {
			matches = append(matches, match{t.ID, d})
		}
	}

	slices.SortFunc(matches, func(x, y match) int {
		return cmp.Or(cmp.Compare(x.dist, y.dist), cmp.Compare(x.id, y.id))
	})

	ids := make([]string, 0, maxSuggestions)
	for _, m := range matches[:min(len(matches), maxSuggestions)] {
		ids = append(ids, m.id)
	}
	return ids
}
