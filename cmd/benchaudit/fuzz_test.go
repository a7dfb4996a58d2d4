package main

import (
	"testing"
	"unicode/utf8"
)

// FuzzLevenshtein checks the edit distance is symmetric and bounded by the
// longer input.
func FuzzLevenshtein(f *testing.F) {
	f.Add("1.1.1", "1.1.2")
	f.Add("", "")
	f.Add("abc", "")
	f.Add("", "xyz")
	f.Add("5.2.10", "5.2.1")
	f.Add("kitten", "sitting")
	f.Add("ä.1", "a.1")

	f.Fuzz(func(t *testing.T, a, b string) {
		d := levenshtein(a, b)
		if bound := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b)); d < 0 || d > bound {
			t.Errorf("levenshtein(%q, %q) = %d, want within [0, %d]", a, b, d, bound)
		}
		if d2 := levenshtein(b, a); d != d2 {
			t.Errorf("levenshtein(%q, %q) = %d but levenshtein(%q, %q) = %d", a, b, d, b, a, d2)
		}
		if a == b && d != 0 {
			t.Errorf("levenshtein(%q, %q) = %d, want 0", a, b, d)
		}
	})
}
