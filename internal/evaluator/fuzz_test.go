package evaluator

import (
	"strings"
	"testing"

	"github.com/ancients-collective/benchaudit/internal/types"
)

// FuzzParseExpected exercises expected_value parsing with random inputs to
// ensure conditions are always trimmed and the mode matches the delimiter.
func FuzzParseExpected(f *testing.F) {
	f.Add("")
	f.Add("yes")
	f.Add("a;;b")
	f.Add("a||b")
	f.Add("a||b;;c")
	f.Add(";;")
	f.Add("||||")
	f.Add(" \t\n ")
	f.Add("\x00;;\x00")

	f.Fuzz(func(t *testing.T, value string) {
		e := ParseExpected(value)
		for _, c := range e.Conditions {
			if c != strings.TrimSpace(c) {
				t.Errorf("ParseExpected(%q) kept untrimmed condition %q", value, c)
			}
		}
		switch {
		case strings.Contains(value, AndDelimiter):
			if e.Mode != ModeAnd {
				t.Errorf("ParseExpected(%q).Mode = %s, want %s", value, e.Mode, ModeAnd)
			}
		case strings.Contains(value, OrDelimiter):
			if e.Mode != ModeOr {
				t.Errorf("ParseExpected(%q).Mode = %s, want %s", value, e.Mode, ModeOr)
			}
		default:
			if e.Mode != ModeSingle || len(e.Conditions) > 1 {
				t.Errorf("ParseExpected(%q) = %+v, want at most one SINGLE condition", value, e)
			}
		}
	})
}

// FuzzSimple runs every built-in algorithm over random evidence and checks
// the classification is always one of the three statuses.
func FuzzSimple(f *testing.F) {
	f.Add("root\n", "", 0, "root")
	f.Add("", "sh: 1: x: not found", 127, "x")
	f.Add("a b c", "warn", 1, "a;;c")
	f.Add("\x00", "", -1, "||")

	e := New(nil)
	names := e.Algorithms().Names()

	f.Fuzz(func(t *testing.T, stdout, stderr string, code int, expected string) {
		ev := types.NewCommandEvidence(stdout, stderr, code)
		for _, name := range names {
			node := e.Simple(Check{Title: "fuzz", Algorithm: name, ExpectedValue: expected, Evidence: ev})
			switch node.Status {
			case types.StatusPass, types.StatusFail, types.StatusError:
			default:
				t.Fatalf("algorithm %s produced status %q", name, node.Status)
			}
			if code == types.ExitCommandNotFound && node.Status != types.StatusError {
				t.Errorf("algorithm %s: exit 127 classified %s, want ERROR", name, node.Status)
			}
		}
	})
}
