package evaluator

import (
	"sort"
	"strings"
	"sync"
)

// Input is what an algorithm sees for one check.
type Input struct {
	// Stdout is the trimmed command output.
	Stdout string

	// ExitCode is the captured exit status.
	ExitCode int

	// ExpectedExitCode comes from the success_code parameter (default 0).
	// The built-in algorithms do not consult it.
	ExpectedExitCode int

	Expected Expected
}

// Algorithm decides whether evidence meets the expectation.
type Algorithm func(in Input) bool

// Built-in algorithm names. Lookups are exact and case-sensitive.
const (
	AlgExact          = "Exact"
	AlgContain        = "Contain"
	AlgDoesNotContain = "Does Not Contain"
	AlgNull           = "Null"
	AlgNotNull        = "Not Null"
)

// Algorithms is a name-keyed set of comparison algorithms.
type Algorithms struct {
	mu    sync.RWMutex
	algos map[string]Algorithm
}

// NewAlgorithms returns a set with every built-in algorithm registered.
func NewAlgorithms() *Algorithms {
	a := &Algorithms{algos: make(map[string]Algorithm)}
	a.algos[AlgExact] = exact
	a.algos[AlgContain] = contain
	a.algos[AlgDoesNotContain] = doesNotContain
	a.algos[AlgNull] = null
	a.algos[AlgNotNull] = notNull
	return a
}

// Register adds or replaces an algorithm.
func (a *Algorithms) Register(name string, fn Algorithm) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.algos[name] = fn
}

// Lookup returns the named algorithm.
func (a *Algorithms) Lookup(name string) (Algorithm, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fn, ok := a.algos[name]
	return fn, ok
}

// Names returns the registered algorithm names, sorted.
func (a *Algorithms) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.algos))
	for name := range a.algos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// exact matches any condition under every mode. AND does not require all
// conditions to be equal to the output.
func exact(in Input) bool {
	out := strings.ToLower(strings.TrimSpace(in.Stdout))
	for _, c := range in.Expected.Conditions {
		if strings.ToLower(c) == out {
			return true
		}
	}
	return false
}

func contain(in Input) bool {
	out := normalize(in.Stdout)
	if in.Expected.Mode == ModeOr {
		for _, c := range in.Expected.Conditions {
			if strings.Contains(out, normalize(c)) {
				return true
			}
		}
		return false
	}
	for _, c := range in.Expected.Conditions {
		if !strings.Contains(out, normalize(c)) {
			return false
		}
	}
	return true
}

// doesNotContain passes only when no condition is present, for AND and OR alike.
func doesNotContain(in Input) bool {
	out := normalize(in.Stdout)
	for _, c := range in.Expected.Conditions {
		if strings.Contains(out, normalize(c)) {
			return false
		}
	}
	return true
}

func null(in Input) bool {
	return strings.TrimSpace(in.Stdout) == ""
}

func notNull(in Input) bool {
	return strings.TrimSpace(in.Stdout) != ""
}

// normalize lower-cases s and collapses whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
