// Package evaluator classifies raw check evidence as PASS, FAIL, or ERROR.
package evaluator

import "strings"

// Condition delimiters recognized in expected values.
const (
	AndDelimiter = ";;"
	OrDelimiter  = "||"
)

// Mode is how a list of conditions is combined.
type Mode string

const (
	ModeSingle Mode = "SINGLE"
	ModeAnd    Mode = "AND"
	ModeOr     Mode = "OR"
)

// Expected is a parsed expected_value.
type Expected struct {
	Conditions []string
	Mode       Mode
}

// ParseExpected splits an expected_value into conditions. The AND delimiter
// is checked first; the first delimiter found wins and delimiters inside
// conditions cannot be escaped. An empty or blank value yields no conditions.
func ParseExpected(value string) Expected {
	switch {
	case strings.Contains(value, AndDelimiter):
		return Expected{Conditions: splitTrim(value, AndDelimiter), Mode: ModeAnd}
	case strings.Contains(value, OrDelimiter):
		return Expected{Conditions: splitTrim(value, OrDelimiter), Mode: ModeOr}
	}

	v := strings.TrimSpace(value)
	if v == "" {
		return Expected{Mode: ModeSingle}
	}
	return Expected{Conditions: []string{v}, Mode: ModeSingle}
}

// splitTrim keeps empty parts, so "a;;" has two conditions.
func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
