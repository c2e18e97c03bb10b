package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when a step misses its expectation.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Step     int    // Step index
	Field    string // "wire", "display" or "error"
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: step %d %s\n", e.Step, e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// checkExpect compares a step's result with its expectation. Steps that
// expect no error must not fail at all.
func checkExpect(sr StepResult, want Expect) error {
	if want.Error != "" {
		if sr.Error != want.Error {
			return &AssertionError{Step: sr.Index, Field: "error", Expected: string(want.Error), Actual: describeFailure(sr)}
		}
		return nil
	}
	if sr.err != nil {
		return &AssertionError{Step: sr.Index, Field: "error", Expected: "success", Actual: describeFailure(sr)}
	}
	if want.Wire != "" && sr.Wire != want.Wire {
		return &AssertionError{Step: sr.Index, Field: "wire", Expected: fmt.Sprintf("%q", want.Wire), Actual: fmt.Sprintf("%q", sr.Wire)}
	}
	if want.Display != "" && sr.Display != want.Display {
		return &AssertionError{Step: sr.Index, Field: "display", Expected: want.Display, Actual: sr.Display}
	}
	return nil
}

func describeFailure(sr StepResult) string {
	if sr.err == nil {
		return "success"
	}
	return sr.err.Error()
}
