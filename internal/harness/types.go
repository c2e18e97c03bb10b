package harness

import "github.com/roach88/typekey/internal/keyerr"

// StepResult records what one step produced.
type StepResult struct {
	// Index is the step's position in the scenario.
	Index int `json:"index"`

	// Op is "encode" or "decode".
	Op string `json:"op"`

	// Wire is the serialized form: the encode output, or the decode input.
	Wire string `json:"wire,omitempty"`

	// Display is the Key.String rendering of the key, when there is one.
	Display string `json:"display,omitempty"`

	// Error is the keyerr kind of the step's failure, if it failed with one.
	Error keyerr.Kind `json:"error,omitempty"`

	err error
}

// Result is the outcome of running a scenario.
type Result struct {
	Scenario string
	Steps    []StepResult

	// Pass is true when every step met its expectation.
	Pass bool

	// Errors holds one AssertionError per unmet expectation.
	Errors []error
}
