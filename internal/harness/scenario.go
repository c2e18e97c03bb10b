package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/typekey/internal/config"
	"github.com/roach88/typekey/internal/keyerr"
)

// Scenario defines a serialization conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config selects naming, encoding and known types. Empty fields take
	// config.Default values; storage is ignored.
	Config config.Config `yaml:"config"`

	// Steps run in order against one serializer.
	Steps []Step `yaml:"steps"`
}

// Step either encodes a key from parts or decodes a wire string. Exactly
// one of Encode and Decode is set.
type Step struct {
	Encode []Part  `yaml:"encode,omitempty"`
	Decode *string `yaml:"decode,omitempty"`
	Expect Expect  `yaml:"expect"`
}

// Part is one key part. Type is a descriptor string resolved against the
// scenario's types.
type Part struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

// Expect specifies a step's expected outcome. Unset fields are not checked.
type Expect struct {
	// Wire is the expected serialized form (encode steps).
	Wire string `yaml:"wire,omitempty"`

	// Display is the expected Key.String rendering.
	Display string `yaml:"display,omitempty"`

	// Error is the expected keyerr kind. A step expecting an error passes
	// only if it fails with that kind.
	Error keyerr.Kind `yaml:"error,omitempty"`
}

var validKinds = []keyerr.Kind{
	keyerr.MalformedDescriptor,
	keyerr.UnresolvedModule,
	keyerr.UnresolvedType,
	keyerr.UnmappedType,
	keyerr.MalformedWireFormat,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "step:" vs "steps:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.Config.ApplyDefaults()

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for i, step := range s.Steps {
		hasEncode, hasDecode := len(step.Encode) > 0, step.Decode != nil
		if hasEncode == hasDecode {
			return fmt.Errorf("steps[%d]: exactly one of encode and decode is required", i)
		}
		if e := step.Expect.Error; e != "" && !isValidKind(e) {
			return fmt.Errorf("steps[%d]: unknown error kind %q", i, e)
		}
		if step.Expect.Error != "" && (step.Expect.Wire != "" || step.Expect.Display != "") {
			return fmt.Errorf("steps[%d]: expect.error excludes wire and display", i)
		}
	}
	return nil
}

func isValidKind(k keyerr.Kind) bool {
	for _, v := range validKinds {
		if v == k {
			return true
		}
	}
	return false
}
