package harness

import (
	"fmt"
	"log/slog"

	"github.com/roach88/typekey/internal/config"
	"github.com/roach88/typekey/internal/keycodec"
	"github.com/roach88/typekey/internal/keyerr"
	"github.com/roach88/typekey/internal/keys"
)

// Run executes every step of scenario and checks its expectations.
//
// Returns an error only when the scenario's configuration cannot be built.
// Unmet expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	env, err := scenario.Config.Build()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := &Result{Scenario: scenario.Name, Pass: true}
	for i, step := range scenario.Steps {
		var sr StepResult
		if step.Decode != nil {
			sr = runDecode(env.Serializer, *step.Decode)
		} else {
			sr = runEncode(env, step.Encode)
		}
		sr.Index = i
		if err := checkExpect(sr, step.Expect); err != nil {
			result.Pass = false
			result.Errors = append(result.Errors, err)
		}
		result.Steps = append(result.Steps, sr)
	}

	slog.Debug("scenario complete", "scenario", scenario.Name, "steps", len(result.Steps), "pass", result.Pass)
	return result, nil
}

func runEncode(env *config.Env, parts []Part) StepResult {
	sr := StepResult{Op: "encode"}

	kp := make([]keys.Part, len(parts))
	for i, p := range parts {
		d, err := env.Codec.Decode(p.Type)
		if err != nil {
			return sr.fail(err)
		}
		kp[i] = keys.Part{Type: d, Value: p.Value}
	}
	k, err := keys.FromParts(kp...)
	if err != nil {
		return sr.fail(err)
	}
	sr.Display = k.String()

	if sr.Wire, err = env.Serializer.Serialize(k); err != nil {
		return sr.fail(err)
	}
	back, err := env.Serializer.Deserialize(sr.Wire)
	if err != nil {
		return sr.fail(fmt.Errorf("round trip: %w", err))
	}
	if !back.Equal(k) {
		return sr.fail(fmt.Errorf("round trip: decoded %s, want %s", back, k))
	}
	return sr
}

func runDecode(ser *keycodec.Serializer, wire string) StepResult {
	sr := StepResult{Op: "decode", Wire: wire}

	k, err := ser.Deserialize(wire)
	if err != nil {
		return sr.fail(err)
	}
	sr.Display = k.String()

	again, err := ser.Serialize(k)
	if err != nil {
		return sr.fail(fmt.Errorf("round trip: %w", err))
	}
	if again != wire {
		return sr.fail(fmt.Errorf("round trip: re-encoded %q", again))
	}
	return sr
}

func (sr StepResult) fail(err error) StepResult {
	sr.err = err
	sr.Error, _ = keyerr.KindOf(err)
	return sr
}
