package demo

import (
	"fmt"
	"strings"
)

// Scenario controls how the simulated workflow behaves.
type Scenario string

const (
	// ScenarioSuccess runs every task to SUCCESS.
	ScenarioSuccess Scenario = "success"
	// ScenarioFlaky answers some tree requests with a 500.
	ScenarioFlaky Scenario = "flaky"
	// ScenarioFail fails one task and halts the workflow until it is retried.
	ScenarioFail Scenario = "fail"
	// ScenarioVanish deletes the watched IP after a few ticks.
	ScenarioVanish Scenario = "vanish"
)

func ParseScenario(value string) (Scenario, error) {
	switch Scenario(strings.ToLower(strings.TrimSpace(value))) {
	case ScenarioSuccess, ScenarioFlaky, ScenarioFail, ScenarioVanish:
		return Scenario(strings.ToLower(strings.TrimSpace(value))), nil
	default:
		return "", fmt.Errorf("invalid demo scenario %q (valid: success, flaky, fail, vanish)", value)
	}
}

const (
	// failTarget is the 1-based index of the leaf task that fails in ScenarioFail.
	failTarget = 3
	// flakyEvery makes every nth tree request fail in ScenarioFlaky.
	flakyEvery = 3
	// vanishAfter is the tick after which ScenarioVanish removes the IP.
	vanishAfter = 6
)
