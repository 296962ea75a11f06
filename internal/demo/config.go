package demo

import (
	"fmt"
	"strings"
	"time"
)

// Preset controls how fast the simulated workflow advances.
type Preset string

const (
	PresetQuick  Preset = "quick"
	PresetMedium Preset = "medium"
	PresetSlow   Preset = "slow"
)

func ParsePreset(value string) (Preset, error) {
	switch Preset(strings.ToLower(strings.TrimSpace(value))) {
	case PresetQuick, PresetMedium, PresetSlow:
		return Preset(strings.ToLower(strings.TrimSpace(value))), nil
	default:
		return "", fmt.Errorf("invalid demo preset %q (valid: quick, medium, slow)", value)
	}
}

// TickInterval returns how often the workflow advances for the preset.
func TickInterval(preset Preset) (time.Duration, error) {
	switch preset {
	case PresetQuick:
		return 500 * time.Millisecond, nil
	case PresetMedium:
		return 2 * time.Second, nil
	case PresetSlow:
		return 5 * time.Second, nil
	default:
		return 0, fmt.Errorf("unknown demo preset %q", preset)
	}
}

// Config controls a simulated server.
type Config struct {
	Scenario Scenario
	Preset   Preset
	// Username and Password, when set, are required as basic auth.
	Username string
	Password string
	// SkipAgreements starts without submission agreements and profiles,
	// as a fresh import target.
	SkipAgreements bool
	// Clock overrides time.Now for timestamps.
	Clock func() time.Time
}

// DefaultConfig is a successful workflow at medium pace.
func DefaultConfig() Config {
	return Config{Scenario: ScenarioSuccess, Preset: PresetMedium}
}

func (c Config) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}
