package tui

import "github.com/pablasso/etp/internal/demo"

// Options configures TUI startup behavior.
type Options struct {
	// ConfigFile overrides the config.yaml search.
	ConfigFile string
	Demo       *DemoOptions
}

// DemoOptions configure demo mode when starting the TUI.
type DemoOptions struct {
	Mode     demo.Mode
	Preset   demo.Preset
	Scenario demo.Scenario
}
