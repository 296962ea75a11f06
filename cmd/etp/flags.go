package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/pablasso/etp/internal/demo"
	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/tui"
)

// errUseCLI means the arguments are for the command-line interface rather
// than the terminal UI.
var errUseCLI = errors.New("arguments are for the command-line interface")

type parseResult struct {
	Options     tui.Options
	ShowHelp    bool
	ShowVersion bool
	HelpText    string
}

func parseArgs(args []string) (parseResult, error) {
	fs := flag.NewFlagSet("etp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configFile := fs.String("config", "", "Config file (default $XDG_CONFIG_HOME/etp/config.yaml)")
	demoEnabled := fs.Bool("demo", false, "Start against a simulated in-process ETP server")
	demoMode := fs.String("demo-mode", string(demo.ModeList), "Demo mode: list|status")
	demoPreset := fs.String("demo-preset", string(demo.PresetMedium), "Demo preset: quick|medium|slow")
	demoScenario := fs.String("demo-scenario", string(demo.ScenarioSuccess), "Demo scenario: success|flaky|fail|vanish")
	showVersion := fs.Bool("version", false, "Show version information")
	showVersionShort := fs.Bool("v", false, "Show version information")

	usage := func() string {
		var b strings.Builder
		fmt.Fprintln(&b, "Usage: etp [flags]")
		fmt.Fprintln(&b, "       etp <command> [flags]")
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, "etp is a terminal client for ESSArch Tools for Producer.")
		fmt.Fprintln(&b, "Without a command it opens the terminal UI; run `etp help` for the commands.")
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, "Flags:")
		fs.SetOutput(&b)
		fs.PrintDefaults()
		fs.SetOutput(io.Discard)
		return b.String()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return parseResult{ShowHelp: true, HelpText: usage()}, nil
		}
		if strings.HasPrefix(err.Error(), "flag provided but not defined") {
			return parseResult{}, errUseCLI
		}
		return parseResult{}, fmt.Errorf("%v\n\n%s", err, usage())
	}

	if fs.NArg() > 0 {
		return parseResult{}, errUseCLI
	}

	if *showVersion || *showVersionShort {
		return parseResult{ShowVersion: true}, nil
	}

	var presetProvided bool
	var scenarioProvided bool
	var modeProvided bool
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "demo-mode":
			modeProvided = true
		case "demo-preset":
			presetProvided = true
		case "demo-scenario":
			scenarioProvided = true
		}
	})

	if !*demoEnabled && (modeProvided || presetProvided || scenarioProvided) {
		return parseResult{}, fmt.Errorf("--demo-mode/--demo-preset/--demo-scenario require --demo\n\n%s", usage())
	}

	if !*demoEnabled {
		return parseResult{Options: tui.Options{ConfigFile: *configFile}}, nil
	}

	mode, err := demo.ParseMode(*demoMode)
	if err != nil {
		return parseResult{}, fmt.Errorf("%v\n\n%s", err, usage())
	}

	preset, err := demo.ParsePreset(*demoPreset)
	if err != nil {
		return parseResult{}, fmt.Errorf("%v\n\n%s", err, usage())
	}

	scenario, err := demo.ParseScenario(*demoScenario)
	if err != nil {
		return parseResult{}, fmt.Errorf("%v\n\n%s", err, usage())
	}

	return parseResult{
		Options: tui.Options{
			ConfigFile: *configFile,
			Demo: &tui.DemoOptions{
				Mode:     mode,
				Preset:   preset,
				Scenario: scenario,
			},
		},
	}, nil
}
