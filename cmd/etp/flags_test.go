package main

import (
	"strings"
	"testing"

	"github.com/pablasso/etp/internal/demo"
	"github.com/pablasso/etp/internal/errors"
)

func TestParseArgs_NoArgs(t *testing.T) {
	res, err := parseArgs(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.ShowHelp {
		t.Fatalf("expected ShowHelp=false")
	}
	if res.ShowVersion {
		t.Fatalf("expected ShowVersion=false")
	}
	if res.Options.Demo != nil {
		t.Fatalf("expected demo disabled")
	}
}

func TestParseArgs_ConfigFile(t *testing.T) {
	res, err := parseArgs([]string{"--config", "/tmp/etp.yaml"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Options.ConfigFile != "/tmp/etp.yaml" {
		t.Fatalf("expected config file, got %q", res.Options.ConfigFile)
	}
}

func TestParseArgs_DemoDefaults(t *testing.T) {
	res, err := parseArgs([]string{"--demo"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Options.Demo == nil {
		t.Fatalf("expected demo enabled")
	}
	if res.Options.Demo.Preset != demo.PresetMedium {
		t.Fatalf("expected preset %q, got %q", demo.PresetMedium, res.Options.Demo.Preset)
	}
	if res.Options.Demo.Mode != demo.ModeList {
		t.Fatalf("expected mode %q, got %q", demo.ModeList, res.Options.Demo.Mode)
	}
	if res.Options.Demo.Scenario != demo.ScenarioSuccess {
		t.Fatalf("expected scenario %q, got %q", demo.ScenarioSuccess, res.Options.Demo.Scenario)
	}
}

func TestParseArgs_DemoWithPresetAndScenario(t *testing.T) {
	res, err := parseArgs([]string{"--demo", "--demo-preset=quick", "--demo-scenario=vanish", "--demo-mode=status"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Options.Demo == nil {
		t.Fatalf("expected demo enabled")
	}
	if res.Options.Demo.Preset != demo.PresetQuick {
		t.Fatalf("expected preset %q, got %q", demo.PresetQuick, res.Options.Demo.Preset)
	}
	if res.Options.Demo.Scenario != demo.ScenarioVanish {
		t.Fatalf("expected scenario %q, got %q", demo.ScenarioVanish, res.Options.Demo.Scenario)
	}
	if res.Options.Demo.Mode != demo.ModeStatus {
		t.Fatalf("expected mode %q, got %q", demo.ModeStatus, res.Options.Demo.Mode)
	}
}

func TestParseArgs_DemoFlagsWithoutDemoErrors(t *testing.T) {
	for _, arg := range []string{"--demo-preset=quick", "--demo-mode=status", "--demo-scenario=fail"} {
		_, err := parseArgs([]string{arg})
		if err == nil {
			t.Fatalf("expected error for %s", arg)
		}
		if !strings.Contains(err.Error(), "require --demo") {
			t.Fatalf("expected error to mention require --demo, got: %s", err.Error())
		}
	}
}

func TestParseArgs_InvalidPresetErrors(t *testing.T) {
	_, err := parseArgs([]string{"--demo", "--demo-preset=nope"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "invalid demo preset") {
		t.Fatalf("expected invalid preset error, got: %s", err.Error())
	}
}

func TestParseArgs_InvalidModeErrors(t *testing.T) {
	_, err := parseArgs([]string{"--demo", "--demo-mode=nope"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "invalid demo mode") {
		t.Fatalf("expected invalid mode error, got: %s", err.Error())
	}
}

func TestParseArgs_InvalidScenarioErrors(t *testing.T) {
	_, err := parseArgs([]string{"--demo", "--demo-scenario=nope"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "invalid demo scenario") {
		t.Fatalf("expected invalid scenario error, got: %s", err.Error())
	}
}

func TestParseArgs_CommandsGoToCLI(t *testing.T) {
	tests := [][]string{
		{"ip", "list"},
		{"--config", "etp.yaml", "status", "ip-001"},
		{"--server", "http://etp.local", "ip", "list"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			if _, err := parseArgs(args); !errors.Is(err, errUseCLI) {
				t.Fatalf("expected errUseCLI, got %v", err)
			}
		})
	}
}

func TestParseArgs_VersionLong(t *testing.T) {
	res, err := parseArgs([]string{"--version"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.ShowVersion {
		t.Fatalf("expected ShowVersion=true")
	}
	if res.ShowHelp {
		t.Fatalf("expected ShowHelp=false")
	}
}

func TestParseArgs_VersionShort(t *testing.T) {
	res, err := parseArgs([]string{"-v"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.ShowVersion {
		t.Fatalf("expected ShowVersion=true")
	}
}

func TestParseArgs_Help(t *testing.T) {
	res, err := parseArgs([]string{"--help"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !res.ShowHelp {
		t.Fatalf("expected ShowHelp=true")
	}
	if !strings.Contains(res.HelpText, "etp is a terminal client for ESSArch Tools for Producer.") {
		t.Fatalf("expected help text to include summary line, got: %s", res.HelpText)
	}
	if !strings.Contains(res.HelpText, "-demo") {
		t.Fatalf("expected help text to include demo flags, got: %s", res.HelpText)
	}
	if !strings.Contains(res.HelpText, "-version") {
		t.Fatalf("expected help text to include version flags, got: %s", res.HelpText)
	}
}
