package demo

import (
	"testing"
	"time"
)

func TestParseScenario(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Scenario
		wantErr bool
	}{
		{name: "success", in: "success", want: ScenarioSuccess},
		{name: "flaky", in: "flaky", want: ScenarioFlaky},
		{name: "fail", in: "fail", want: ScenarioFail},
		{name: "vanish", in: "vanish", want: ScenarioVanish},
		{name: "trim and lowercase", in: "  FAIL ", want: ScenarioFail},
		{name: "invalid", in: "chaos", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScenario(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScenario() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseScenario() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePreset(t *testing.T) {
	for _, in := range []string{"quick", "Medium", " slow "} {
		if _, err := ParsePreset(in); err != nil {
			t.Errorf("ParsePreset(%q) error = %v", in, err)
		}
	}
	if _, err := ParsePreset("warp"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		preset Preset
		want   time.Duration
	}{
		{PresetQuick, 500 * time.Millisecond},
		{PresetMedium, 2 * time.Second},
		{PresetSlow, 5 * time.Second},
	}
	for _, tt := range tests {
		got, err := TickInterval(tt.preset)
		if err != nil {
			t.Fatalf("TickInterval(%s) error = %v", tt.preset, err)
		}
		if got != tt.want {
			t.Errorf("TickInterval(%s) = %v, want %v", tt.preset, got, tt.want)
		}
	}
	if _, err := TickInterval("warp"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Mode
		wantErr bool
	}{
		{name: "list", in: "list", want: ModeList},
		{name: "status", in: "status", want: ModeStatus},
		{name: "trim and lowercase", in: "  STATUS  ", want: ModeStatus},
		{name: "invalid", in: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMode() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseMode() = %q, want %q", got, tt.want)
			}
		})
	}
}
