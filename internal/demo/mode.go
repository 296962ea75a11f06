package demo

import (
	"fmt"
	"strings"
)

// Mode controls which TUI surface demo mode starts on.
type Mode string

const (
	// ModeList opens the information package list.
	ModeList Mode = "list"
	// ModeStatus opens the status tree of the demo's watched IP.
	ModeStatus Mode = "status"
)

// ParseMode validates and normalizes a demo mode value.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeList, ModeStatus:
		return Mode(strings.ToLower(strings.TrimSpace(value))), nil
	default:
		return "", fmt.Errorf("invalid demo mode %q (valid: list, status)", value)
	}
}
