package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pablasso/etp/internal/demo"
	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/etp"
)

func TestIPList_Table(t *testing.T) {
	env := newCLIEnv(t, demo.DefaultConfig())

	out := env.mustRun("ip", "list")

	for _, want := range []string{"Annual report 2016", "OBJ-1000", "page 1 of 2 (14 total)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestIPList_JSONSecondPage(t *testing.T) {
	env := newCLIEnv(t, demo.DefaultConfig())

	out := env.mustRun("ip", "list", "--page", "2", "-o", "json")

	var ips []etp.InformationPackage
	if err := json.Unmarshal([]byte(out), &ips); err != nil {
		t.Fatalf("failed to decode output: %v\n%s", err, out)
	}
	if len(ips) != 4 {
		t.Errorf("expected 4 IPs on page 2, got %d", len(ips))
	}
}

func TestIPList_UnknownFormat(t *testing.T) {
	env := newCLIEnv(t, demo.DefaultConfig())

	if _, err := env.run("ip", "list", "-o", "xml"); err == nil {
		t.Error("expected error for unknown output format")
	}
}

func TestIPShow_YAML(t *testing.T) {
	env := newCLIEnv(t, demo.DefaultConfig())

	out := env.mustRun("ip", "show", "ip-001", "-o", "yaml")

	if !strings.Contains(out, "label: Annual report 2016") {
		t.Errorf("expected yaml label, got:\n%s", out)
	}
}

func TestIPShow_NotFound(t *testing.T) {
	env := newCLIEnv(t, demo.DefaultConfig())

	if _, err := env.run("ip", "show", "missing"); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestIPActions(t *testing.T) {
	env := newCLIEnv(t, demo.DefaultConfig())

	out := env.mustRun("ip", "set-uploaded", "ip-002")
	if !strings.Contains(out, "set-uploaded ip-002") {
		t.Errorf("expected confirmation, got %q", out)
	}

	var ip etp.InformationPackage
	if err := json.Unmarshal([]byte(env.mustRun("ip", "show", "ip-002", "-o", "json")), &ip); err != nil {
		t.Fatalf("failed to decode output: %v", err)
	}
	if ip.State != "Uploaded" {
		t.Errorf("expected state Uploaded, got %q", ip.State)
	}

	env.mustRun("ip", "create", "ip-002", "--validator", "validate_xml=true", "--file-conversion")
	env.mustRun("ip", "submit", "ip-002", "--subject", "Delivery", "--body", "Attached")
	env.mustRun("ip", "remove", "ip-002")
	if _, err := env.run("ip", "show", "ip-002"); !errors.IsNotFound(err) {
		t.Errorf("expected removed IP to be gone, got %v", err)
	}
}

func TestIPActions_Conflict(t *testing.T) {
	env := newCLIEnv(t, demo.DefaultConfig())

	if _, err := env.run("ip", "submit", "ip-002"); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("expected conflict submitting a prepared IP, got %v", err)
	}
}

func TestParseValidators(t *testing.T) {
	got, err := parseValidators([]string{"validate_xml=true", "validate_checksums=false"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got["validate_xml"] || got["validate_checksums"] {
		t.Errorf("unexpected validators: %v", got)
	}

	for _, bad := range []string{"validate_xml", "=true", "validate_xml=maybe"} {
		if _, err := parseValidators([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
