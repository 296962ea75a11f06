// Package testutil provides testing utilities for the etp project.
package testutil

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pablasso/etp/internal/demo"
	"github.com/pablasso/etp/internal/etp"
)

// DemoServer is a simulated ETP server mounted in httptest with a client
// pointed at it.
type DemoServer struct {
	Server *demo.Server
	HTTP   *httptest.Server
	Client *etp.Client
}

// URL returns the base URL of the running server.
func (d *DemoServer) URL() string {
	return d.HTTP.URL
}

// NewDemoServer starts a simulated server for cfg and registers cleanup.
func NewDemoServer(t *testing.T, cfg demo.Config, opts ...etp.Option) *DemoServer {
	t.Helper()

	srv := demo.NewServer(cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	if cfg.Username != "" {
		opts = append([]etp.Option{etp.WithBasicAuth(cfg.Username, cfg.Password)}, opts...)
	}
	client, err := etp.NewClient(ts.URL, opts...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return &DemoServer{Server: srv, HTTP: ts, Client: client}
}

// TickN advances the demo workflow n times.
func (d *DemoServer) TickN(n int) {
	for i := 0; i < n; i++ {
		d.Server.Tick()
	}
}

// WriteConfig writes a config.yaml with the given contents into dir and
// returns its path.
func WriteConfig(t *testing.T, dir, contents string) string {
	t.Helper()

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// SetupTestDir creates a temp directory, resolves symlinks (for macOS),
// changes to it, and registers cleanup to restore the original working directory.
// Returns the resolved temp directory path.
func SetupTestDir(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	// Resolve symlinks for macOS (/var -> /private/var)
	if resolved, err := filepath.EvalSymlinks(tmpDir); err != nil {
		t.Logf("warning: could not resolve symlinks for temp dir: %v", err)
	} else {
		tmpDir = resolved
	}

	originalWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change to temp dir: %v", err)
	}

	t.Cleanup(func() {
		os.Chdir(originalWd)
	})

	return tmpDir
}
