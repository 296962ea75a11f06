package etp

import (
	"fmt"

	"github.com/pablasso/etp/internal/config"
	"github.com/pablasso/etp/internal/logging"
)

// FromConfig creates a client for the configured server with the
// configured timeout, page size, child concurrency and credentials.
func FromConfig(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if err := cfg.RequireServer(); err != nil {
		return nil, err
	}
	opts := []Option{
		WithTimeout(cfg.Server.Timeout),
		WithPageSize(cfg.Server.PageSize),
		WithChildConcurrency(cfg.Monitor.ChildConcurrency),
		WithLogger(logger),
	}
	if cfg.Server.Username != "" {
		opts = append(opts, WithBasicAuth(cfg.Server.Username, cfg.Server.Password))
	}
	c, err := NewClient(cfg.Server.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}
