package tui

import (
	"context"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pablasso/etp/internal/demo"
	"github.com/pablasso/etp/internal/errors"
)

// startDemo serves a simulated server on a loopback port until stop is
// called. It returns the server's base URL.
func startDemo(ctx context.Context, opts *DemoOptions) (string, func(), error) {
	srv := demo.NewServer(demo.Config{Scenario: opts.Scenario, Preset: opts.Preset})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	hs := &http.Server{Handler: srv, ReadHeaderTimeout: 5 * time.Second}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hs.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		_ = srv.Run(ctx)
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		return hs.Shutdown(shutdownCtx)
	})

	stop := func() {
		cancel()
		_ = g.Wait()
	}
	return "http://" + ln.Addr().String(), stop, nil
}
