package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pablasso/etp/internal/demo"
	"github.com/pablasso/etp/internal/errors"
)

const shutdownTimeout = 5 * time.Second

func newDemoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a simulated ETP server",
	}
	cmd.AddCommand(newDemoServeCmd(a))
	return cmd
}

func newDemoServeCmd(a *app) *cobra.Command {
	var (
		addr     string
		scenario string
		preset   string
		user     string
		password string
		quiet    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulated ETP API",
		Long: `Serve a simulated ETP API with seeded information packages. The
information package ` + demo.WatchedIP + ` runs a workflow that advances on every tick.

Scenarios:
  success  Every task succeeds (default)
  flaky    Some requests fail with a server error
  fail     One task ends in FAILURE
  vanish   The watched information package disappears

Presets:
  quick    500ms per tick
  medium   2s per tick (default)
  slow     5s per tick`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := demo.ParseScenario(scenario)
			if err != nil {
				return err
			}
			pr, err := demo.ParsePreset(preset)
			if err != nil {
				return err
			}
			var opts []demo.ServerOption
			if !quiet {
				opts = append(opts, demo.WithRequestLogging())
			}
			srv := demo.NewServer(demo.Config{Scenario: sc, Preset: pr, Username: user, Password: password}, opts...)

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", addr, err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a.logger.WithComponent("demo").Info("demo server started", "addr", ln.Addr().String(), "scenario", string(sc), "preset", string(pr))
			fmt.Fprintln(cmd.OutOrStdout(), successMsg("serving %s scenario on http://%s", sc, ln.Addr()))
			return serveDemo(ctx, srv, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().StringVar(&scenario, "scenario", string(demo.ScenarioSuccess), "scenario: success, flaky, fail, vanish")
	cmd.Flags().StringVar(&preset, "preset", string(demo.PresetMedium), "tick speed: quick, medium, slow")
	cmd.Flags().StringVar(&user, "user", "", "require basic auth with this username")
	cmd.Flags().StringVar(&password, "password", "", "password for --user")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "do not log requests")
	return cmd
}

// serveDemo serves srv on ln and ticks its workflow until ctx is cancelled.
func serveDemo(ctx context.Context, srv *demo.Server, ln net.Listener) error {
	hs := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := srv.Run(gctx)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := hs.Shutdown(shutdownCtx); serr != nil {
			return serr
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
