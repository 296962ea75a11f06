// Package cli implements the etp command tree.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pablasso/etp/internal/config"
	"github.com/pablasso/etp/internal/etp"
	"github.com/pablasso/etp/internal/history"
	"github.com/pablasso/etp/internal/logging"
	"github.com/pablasso/etp/internal/snapshot"
	"github.com/pablasso/etp/internal/version"
)

// app carries what every command shares: the loaded configuration and the
// logger. It is filled in by the root command's PersistentPreRunE.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *logging.Logger
}

// NewRootCmd builds the etp command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "etp",
		Short: "Terminal client for ESSArch Tools for Producer",
		Long: `etp lists information packages on an ETP server, shows and watches
their step and task status, and runs the actions of the ETP web client.

Run etp without arguments to open the terminal UI.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	cmd.SetVersionTemplate(version.String() + "\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/etp/config.yaml)")
	pf.String("server", "", "ETP server URL")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("state-dir", "", "directory for snapshots, history and logs")
	_ = a.v.BindPFlag("server.url", pf.Lookup("server"))
	_ = a.v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("state.dir", pf.Lookup("state-dir"))

	cmd.AddCommand(
		newIPCmd(a),
		newStatusCmd(a),
		newWatchCmd(a),
		newStepCmd(a),
		newEventsCmd(a),
		newHistoryCmd(a),
		newSACmd(a),
		newProfileCmd(a),
		newDemoCmd(a),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) load() error {
	if err := config.Init(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.LogDir(), cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) close() error {
	if a.logger == nil {
		return nil
	}
	return a.logger.Close()
}

// client returns a client for the configured server.
func (a *app) client() (*etp.Client, error) {
	return etp.FromConfig(a.cfg, a.logger)
}

func (a *app) snapshots() *snapshot.Store {
	return snapshot.NewStore(a.cfg.SnapshotDir())
}

func (a *app) history() (history.Recorder, error) {
	return history.New(a.cfg.History.Backend, a.cfg.HistoryDir())
}
