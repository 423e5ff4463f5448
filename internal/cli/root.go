// Package cli is the bantay command line: sign in and out of either identity
// class, inspect and watch the stored session, and run the dev backend.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lborres/bantay/pkg/config"
	"github.com/lborres/bantay/pkg/log"
)

// env is what every subcommand gets after the root has loaded config.
type env struct {
	configPath string
	logLevel   string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

// NewRootCmd builds the command tree. Each call returns a fresh tree so tests
// can run commands in isolation.
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "bantay",
		Short: "Dual-identity session manager",
		Long: `bantay keeps a community or system session alive against an auth backend.

Sessions are stored locally, validated against the backend on start and
signed out automatically once they expire.

Examples:
  bantay login
  bantay login --system --username admin
  bantay status
  bantay watch
  bantay devserver`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.logCloser != nil {
				return e.logCloser.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&e.configPath, "config", "", "config file (default is $BANTAY_HOME/config.toml)")
	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginCmd(e),
		newLogoutCmd(e),
		newRegisterCmd(e),
		newStatusCmd(e),
		newWatchCmd(e),
		newDevServerCmd(e),
	)
	return root
}

func (e *env) load() error {
	path := e.configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if e.logLevel != "" {
		cfg.Log.Level = e.logLevel
	}

	e.cfg = cfg
	e.logger, e.logCloser = log.New(cfg.Log)
	return nil
}
