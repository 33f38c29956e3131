// Package cli builds the synapse command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/config"
	"github.com/AtharvaWandhare/synapse/internal/logger"
)

const app = "synapse"

// Actual version can be specified in build command.
var version = "dev"

type root struct {
	v       *viper.Viper
	cfgFile string
}

// Execute runs the command named by args.
func Execute(args []string) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

// NewRootCommand returns the full command tree.
func NewRootCommand() *cobra.Command {
	r := &root{v: config.New()}

	cmd := &cobra.Command{
		Use:           app,
		Short:         "synapse serves the job-matching swipe feed and match ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&r.cfgFile, "config", "", "a YAML config file (environment variables override it)")
	cmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	cmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	_ = r.v.BindPFlag("log.debug", cmd.PersistentFlags().Lookup("debug"))
	_ = r.v.BindPFlag("log.json", cmd.PersistentFlags().Lookup("json"))

	cmd.AddCommand(
		newServeCommand(r),
		newMigrateCommand(r),
		newBackfillCommand(r),
		newTokenCommand(r),
		newVersionCommand(),
	)
	return cmd
}

// load reads the configuration and builds the logger.
func (r *root) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(r.v, r.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating a logger: %w", err)
	}
	return cfg, log, nil
}
