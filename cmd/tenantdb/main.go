package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bobg/tenantschema"
	"github.com/bobg/tenantschema/dbcli"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		logger     *zap.Logger
	)

	root := &cobra.Command{
		Use:           "tenantdb",
		Short:         "Multi-tenant schema management for Postgresql",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if debug {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			return errors.Wrap(err, "initializing logger")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("TENANTDB_CONFIG"), "Path to the YAML configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Log at debug level")

	dbcli.OnCLIInit(root, func() (*tenantschema.App, error) {
		cfg, err := tenantschema.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg.Logger = logger
		logger.Debug("configuration loaded",
			zap.String("config", configPath),
			zap.String("core_schema", cfg.CoreSchemaName),
			zap.String("script_location", cfg.ScriptLocation))
		return tenantschema.NewApp(tenantschema.NewPlugin(cfg)), nil
	})
	return root
}
