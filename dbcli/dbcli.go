// Package dbcli provides the "database" command group:
// migration and maintenance commands for core and tenant schemas.
package dbcli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bobg/tenantschema"
	"github.com/bobg/tenantschema/internal/console"
	"github.com/bobg/tenantschema/migrate"
)

// AppLoader returns the application the commands operate on.
// It is called when a command runs, not when the command tree is built.
type AppLoader func() (*tenantschema.App, error)

// OnCLIInit adds the database command group to root.
func OnCLIInit(root *cobra.Command, load AppLoader) {
	root.AddCommand(NewDatabaseCommand(load))
}

// NewDatabaseCommand returns the database command group.
func NewDatabaseCommand(load AppLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "database",
		Short: "Manage multi-tenant database components",
	}
	cmd.AddCommand(
		newShowCurrentRevisionCmd(load),
		newDowngradeCmd(load),
		newUpgradeCmd(load),
		newInitCmd(load),
		newMakeMigrationsCmd(load),
		newMergeMigrationsCmd(load),
		newStampMigrationCmd(load),
		newDropAllCmd(load),
		newDumpDataCmd(load),
	)
	return cmd
}

// env is what every command needs once it starts running.
type env struct {
	cmd    *cobra.Command
	con    *console.Console
	plugin *tenantschema.Plugin
}

func newEnv(cmd *cobra.Command, load AppLoader) (*env, error) {
	app, err := load()
	if err != nil {
		return nil, errors.Wrap(err, "loading application")
	}
	plugin, err := tenantschema.GetDatabaseMigrationPlugin(app)
	if err != nil {
		return nil, err
	}
	if len(plugin.Configs()) == 0 {
		return nil, errors.Wrap(tenantschema.ErrImproperConfiguration, "database plugin has no configs")
	}
	return &env{
		cmd:    cmd,
		con:    console.New(cmd.InOrStdin(), cmd.OutOrStdout()),
		plugin: plugin,
	}, nil
}

// config returns the config that revision commands operate on.
func (e *env) config() *tenantschema.Config {
	return e.plugin.Configs()[0]
}

// revisionType prompts for a revision type if none was given, then validates it.
func (e *env) revisionType(cfg *tenantschema.Config, given string) (string, error) {
	if given == "" {
		var err error
		if given, err = e.con.Choose("Revision type", cfg.ValidRevisionTypes()); err != nil {
			return "", err
		}
	}
	if err := cfg.CheckRevisionType(given); err != nil {
		return "", err
	}
	return given, nil
}

// commands returns the migration engine pointed at the scripts for revisionType.
func (e *env) commands(cfg *tenantschema.Config, revisionType string) migrate.Commands {
	factory := cfg.Commands
	if factory == nil {
		factory = migrate.NewGoose
	}
	return factory(migrate.Config{
		ScriptLocation: cfg.ScriptDir(revisionType),
		VersionTable:   cfg.VersionTable,
		Schemas:        func(ctx context.Context) ([]string, error) { return cfg.TargetSchemas(ctx, revisionType) },
		Open:           cfg.OpenSchemaDB,
		Prepare:        cfg.EnsureSchema,
		Out:            e.cmd.OutOrStdout(),
		Logger:         cfg.Logger,
	})
}

// confirm asks question unless noPrompt is set.
func (e *env) confirm(noPrompt bool, question string) (bool, error) {
	if noPrompt {
		return true, nil
	}
	return e.con.Confirm(question)
}

// message returns the revision message, asking for one if needed.
func (e *env) message(given string, noPrompt bool) (string, error) {
	if given != "" {
		return given, nil
	}
	if noPrompt {
		return "autogenerated", nil
	}
	return e.con.Ask("Please enter a message describing this revision")
}
