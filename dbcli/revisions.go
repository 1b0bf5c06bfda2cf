package dbcli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bobg/tenantschema/internal/console"
	"github.com/bobg/tenantschema/migrate"
)

const (
	revisionTypeHelp = "Schema class to operate on (core or tenant, as configured)"
	tagHelp          = "An arbitrary tag passed to migrations, which can read it with migrate.Tag"
)

func newShowCurrentRevisionCmd(load AppLoader) *cobra.Command {
	var (
		revisionType string
		verbose      bool
	)
	cmd := &cobra.Command{
		Use:   "show-current-revision",
		Short: "Shows the current revision for the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, load)
			if err != nil {
				return err
			}
			e.con.Rule(console.Yellow, "Listing current revision")

			cfg := e.config()
			rt, err := e.revisionType(cfg, revisionType)
			if err != nil {
				return err
			}
			return e.commands(cfg, rt).Current(cmd.Context(), migrate.CurrentOptions{Verbose: verbose})
		},
	}
	cmd.Flags().StringVar(&revisionType, "revision-type", "", revisionTypeHelp)
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable verbose output")
	return cmd
}

type migrateFlags struct {
	revisionType string
	sql          bool
	tag          string
	noPrompt     bool
}

func (f *migrateFlags) register(cmd *cobra.Command, noPromptHelp string) {
	cmd.Flags().StringVar(&f.revisionType, "revision-type", "", revisionTypeHelp)
	cmd.Flags().BoolVar(&f.sql, "sql", false, "Generate SQL output for offline migrations")
	cmd.Flags().StringVar(&f.tag, "tag", "", tagHelp)
	cmd.Flags().BoolVar(&f.noPrompt, "no-prompt", false, noPromptHelp)
}

func revisionArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "head"
}

func newDowngradeCmd(load AppLoader) *cobra.Command {
	var f migrateFlags
	cmd := &cobra.Command{
		Use:   "downgrade [revision]",
		Short: "Downgrade database to a specific revision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, load)
			if err != nil {
				return err
			}
			e.con.Rule(console.Yellow, "Starting database downgrade process")

			revision := revisionArg(args)
			cfg := e.config()
			rt, err := e.revisionType(cfg, f.revisionType)
			if err != nil {
				return err
			}
			ok, err := e.confirm(f.noPrompt, fmt.Sprintf("Are you sure you want to downgrade the database schema: %s to the `%s` revision?", rt, revision))
			if err != nil || !ok {
				return err
			}
			return e.commands(cfg, rt).Downgrade(cmd.Context(), migrate.DowngradeOptions{
				Revision: revision,
				SQL:      f.sql,
				Tag:      f.tag,
			})
		},
	}
	f.register(cmd, "Do not prompt for confirmation before downgrading")
	return cmd
}

func newUpgradeCmd(load AppLoader) *cobra.Command {
	var f migrateFlags
	cmd := &cobra.Command{
		Use:   "upgrade [revision]",
		Short: "Upgrade database to a specific revision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, load)
			if err != nil {
				return err
			}
			e.con.Rule(console.Yellow, "Starting database upgrade process")

			revision := revisionArg(args)
			cfg := e.config()
			rt, err := e.revisionType(cfg, f.revisionType)
			if err != nil {
				return err
			}
			ok, err := e.confirm(f.noPrompt, fmt.Sprintf("Are you sure you want to migrate the `%s` database to the `%s` revision?", rt, revision))
			if err != nil || !ok {
				return err
			}
			return e.commands(cfg, rt).Upgrade(cmd.Context(), migrate.UpgradeOptions{
				Revision: revision,
				SQL:      f.sql,
				Tag:      f.tag,
			})
		},
	}
	f.register(cmd, "Do not prompt for confirmation before upgrading")
	return cmd
}

func newInitCmd(load AppLoader) *cobra.Command {
	var (
		multidb  bool
		pkg      bool
		noPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "init-alembic [directory]",
		Short: "Initialize migrations for the project",
		Long:  "Initialize migrations for the project: one script directory per revision type, under the given directory (default: the configured script location).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, load)
			if err != nil {
				return err
			}
			e.con.Rule(console.Yellow, "Initializing database migrations")

			for _, cfg := range e.plugin.Configs() {
				dir := cfg.ScriptLocation
				if len(args) > 0 {
					dir = args[0]
				}
				ok, err := e.confirm(noPrompt, fmt.Sprintf("Are you sure you want to initialize the project in `%s`?", dir))
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				for _, rt := range cfg.ValidRevisionTypes() {
					err := e.commands(cfg, rt).Init(cmd.Context(), migrate.InitOptions{
						Directory: filepath.Join(dir, rt),
						Multidb:   multidb,
						Package:   pkg,
					})
					if err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&multidb, "multidb", false, "Support multiple databases")
	cmd.Flags().BoolVar(&pkg, "package", true, "Create a Go package file in each created directory")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Do not prompt for confirmation before initializing")
	return cmd
}

func newMakeMigrationsCmd(load AppLoader) *cobra.Command {
	var (
		revisionType   string
		message        string
		autogenerate   bool
		noAutogenerate bool
		sql            bool
		head           string
		splice         bool
		branchLabel    string
		versionPath    string
		revID          string
		noPrompt       bool
	)
	cmd := &cobra.Command{
		Use:   "make-migrations",
		Short: "Create a new migration revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, load)
			if err != nil {
				return err
			}
			e.con.Rule(console.Yellow, "Creating a new migration revision")

			msg, err := e.message(message, noPrompt)
			if err != nil {
				return err
			}
			cfg := e.config()
			rt, err := e.revisionType(cfg, revisionType)
			if err != nil {
				return err
			}

			autogen := autogenerate && !noAutogenerate
			skipEmpty := func(directives []*migrate.Script) []*migrate.Script {
				if autogen && len(directives) > 0 && directives[0].Empty() {
					e.con.Rule(console.Magenta, "The generation of a migration file is being skipped because it would result in an empty file.")
					e.con.Rule(console.Magenta, "The migration engine cannot detect schema changes; write the migration by hand.")
					e.con.Rule(console.Magenta, "If you intend to create an empty migration file, use the --no-autogenerate option.")
					return nil
				}
				return directives
			}

			return e.commands(cfg, rt).Revision(cmd.Context(), migrate.RevisionOptions{
				Message:                   msg,
				Autogenerate:              autogen,
				SQL:                       sql,
				Head:                      head,
				Splice:                    splice,
				BranchLabel:               branchLabel,
				VersionPath:               versionPath,
				RevID:                     revID,
				ProcessRevisionDirectives: skipEmpty,
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&revisionType, "revision-type", "", revisionTypeHelp)
	flags.StringVarP(&message, "message", "m", "", "Revision message")
	flags.BoolVar(&autogenerate, "autogenerate", true, "Automatically populate revision with detected changes")
	flags.BoolVar(&noAutogenerate, "no-autogenerate", false, "Create the revision without detecting changes")
	flags.BoolVar(&sql, "sql", false, "Create a SQL script instead of a Go one")
	flags.StringVar(&head, "head", "head", "Specify head revision to use as base for new revision")
	flags.BoolVar(&splice, "splice", false, `Allow a non-head revision as the "head" to splice onto`)
	flags.StringVar(&branchLabel, "branch-label", "", "Specify a branch label to apply to the new revision")
	flags.StringVar(&versionPath, "version-path", "", "Specify specific path from config for version file")
	flags.StringVar(&revID, "rev-id", "", "Specify an ID to use for revision")
	flags.BoolVar(&noPrompt, "no-prompt", false, "Do not prompt for a migration message")
	return cmd
}

func newMergeMigrationsCmd(load AppLoader) *cobra.Command {
	var (
		revisionType string
		revisions    string
		message      string
		branchLabel  string
		revID        string
		noPrompt     bool
	)
	cmd := &cobra.Command{
		Use:   "merge-migrations",
		Short: "Merge multiple revisions into a single new revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, load)
			if err != nil {
				return err
			}
			e.con.Rule(console.Yellow, "Merging migration revisions")

			msg, err := e.message(message, noPrompt)
			if err != nil {
				return err
			}
			cfg := e.config()
			rt, err := e.revisionType(cfg, revisionType)
			if err != nil {
				return err
			}
			return e.commands(cfg, rt).Merge(cmd.Context(), migrate.MergeOptions{
				Revisions:   revisions,
				Message:     msg,
				BranchLabel: branchLabel,
				RevID:       revID,
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&revisionType, "revision-type", "", revisionTypeHelp)
	flags.StringVar(&revisions, "revisions", "head", "Specify head revision to use as base for new revision")
	flags.StringVarP(&message, "message", "m", "", "Revision message")
	flags.StringVar(&branchLabel, "branch-label", "", "Specify a branch label to apply to the new revision")
	flags.StringVar(&revID, "rev-id", "", "Specify an ID to use for revision")
	flags.BoolVar(&noPrompt, "no-prompt", false, "Do not prompt for a migration message")
	return cmd
}

func newStampMigrationCmd(load AppLoader) *cobra.Command {
	var (
		f        migrateFlags
		revision string
		purge    bool
	)
	cmd := &cobra.Command{
		Use:   "stamp-migration",
		Short: "Mark (stamp) a specific revision as current without applying the migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, load)
			if err != nil {
				return err
			}
			e.con.Rule(console.Yellow, "Stamping database revision as current")

			cfg := e.config()
			rt, err := e.revisionType(cfg, f.revisionType)
			if err != nil {
				return err
			}
			ok, err := e.confirm(f.noPrompt, fmt.Sprintf("Are you sure you want to stamp revision as current for %s schema?", rt))
			if err != nil || !ok {
				return err
			}
			return e.commands(cfg, rt).Stamp(cmd.Context(), migrate.StampOptions{
				Revision: revision,
				SQL:      f.sql,
				Tag:      f.tag,
				Purge:    purge,
			})
		},
	}
	f.register(cmd, "Do not prompt for confirmation")
	cmd.Flags().StringVar(&revision, "revision", "head", "Revision to stamp to")
	cmd.Flags().BoolVar(&purge, "purge", false, "Delete existing records in the version table before stamping")
	return cmd
}
