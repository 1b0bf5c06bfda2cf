package dbcli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bobg/tenantschema/internal/console"
	"github.com/bobg/tenantschema/internal/dump"
)

func newDropAllCmd(load AppLoader) *cobra.Command {
	var noPrompt bool
	cmd := &cobra.Command{
		Use:   "drop-all",
		Short: "Drop all tenant schemas and the core schema, with all their tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, load)
			if err != nil {
				return err
			}
			e.con.Rule(console.Yellow, "Dropping all tables from the database")

			ok, err := e.confirm(noPrompt, console.Red.Sprint("Are you sure you want to drop all tables from the database?"))
			if err != nil || !ok {
				return err
			}
			for _, cfg := range e.plugin.Configs() {
				dropped, err := cfg.DropAll(cmd.Context())
				if len(dropped) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Dropped schemas: %s\n", strings.Join(dropped, ", "))
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Do not prompt for confirmation before dropping")
	return cmd
}

func defaultDumpDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "fixtures"
	}
	return filepath.Join(wd, "fixtures")
}

func newDumpDataCmd(load AppLoader) *cobra.Command {
	var (
		tableNames []string
		dir        string
	)
	cmd := &cobra.Command{
		Use:   "dump-data",
		Short: "Dump specified tables from the database to JSON files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, load)
			if err != nil {
				return err
			}

			all := false
			for _, name := range tableNames {
				if name == "*" {
					all = true
				}
			}
			if all {
				ok, err := e.con.Confirm(console.Yellow.Sprint("You have specified '*'. Are you sure you want to dump all tables from the database?"))
				if err != nil {
					return err
				}
				if !ok {
					e.con.Rule(console.Red, "No data was dumped.")
					return nil
				}
			}

			for _, cfg := range e.plugin.Configs() {
				tables, missing := cfg.ResolveTables(tableNames)
				for _, name := range missing {
					e.con.Rule(console.Red, fmt.Sprintf("Skipping table '%s' because it is not available in the default registry", name))
				}
				if all {
					e.con.Rule(console.Yellow, "Dumping all tables")
				}

				targets := make([]dump.Table, 0, len(tables))
				for _, t := range tables {
					targets = append(targets, dump.Table{Name: t.Name, Schema: t.Schema})
				}

				maker, err := cfg.CreateSessionMaker()
				if err != nil {
					return err
				}
				if err := dumpTables(cmd.Context(), dir, maker(), targets); err != nil {
					return err
				}
				e.con.Rule(console.Green, "Data dump complete")
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&tableNames, "table", nil, "Name of the table to dump. Multiple tables can be specified. Use '*' to dump all tables.")
	cmd.Flags().StringVar(&dir, "dir", defaultDumpDir(), "Directory to save the JSON files")
	cmd.MarkFlagRequired("table")
	return cmd
}

type dumpSession interface {
	dump.Querier
	Close() error
}

// dumpTables dumps targets through s and closes it.
// A failure to close is reported only when the dump itself succeeded.
func dumpTables(ctx context.Context, dir string, s dumpSession, targets []dump.Table) (err error) {
	defer func() {
		if cerr := s.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "closing session")
		}
	}()
	return dump.Tables(ctx, dir, s, targets)
}
