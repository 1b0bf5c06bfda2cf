package dbcli

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobg/tenantschema"
	"github.com/bobg/tenantschema/internal/dump"
	"github.com/bobg/tenantschema/migrate"
)

// fakeCommands records the calls made to it.
type fakeCommands struct {
	cfg   migrate.Config
	calls *[]call
}

type call struct {
	op   string
	cfg  migrate.Config
	opts interface{}
}

func (f fakeCommands) record(op string, opts interface{}) error {
	*f.calls = append(*f.calls, call{op: op, cfg: f.cfg, opts: opts})
	return nil
}

func (f fakeCommands) Current(_ context.Context, o migrate.CurrentOptions) error {
	return f.record("current", o)
}

func (f fakeCommands) Upgrade(_ context.Context, o migrate.UpgradeOptions) error {
	return f.record("upgrade", o)
}

func (f fakeCommands) Downgrade(_ context.Context, o migrate.DowngradeOptions) error {
	return f.record("downgrade", o)
}

func (f fakeCommands) Init(_ context.Context, o migrate.InitOptions) error {
	return f.record("init", o)
}

func (f fakeCommands) Revision(_ context.Context, o migrate.RevisionOptions) error {
	if o.ProcessRevisionDirectives != nil {
		scripts := o.ProcessRevisionDirectives([]*migrate.Script{{Message: o.Message, Autogenerated: o.Autogenerate}})
		o.ProcessRevisionDirectives = nil
		return f.record("revision", revisionCall{opts: o, kept: len(scripts)})
	}
	return f.record("revision", revisionCall{opts: o, kept: -1})
}

type revisionCall struct {
	opts migrate.RevisionOptions
	kept int
}

func (f fakeCommands) Merge(_ context.Context, o migrate.MergeOptions) error {
	return f.record("merge", o)
}

func (f fakeCommands) Stamp(_ context.Context, o migrate.StampOptions) error {
	return f.record("stamp", o)
}

type harness struct {
	cfg   *tenantschema.Config
	calls []call
	out   bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{cfg: tenantschema.DefaultConfig()}
	h.cfg.DSN = "postgres://localhost/test?sslmode=disable"
	h.cfg.ScriptLocation = t.TempDir()
	h.cfg.Commands = func(c migrate.Config) migrate.Commands {
		return fakeCommands{cfg: c, calls: &h.calls}
	}
	return h
}

func (h *harness) run(stdin string, args ...string) error {
	app := tenantschema.NewApp(tenantschema.NewPlugin(h.cfg))
	return h.runApp(app, stdin, args...)
}

func (h *harness) runApp(app *tenantschema.App, stdin string, args ...string) error {
	root := &cobra.Command{Use: "tenantdb", SilenceUsage: true, SilenceErrors: true}
	OnCLIInit(root, func() (*tenantschema.App, error) { return app, nil })
	root.SetArgs(append([]string{"database"}, args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&h.out)
	root.SetErr(&h.out)
	return root.Execute()
}

func TestUpgradeNoPrompt(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "upgrade", "3", "--revision-type", "tenant", "--sql", "--tag", "nightly", "--no-prompt")
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	c := h.calls[0]
	assert.Equal(t, "upgrade", c.op)
	assert.Equal(t, migrate.UpgradeOptions{Revision: "3", SQL: true, Tag: "nightly"}, c.opts)
	assert.Equal(t, filepath.Join(h.cfg.ScriptLocation, "tenant"), c.cfg.ScriptLocation)
	assert.Equal(t, "goose_db_version", c.cfg.VersionTable)
	assert.Contains(t, h.out.String(), "Starting database upgrade process")
}

func TestUpgradePrompts(t *testing.T) {
	h := newHarness(t)
	err := h.run("core\ny\n", "upgrade")
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Equal(t, migrate.UpgradeOptions{Revision: "head"}, h.calls[0].opts)
	assert.Equal(t, filepath.Join(h.cfg.ScriptLocation, "core"), h.calls[0].cfg.ScriptLocation)
	assert.Contains(t, h.out.String(), "migrate the `core` database to the `head` revision")

	schemas, err := h.calls[0].cfg.Schemas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, schemas)
}

func TestUpgradeDeclined(t *testing.T) {
	h := newHarness(t)
	err := h.run("n\n", "upgrade", "--revision-type", "core")
	require.NoError(t, err)
	assert.Empty(t, h.calls)
}

func TestUpgradeInvalidRevisionType(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "upgrade", "--revision-type", "bogus", "--no-prompt")
	require.Error(t, err)
	assert.Equal(t, tenantschema.ErrInvalidRevisionType, errors.Cause(err))
	assert.Contains(t, err.Error(), `not "bogus"`)
	assert.Empty(t, h.calls)
}

func TestChooseRevisionTypeReprompts(t *testing.T) {
	h := newHarness(t)
	err := h.run("Core\ntenant\n", "show-current-revision", "--verbose")
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Equal(t, "current", h.calls[0].op)
	assert.Equal(t, migrate.CurrentOptions{Verbose: true}, h.calls[0].opts)
	assert.Contains(t, h.out.String(), `"Core" is not one of`)
}

func TestDowngrade(t *testing.T) {
	h := newHarness(t)
	err := h.run("y\n", "downgrade", "base", "--revision-type", "core")
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Equal(t, "downgrade", h.calls[0].op)
	assert.Equal(t, migrate.DowngradeOptions{Revision: "base"}, h.calls[0].opts)
	assert.Contains(t, h.out.String(), "downgrade the database schema: core to the `base` revision")
}

func TestInit(t *testing.T) {
	h := newHarness(t)
	dir := filepath.Join(t.TempDir(), "alembic")
	err := h.run("", "init-alembic", dir, "--no-prompt")
	require.NoError(t, err)

	require.Len(t, h.calls, 2)
	assert.Equal(t, migrate.InitOptions{Directory: filepath.Join(dir, "core"), Package: true}, h.calls[0].opts)
	assert.Equal(t, migrate.InitOptions{Directory: filepath.Join(dir, "tenant"), Package: true}, h.calls[1].opts)
}

func TestInitDeclined(t *testing.T) {
	h := newHarness(t)
	err := h.run("no\n", "init-alembic", "--package=false")
	require.NoError(t, err)
	assert.Empty(t, h.calls)
	assert.Contains(t, h.out.String(), h.cfg.ScriptLocation)
}

func TestMakeMigrationsSkipsEmptyAutogenerated(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "make-migrations", "--revision-type", "tenant", "-m", "add widgets")
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	rc := h.calls[0].opts.(revisionCall)
	assert.Equal(t, 0, rc.kept)
	assert.Equal(t, "add widgets", rc.opts.Message)
	assert.True(t, rc.opts.Autogenerate)
	assert.Equal(t, "head", rc.opts.Head)
	assert.Contains(t, h.out.String(), "use the --no-autogenerate option")
}

func TestMakeMigrationsNoAutogenerate(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "make-migrations", "--revision-type", "core", "--no-autogenerate", "--no-prompt", "--sql")
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	rc := h.calls[0].opts.(revisionCall)
	assert.Equal(t, 1, rc.kept)
	assert.Equal(t, "autogenerated", rc.opts.Message)
	assert.False(t, rc.opts.Autogenerate)
	assert.True(t, rc.opts.SQL)
	assert.NotContains(t, h.out.String(), "--no-autogenerate option")
}

func TestMakeMigrationsAsksForMessage(t *testing.T) {
	h := newHarness(t)
	err := h.run("\nrename users\n", "make-migrations", "--revision-type", "core", "--no-autogenerate")
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Equal(t, "rename users", h.calls[0].opts.(revisionCall).opts.Message)
}

func TestMergeMigrations(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "merge-migrations", "--revision-type", "core", "--revisions", "a,b", "-m", "merge", "--rev-id", "abc")
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Equal(t, migrate.MergeOptions{Revisions: "a,b", Message: "merge", RevID: "abc"}, h.calls[0].opts)
}

func TestStampMigration(t *testing.T) {
	h := newHarness(t)
	err := h.run("yes\n", "stamp-migration", "--revision-type", "tenant", "--revision", "4", "--purge")
	require.NoError(t, err)

	require.Len(t, h.calls, 1)
	assert.Equal(t, migrate.StampOptions{Revision: "4", Purge: true}, h.calls[0].opts)
	assert.Contains(t, h.out.String(), "stamp revision as current for tenant schema")
}

func TestMissingPlugin(t *testing.T) {
	h := newHarness(t)
	err := h.runApp(tenantschema.NewApp(), "", "upgrade", "--revision-type", "core", "--no-prompt")
	require.Error(t, err)
	assert.Equal(t, tenantschema.ErrImproperConfiguration, errors.Cause(err))
	assert.Empty(t, h.calls)
}

func TestLoadError(t *testing.T) {
	root := &cobra.Command{Use: "tenantdb", SilenceUsage: true, SilenceErrors: true}
	OnCLIInit(root, func() (*tenantschema.App, error) { return nil, errors.New("boom") })
	root.SetArgs([]string{"database", "drop-all", "--no-prompt"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading application: boom")
}

func TestDropAllDeclined(t *testing.T) {
	h := newHarness(t)
	err := h.run("n\n", "drop-all")
	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "Dropping all tables from the database")
	assert.NotContains(t, h.out.String(), "Dropped schemas")
}

func TestDumpDataAllDeclined(t *testing.T) {
	h := newHarness(t)
	err := h.run("n\n", "dump-data", "--table", "*", "--dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "No data was dumped.")
}

func TestDumpDataRequiresTable(t *testing.T) {
	h := newHarness(t)
	err := h.run("", "dump-data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table")
}

type failingSession struct {
	queryErr, closeErr error
	closed             bool
}

func (f *failingSession) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, f.queryErr
}

func (f *failingSession) Close() error {
	f.closed = true
	return f.closeErr
}

func TestDumpTablesReportsCloseError(t *testing.T) {
	s := &failingSession{closeErr: errors.New("connection reset")}
	err := dumpTables(context.Background(), t.TempDir(), s, nil)
	require.Error(t, err)
	assert.True(t, s.closed)
	assert.Equal(t, "closing session: connection reset", err.Error())
}

func TestDumpTablesKeepsDumpError(t *testing.T) {
	queryErr := errors.New("no such table")
	s := &failingSession{queryErr: queryErr, closeErr: errors.New("connection reset")}
	err := dumpTables(context.Background(), t.TempDir(), s, []dump.Table{{Name: "widgets"}})
	require.Error(t, err)
	assert.True(t, s.closed)
	assert.Equal(t, queryErr, errors.Cause(err))
}

func TestDumpTablesClosesOnSuccess(t *testing.T) {
	s := &failingSession{}
	require.NoError(t, dumpTables(context.Background(), t.TempDir(), s, nil))
	assert.True(t, s.closed)
}
