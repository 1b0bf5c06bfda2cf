package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// goose keeps its settings in package globals.
var gooseMu sync.Mutex

// Goose implements Commands with pressly/goose.
// Goose histories are linear:
// merges, branch labels, splicing and explicit revision IDs are unsupported.
type Goose struct {
	cfg Config
}

// assert *Goose satisfies the Commands interface.
var _ Commands = (*Goose)(nil)

// NewGoose returns a goose-backed engine for cfg.
func NewGoose(cfg Config) Commands {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.VersionTable == "" {
		cfg.VersionTable = "goose_db_version"
	}
	return &Goose{cfg: cfg}
}

// setup configures goose's globals for g and returns the unlock function.
func (g *Goose) setup() (func(), error) {
	gooseMu.Lock()
	if err := goose.SetDialect("postgres"); err != nil {
		gooseMu.Unlock()
		return nil, errors.Wrap(err, "setting goose dialect")
	}
	goose.SetTableName(g.cfg.VersionTable)
	goose.SetLogger(&gooseLogger{out: g.cfg.Out, log: g.cfg.Logger})
	return gooseMu.Unlock, nil
}

// forEachSchema runs fn against every target schema in turn, stopping at the first error.
func (g *Goose) forEachSchema(ctx context.Context, prepare bool, fn func(schema string, db *sql.DB) error) error {
	if g.cfg.Schemas == nil || g.cfg.Open == nil {
		return errors.New("migration engine has no schemas to work on")
	}
	schemas, err := g.cfg.Schemas(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving target schemas")
	}
	if len(schemas) == 0 {
		g.cfg.Logger.Info("no target schemas", zap.String("script_location", g.cfg.ScriptLocation))
		fmt.Fprintln(g.cfg.Out, "No schemas to operate on.")
		return nil
	}

	unlock, err := g.setup()
	if err != nil {
		return err
	}
	defer unlock()

	for _, schema := range schemas {
		if prepare && g.cfg.Prepare != nil {
			if err := g.cfg.Prepare(ctx, schema); err != nil {
				return errors.Wrapf(err, "preparing schema %s", schema)
			}
		}
		db, err := g.cfg.Open(schema)
		if err != nil {
			return errors.Wrapf(err, "opening schema %s", schema)
		}
		g.cfg.Logger.Debug("migrating schema", zap.String("schema", schema), zap.String("script_location", g.cfg.ScriptLocation))
		err = fn(schema, db)
		db.Close()
		if err != nil {
			return errors.Wrapf(err, "schema %s", schema)
		}
	}
	return nil
}

// Current implements Commands.Current.
func (g *Goose) Current(ctx context.Context, opts CurrentOptions) error {
	return g.forEachSchema(ctx, false, func(schema string, db *sql.DB) error {
		v, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return err
		}
		fmt.Fprintf(g.cfg.Out, "%s: %d\n", schema, v)
		if opts.Verbose {
			return goose.StatusContext(ctx, db, g.cfg.ScriptLocation)
		}
		return nil
	})
}

// Upgrade implements Commands.Upgrade.
func (g *Goose) Upgrade(ctx context.Context, opts UpgradeOptions) error {
	t, err := parseRevision(opts.Revision)
	if err != nil {
		return err
	}
	if t.kind == relative && t.steps < 0 {
		return errors.Wrapf(ErrUnknownRevision, "cannot upgrade to %s", opts.Revision)
	}
	if opts.SQL {
		return g.offlineUpgrade(t)
	}

	ctx = WithTag(ctx, opts.Tag)
	dir := g.cfg.ScriptLocation
	return g.forEachSchema(ctx, true, func(schema string, db *sql.DB) error {
		switch t.kind {
		case toHead:
			return goose.UpContext(ctx, db, dir)
		case toVersion:
			return goose.UpToContext(ctx, db, dir, t.version)
		case relative:
			for i := 0; i < t.steps; i++ {
				if err := goose.UpByOneContext(ctx, db, dir); err != nil {
					if errors.Is(err, goose.ErrNoNextVersion) {
						return nil
					}
					return err
				}
			}
		}
		return nil
	})
}

// offlineUpgrade prints the scripts an upgrade from an empty schema to t would run.
func (g *Goose) offlineUpgrade(t target) error {
	var to int64
	switch t.kind {
	case toHead:
		to = math.MaxInt64
	case toVersion:
		to = t.version
	case toBase:
		return nil
	default:
		return errors.Wrap(ErrUnsupported, "relative revisions in offline mode")
	}

	migrations, err := g.collect(to)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		fmt.Fprintf(g.cfg.Out, "-- version %d: %s\n", m.Version, filepath.Base(m.Source))
		if filepath.Ext(m.Source) != ".sql" {
			fmt.Fprintln(g.cfg.Out, "-- (Go migration, no SQL to show)")
			continue
		}
		src, err := os.ReadFile(m.Source)
		if err != nil {
			return errors.Wrapf(err, "reading %s", m.Source)
		}
		g.cfg.Out.Write(src)
		if len(src) > 0 && src[len(src)-1] != '\n' {
			fmt.Fprintln(g.cfg.Out)
		}
	}
	return nil
}

func (g *Goose) collect(to int64) (goose.Migrations, error) {
	unlock, err := g.setup()
	if err != nil {
		return nil, err
	}
	defer unlock()

	migrations, err := goose.CollectMigrations(g.cfg.ScriptLocation, 0, to)
	return migrations, errors.Wrapf(err, "collecting migrations in %s", g.cfg.ScriptLocation)
}

// Downgrade implements Commands.Downgrade.
// Downgrading to "head" changes nothing.
func (g *Goose) Downgrade(ctx context.Context, opts DowngradeOptions) error {
	t, err := parseRevision(opts.Revision)
	if err != nil {
		return err
	}
	if t.kind == relative && t.steps > 0 {
		return errors.Wrapf(ErrUnknownRevision, "cannot downgrade to %s", opts.Revision)
	}
	if opts.SQL {
		return errors.Wrap(ErrUnsupported, "offline downgrade")
	}
	if t.kind == toHead {
		fmt.Fprintln(g.cfg.Out, "Already at head; nothing to downgrade.")
		return nil
	}

	ctx = WithTag(ctx, opts.Tag)
	dir := g.cfg.ScriptLocation
	return g.forEachSchema(ctx, false, func(schema string, db *sql.DB) error {
		switch t.kind {
		case toBase:
			return goose.DownToContext(ctx, db, dir, 0)
		case toVersion:
			return goose.DownToContext(ctx, db, dir, t.version)
		case relative:
			for i := 0; i < -t.steps; i++ {
				v, err := goose.GetDBVersionContext(ctx, db)
				if err != nil {
					return err
				}
				if v == 0 {
					return nil
				}
				if err := goose.DownContext(ctx, db, dir); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Init implements Commands.Init.
// The directory must be absent or empty.
func (g *Goose) Init(_ context.Context, opts InitOptions) error {
	if opts.Multidb {
		return errors.Wrap(ErrUnsupported, "multidb templates")
	}
	dir := opts.Directory
	if dir == "" {
		dir = g.cfg.ScriptLocation
	}
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "reading %s", dir)
	}
	if len(entries) > 0 {
		return errors.Errorf("directory %s already exists and is not empty", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	if opts.Package {
		doc := fmt.Sprintf("// Package %[1]s holds database migrations.\npackage %[1]s\n", packageName(dir))
		if err := os.WriteFile(filepath.Join(dir, "doc.go"), []byte(doc), 0o644); err != nil {
			return errors.Wrap(err, "writing package file")
		}
	}
	fmt.Fprintf(g.cfg.Out, "Created %s\n", dir)
	return nil
}

// packageName derives a Go package name from a directory name.
func packageName(dir string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(filepath.Base(dir)) {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "m" + name
	}
	return name
}

// Revision implements Commands.Revision.
// Goose cannot compare models against the database,
// so autogenerated scripts are always empty.
func (g *Goose) Revision(_ context.Context, opts RevisionOptions) error {
	switch {
	case opts.BranchLabel != "":
		return errors.Wrap(ErrUnsupported, "branch labels")
	case opts.Splice:
		return errors.Wrap(ErrUnsupported, "splicing")
	case opts.RevID != "":
		return errors.Wrap(ErrUnsupported, "explicit revision IDs")
	case opts.Head != "" && opts.Head != "head":
		return errors.Wrapf(ErrUnsupported, "revisions on %s", opts.Head)
	}

	directives := []*Script{{Message: opts.Message, Autogenerated: opts.Autogenerate}}
	if opts.ProcessRevisionDirectives != nil {
		directives = opts.ProcessRevisionDirectives(directives)
	}
	if len(directives) == 0 {
		return nil
	}

	dir := g.cfg.ScriptLocation
	if opts.VersionPath != "" {
		dir = opts.VersionPath
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	migrationType := "go"
	if opts.SQL {
		migrationType = "sql"
	}

	unlock, err := g.setup()
	if err != nil {
		return err
	}
	defer unlock()

	for _, d := range directives {
		if err := goose.Create(nil, dir, d.Message, migrationType); err != nil {
			return errors.Wrapf(err, "creating revision %q", d.Message)
		}
	}
	return nil
}

// Merge implements Commands.Merge. Goose histories have a single head.
func (g *Goose) Merge(context.Context, MergeOptions) error {
	return errors.Wrap(ErrUnsupported, "merging revisions")
}

// Stamp implements Commands.Stamp.
// Every script version up to the target is recorded as applied
// and records of later versions are removed,
// so a later upgrade finds no gaps below the stamped version.
func (g *Goose) Stamp(ctx context.Context, opts StampOptions) error {
	t, err := parseRevision(opts.Revision)
	if err != nil {
		return err
	}
	var to int64
	switch t.kind {
	case toHead:
		to = math.MaxInt64
	case toBase:
		to = 0
	case toVersion:
		to = t.version
	default:
		return errors.Wrap(ErrUnsupported, "stamping relative revisions")
	}

	versions, err := g.stampVersions(t, to)
	if err != nil {
		return err
	}
	var version int64
	if len(versions) > 0 {
		version = versions[len(versions)-1]
	}

	stmts := g.stampStatements(version, versions, opts.Purge)
	if opts.SQL {
		for _, s := range stmts {
			fmt.Fprintf(g.cfg.Out, "%s;\n", s)
		}
		return nil
	}

	ctx = WithTag(ctx, opts.Tag)
	return g.forEachSchema(ctx, true, func(schema string, db *sql.DB) error {
		if _, err := goose.EnsureDBVersionContext(ctx, db); err != nil {
			return errors.Wrap(err, "creating version table")
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, s := range stmts {
			if _, err := tx.ExecContext(ctx, s); err != nil {
				tx.Rollback()
				return errors.Wrap(err, s)
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		fmt.Fprintf(g.cfg.Out, "%s: stamped %d\n", schema, version)
		return nil
	})
}

// stampVersions returns the script versions up to and including to, in order.
// A specific target version must name an existing script.
func (g *Goose) stampVersions(t target, to int64) ([]int64, error) {
	if to == 0 {
		return nil, nil
	}
	migrations, err := g.collect(to)
	if err != nil {
		return nil, err
	}
	versions := make([]int64, 0, len(migrations))
	for _, m := range migrations {
		versions = append(versions, m.Version)
	}
	if t.kind == toVersion && (len(versions) == 0 || versions[len(versions)-1] != to) {
		return nil, errors.Wrapf(ErrUnknownRevision, "no script for version %d", to)
	}
	return versions, nil
}

// stampStatements returns the SQL that makes the version table say
// exactly versions are applied, version being the newest of them.
// Without purge, existing records at or below version are kept.
func (g *Goose) stampStatements(version int64, versions []int64, purge bool) []string {
	table := quoteQualified(g.cfg.VersionTable)
	var stmts []string
	if purge {
		stmts = append(stmts,
			"DELETE FROM "+table,
			fmt.Sprintf("INSERT INTO %s (version_id, is_applied) VALUES (0, true)", table))
		for _, v := range versions {
			stmts = append(stmts, fmt.Sprintf("INSERT INTO %s (version_id, is_applied) VALUES (%d, true)", table, v))
		}
		return stmts
	}
	stmts = append(stmts, fmt.Sprintf("DELETE FROM %s WHERE version_id > %d", table, version))
	for _, v := range versions {
		stmts = append(stmts, fmt.Sprintf(
			"INSERT INTO %[1]s (version_id, is_applied) SELECT %[2]d, true WHERE NOT EXISTS (SELECT 1 FROM %[1]s WHERE version_id = %[2]d AND is_applied)",
			table, v))
	}
	return stmts
}

func quoteQualified(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// gooseLogger sends goose's progress messages to the user
// and its fatal errors to zap.
type gooseLogger struct {
	out io.Writer
	log *zap.Logger
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	io.WriteString(l.out, msg)
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Sugar().Fatalf(format, v...)
}
