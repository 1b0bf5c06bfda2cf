// Package migrate is the migration command API that the database CLI drives,
// plus an implementation over pressly/goose.
//
// An engine is pointed at one script directory
// and at a set of schemas, resolved lazily,
// each reached through its own database handle.
package migrate

import (
	"context"
	"database/sql"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Commands is the set of migration operations.
type Commands interface {
	// Current reports the current revision of every target schema.
	Current(context.Context, CurrentOptions) error

	// Upgrade migrates every target schema up to a revision.
	Upgrade(context.Context, UpgradeOptions) error

	// Downgrade migrates every target schema down to a revision.
	Downgrade(context.Context, DowngradeOptions) error

	// Init creates a script directory.
	Init(context.Context, InitOptions) error

	// Revision creates a new revision script.
	Revision(context.Context, RevisionOptions) error

	// Merge creates a revision joining several heads.
	Merge(context.Context, MergeOptions) error

	// Stamp records a revision as current without running any migrations.
	Stamp(context.Context, StampOptions) error
}

type (
	CurrentOptions struct {
		Verbose bool
	}

	UpgradeOptions struct {
		Revision string
		SQL      bool // print SQL instead of running it
		Tag      string
	}

	DowngradeOptions struct {
		Revision string
		SQL      bool
		Tag      string
	}

	InitOptions struct {
		Directory string
		Multidb   bool
		Package   bool // also create a Go package file
	}

	RevisionOptions struct {
		Message      string
		Autogenerate bool
		SQL          bool // create a SQL script rather than a Go one
		Head         string
		Splice       bool
		BranchLabel  string
		VersionPath  string // overrides the script directory
		RevID        string

		// ProcessRevisionDirectives, if set, may inspect and change
		// the scripts about to be written.
		// Returning no scripts cancels the revision.
		ProcessRevisionDirectives func([]*Script) []*Script
	}

	MergeOptions struct {
		Revisions   string
		Message     string
		BranchLabel string
		RevID       string
	}

	StampOptions struct {
		Revision string
		SQL      bool
		Tag      string
		Purge    bool // delete existing version records first
	}
)

// Script is a revision about to be written.
type Script struct {
	Message       string
	Autogenerated bool

	// UpgradeOps are the detected schema changes.
	// Engines that cannot compare models against the database leave it empty.
	UpgradeOps []string
}

// Empty reports whether the script would change nothing.
func (s *Script) Empty() bool { return len(s.UpgradeOps) == 0 }

// Config points an engine at its scripts and schemas.
type Config struct {
	// ScriptLocation is the script directory.
	ScriptLocation string

	// VersionTable is the per-schema table recording the current version.
	VersionTable string

	// Schemas returns the schemas to migrate.
	Schemas func(context.Context) ([]string, error)

	// Open returns a database handle whose unqualified names resolve in schema.
	// The engine closes it.
	Open func(schema string) (*sql.DB, error)

	// Prepare, if set, runs before a schema is migrated or stamped.
	// It typically creates the schema.
	Prepare func(ctx context.Context, schema string) error

	// Out receives user-facing output.
	Out io.Writer

	Logger *zap.Logger
}

var (
	// ErrUnsupported is returned for operations the engine cannot perform.
	ErrUnsupported = errors.New("not supported by this migration engine")

	// ErrUnknownRevision is returned for revision strings that cannot be resolved.
	ErrUnknownRevision = errors.New("unknown revision")
)

type tagKey struct{}

// WithTag attaches a user-supplied tag to ctx,
// where migrations written in Go can read it with Tag.
func WithTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, tagKey{}, tag)
}

// Tag returns the tag attached to ctx, or "".
func Tag(ctx context.Context) string {
	tag, _ := ctx.Value(tagKey{}).(string)
	return tag
}
