package tenantschema

import (
	"context"
	"database/sql"
)

// ExecutionOptions are the per-engine settings applied to every query
// issued through the engine.
type ExecutionOptions struct {
	SchemaTranslateMap SchemaTranslateMap
}

// Engine is a database handle plus execution options.
// Engines derived with ExecutionOptions share the underlying *sql.DB.
type Engine struct {
	db   *sql.DB
	opts ExecutionOptions
}

// NewEngine returns an Engine over db with no execution options.
// For schema translation to take effect,
// db must have been opened through this package's Driver (see Open).
func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// ExecutionOptions returns a copy of e with opts in effect.
func (e *Engine) ExecutionOptions(opts ExecutionOptions) *Engine {
	return &Engine{db: e.db, opts: opts}
}

// DB returns the underlying database handle.
func (e *Engine) DB() *sql.DB { return e.db }

// SchemaTranslateMap returns the translation map in effect for e, or nil.
func (e *Engine) SchemaTranslateMap() SchemaTranslateMap { return e.opts.SchemaTranslateMap }

func (e *Engine) context(ctx context.Context) context.Context {
	if len(e.opts.SchemaTranslateMap) == 0 {
		return ctx
	}
	return WithSchemaTranslateMap(ctx, e.opts.SchemaTranslateMap)
}

// Engine returns the config's engine, opening it on first use.
func (c *Config) Engine() (*Engine, error) {
	c.engineOnce.Do(func() {
		db, err := Open(c.DSN, c.Metrics)
		if err != nil {
			c.engineErr = err
			return
		}
		c.engine = NewEngine(db)
	})
	return c.engine, c.engineErr
}
