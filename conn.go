package tenantschema

import (
	"context"
	"database/sql/driver"

	"github.com/pkg/errors"
)

// assert *Conn satisfies the driver.Conn interface
var _ driver.Conn = (*Conn)(nil)

type ctxConn interface {
	driver.Conn
	driver.ExecerContext
	driver.QueryerContext
	driver.ConnBeginTx
	driver.ConnPrepareContext

	// Deprecated in Go 1.10: golang/go: 5327148
	driver.Execer
	driver.Queryer
}

// Conn implements driver.Conn.
type Conn struct {
	ctxConn
	driver *Driver
}

func (c *Conn) translate(ctx context.Context, query string) (string, error) {
	m := TranslateMap(ctx)
	if len(m) == 0 {
		return query, nil
	}
	if found, ok := c.driver.cache.lookup(m, query); ok {
		c.driver.Metrics.translation("hit")
		return found, nil
	}
	translated, err := Translate(query, m)
	if err != nil {
		c.driver.Metrics.translation("error")
		return "", errors.Wrap(err, query)
	}
	c.driver.cache.add(m, query, translated)
	c.driver.Metrics.translation("miss")
	return translated, nil
}

// Prepare prepares the given query string unchanged.
// There is no context here to carry a SchemaTranslateMap;
// use PrepareContext (via sql.DB.PrepareContext and friends) to get translation.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return c.ctxConn.Prepare(query)
}

// PrepareContext implements driver.ConnPrepareContext.PrepareContext.
// The query is translated according to the SchemaTranslateMap in ctx, if any.
func (c *Conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	translated, err := c.translate(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.ctxConn.PrepareContext(ctx, translated)
}

// Close implements driver.Conn.Close.
func (c *Conn) Close() error {
	return c.ctxConn.Close()
}

// Begin implements driver.Conn.Begin.
func (c *Conn) Begin() (driver.Tx, error) {
	return c.ctxConn.Begin()
}

// QueryContext implements driver.QueryerContext.QueryContext.
// If ctx carries a SchemaTranslateMap (see WithSchemaTranslateMap)
// the query's table references are rewritten before it is sent.
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	translated, err := c.translate(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.ctxConn.QueryContext(ctx, translated, args)
}

// ExecContext implements driver.ExecerContext.ExecContext.
// If ctx carries a SchemaTranslateMap (see WithSchemaTranslateMap)
// the query's table references are rewritten before it is sent.
func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	translated, err := c.translate(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.ctxConn.ExecContext(ctx, translated, args)
}
