package tenantschema

import (
	"context"
	"database/sql"
	"net/url"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const schemaNamesQuery = `SELECT nspname FROM pg_catalog.pg_namespace WHERE nspname NOT LIKE 'pg\_%' AND nspname <> 'information_schema'`

// SchemaNames returns the names of all non-system schemas in the database.
func (c *Config) SchemaNames(ctx context.Context) ([]string, error) {
	engine, err := c.Engine()
	if err != nil {
		return nil, err
	}
	rows, err := engine.DB().QueryContext(ctx, schemaNamesQuery)
	if err != nil {
		return nil, errors.Wrap(err, "listing schemas")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scanning schema name")
		}
		names = append(names, name)
	}
	return names, errors.Wrap(rows.Err(), "listing schemas")
}

// TenantSchemas returns the sorted names of all tenant schemas in the database.
func (c *Config) TenantSchemas(ctx context.Context) ([]string, error) {
	names, err := c.SchemaNames(ctx)
	if err != nil {
		return nil, err
	}
	return c.filterTenantSchemas(names), nil
}

func (c *Config) filterTenantSchemas(names []string) []string {
	var result []string
	for _, name := range names {
		if c.IsTenantSchema(name) {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

// DropAll drops every tenant schema and then the core schema,
// with everything in them.
// Each schema is dropped in its own statement, committed before the next begins.
// It returns the schemas dropped before any error.
func (c *Config) DropAll(ctx context.Context) ([]string, error) {
	tenants, err := c.TenantSchemas(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := c.Engine()
	if err != nil {
		return nil, err
	}

	var dropped []string
	for _, schema := range dropOrder(tenants, c.CoreSchemaName) {
		if _, err := engine.DB().ExecContext(ctx, dropSchemaStmt(schema)); err != nil {
			return dropped, errors.Wrapf(err, "dropping schema %s", schema)
		}
		c.logger().Info("schema dropped", zap.String("schema", schema))
		dropped = append(dropped, schema)
	}
	return dropped, nil
}

// dropOrder lists the schemas DropAll removes:
// every tenant schema, then the core schema.
func dropOrder(tenants []string, core string) []string {
	order := make([]string, 0, len(tenants)+1)
	order = append(order, tenants...)
	return append(order, core)
}

func dropSchemaStmt(schema string) string {
	return "DROP SCHEMA IF EXISTS " + pq.QuoteIdentifier(schema) + " CASCADE"
}

// EnsureSchema creates schema if it does not exist.
func (c *Config) EnsureSchema(ctx context.Context, schema string) error {
	engine, err := c.Engine()
	if err != nil {
		return err
	}
	_, err = engine.DB().ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schema))
	return errors.Wrapf(err, "creating schema %s", schema)
}

// OpenSchemaDB opens a separate database handle
// whose connections resolve unqualified names in schema
// (falling back to public).
// Migrations run through it, so their own bookkeeping tables land in schema too.
// The caller must close it.
func (c *Config) OpenSchemaDB(schema string) (*sql.DB, error) {
	dsn, err := withSearchPath(c.DSN, schema+",public")
	if err != nil {
		return nil, err
	}
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parsing connection string")
	}
	return sql.OpenDB(connector), nil
}

// withSearchPath adds a search_path runtime parameter to a lib/pq connection string,
// in either its URL or its key=value form.
func withSearchPath(dsn, searchPath string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", errors.Wrap(err, "parsing connection URL")
		}
		q := u.Query()
		q.Set("search_path", searchPath)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	val := strings.ReplaceAll(searchPath, `\`, `\\`)
	val = strings.ReplaceAll(val, `'`, `\'`)
	return strings.TrimSpace(dsn + " search_path='" + val + "'"), nil
}
