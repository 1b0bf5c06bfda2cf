package tenantschema

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Driver implements database/sql/driver.Driver and driver.DriverContext.
// Connections made from it translate schema references
// for queries whose context carries a SchemaTranslateMap.
type Driver struct {
	// Metrics, if non-nil, counts translation cache hits and misses.
	Metrics *Metrics

	cache queryCache
}

// assert *Driver satisfies the driver.Driver and driver.DriverContext interfaces.
var (
	_ driver.Driver        = (*Driver)(nil)
	_ driver.DriverContext = (*Driver)(nil)
)

// Open implements driver.Driver.Open.
func (d *Driver) Open(name string) (driver.Conn, error) {
	connector, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector implements driver.DriverContext.OpenConnector.
func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	c, err := pq.NewConnector(name)
	if err != nil {
		return nil, errors.Wrap(err, "parsing connection string")
	}
	return &Connector{nested: c, driver: d}, nil
}

// Connector implements driver.Connector.
type Connector struct {
	nested *pq.Connector
	driver *Driver
}

// assert *Connector satisfies the driver.Connector interface.
var _ driver.Connector = (*Connector)(nil)

// Connect implements driver.Connector.Connect.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	nestedConn, err := c.nested.Connect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}
	nestedCtx, ok := nestedConn.(ctxConn)
	if !ok {
		return nil, errors.New("connection does not support context")
	}
	conn := &Conn{
		ctxConn: nestedCtx,
		driver:  c.driver,
	}
	return conn, nil
}

// Driver implements driver.Connector.Driver.
func (c *Connector) Driver() driver.Driver { return c.driver }

// Open is a convenient shorthand for:
//
//	driver := &tenantschema.Driver{}
//	connector, err := driver.OpenConnector(dsn)
//	if err != nil { ... }
//	db := sql.OpenDB(connector)
//
// No connection is made until the first query.
func Open(dsn string, metrics *Metrics) (*sql.DB, error) {
	d := &Driver{Metrics: metrics}
	c, err := d.OpenConnector(dsn)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(c), nil
}
