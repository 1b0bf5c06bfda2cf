package tenantschema

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Session is a unit of database work bound to an Engine.
// It holds one connection from the engine's pool,
// acquired on first use and released by Close,
// and applies the engine's SchemaTranslateMap to every query.
//
// A Session is not safe for concurrent use.
type Session struct {
	bind   *Engine
	conn   *sql.Conn
	closed bool
}

// ErrSessionClosed is returned by operations on a closed Session.
var ErrSessionClosed = errors.New("session closed")

// SessionOption configures a Session created by a SessionMaker.
type SessionOption func(*Session)

// Bind makes a session use e instead of the SessionMaker's default engine.
func Bind(e *Engine) SessionOption {
	return func(s *Session) { s.bind = e }
}

// SessionMaker creates sessions.
type SessionMaker func(opts ...SessionOption) *Session

// NewSessionMaker returns a SessionMaker whose sessions are bound to e
// unless a Bind option says otherwise.
func NewSessionMaker(e *Engine) SessionMaker {
	return func(opts ...SessionOption) *Session {
		s := &Session{bind: e}
		for _, opt := range opts {
			opt(s)
		}
		return s
	}
}

// CreateSessionMaker returns a SessionMaker bound to the config's engine.
func (c *Config) CreateSessionMaker() (SessionMaker, error) {
	e, err := c.Engine()
	if err != nil {
		return nil, err
	}
	return NewSessionMaker(e), nil
}

// Bind returns the engine s is bound to.
func (s *Session) Bind() *Engine { return s.bind }

// SchemaTranslateMap returns the translation map applied to s's queries, or nil.
func (s *Session) SchemaTranslateMap() SchemaTranslateMap {
	if s.bind == nil {
		return nil
	}
	return s.bind.SchemaTranslateMap()
}

func (s *Session) connection(ctx context.Context) (*sql.Conn, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.conn != nil {
		return s.conn, nil
	}
	if s.bind == nil || s.bind.db == nil {
		return nil, errors.New("session is not bound to an engine")
	}
	conn, err := s.bind.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquiring connection")
	}
	s.conn = conn
	return conn, nil
}

// ExecContext executes a statement that returns no rows.
func (s *Session) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	return conn.ExecContext(s.bind.context(ctx), query, args...)
}

// QueryContext executes a query that returns rows.
func (s *Session) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	return conn.QueryContext(s.bind.context(ctx), query, args...)
}

// QueryRowContext executes a query that returns at most one row.
// Errors are deferred until the Row's Scan method is called.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...interface{}) *Row {
	conn, err := s.connection(ctx)
	if err != nil {
		return &Row{err: err}
	}
	return &Row{row: conn.QueryRowContext(s.bind.context(ctx), query, args...)}
}

// Row is the result of Session.QueryRowContext.
type Row struct {
	row *sql.Row
	err error
}

// Scan copies the columns of the row into dest.
// See sql.Row.Scan.
func (r *Row) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	return r.row.Scan(dest...)
}

// Err returns the error, if any, from running the query.
func (r *Row) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.row.Err()
}

// BeginTx starts a transaction on the session's connection.
func (s *Session) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	conn, err := s.connection(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTx(s.bind.context(ctx), opts)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	return &Tx{tx: tx, bind: s.bind}, nil
}

// Close releases the session's connection, if any.
// Closing a closed session is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Tx is a transaction begun from a Session.
// It applies the session's SchemaTranslateMap to every query.
type Tx struct {
	tx   *sql.Tx
	bind *Engine
}

// ExecContext executes a statement that returns no rows.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.tx.ExecContext(t.bind.context(ctx), query, args...)
}

// QueryContext executes a query that returns rows.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.tx.QueryContext(t.bind.context(ctx), query, args...)
}

// QueryRowContext executes a query that returns at most one row.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.tx.QueryRowContext(t.bind.context(ctx), query, args...)
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction.
func (t *Tx) Rollback() error { return t.tx.Rollback() }
