// Package mdb implements the Connection and Connection Pool components:
// a single pooled database session and the bounded pool that owns a
// fixed set of them.
package mdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/corebooks/erp-core/internal/mvalue"
	"github.com/corebooks/erp-core/pkg/merrors"
)

// Row is one result row, keyed by column name.
type Row map[string]mvalue.Value

// Connection wraps one *sql.DB-backed session. Only one transaction may
// be open on a Connection at a time; Reset is called by the pool
// before the Connection is handed out again.
type Connection struct {
	mu      sync.Mutex
	dsn     string
	db      *sql.DB
	tx      *sql.Tx
	open_   bool
	lastErr string
}

func newConnection(dsn string) *Connection {
	return &Connection{dsn: dsn}
}

// NewForTest wraps an already-open *sql.DB (typically a sqlmock handle)
// as a Connection, for use by other packages' tests that need a
// Connection without a real database.
func NewForTest(db *sql.DB) *Connection {
	return &Connection{db: db, open_: true}
}

// Open is idempotent; it opens the underlying *sql.DB handle.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open_ {
		return nil
	}

	db, err := sql.Open("pgx", c.dsn)
	if err != nil {
		c.lastErr = err.Error()
		return merrors.Wrap(merrors.DatabaseError, err, "mdb: open")
	}

	if err := db.PingContext(ctx); err != nil {
		c.lastErr = err.Error()
		return merrors.Wrap(merrors.DatabaseError, err, "mdb: ping")
	}

	c.db = db
	c.open_ = true

	return nil
}

// Close is idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open_ {
		return nil
	}

	var err error
	if c.db != nil {
		err = c.db.Close()
	}
	c.open_ = false
	c.tx = nil

	return err
}

func (c *Connection) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.open_
}

// Execute runs a non-query statement. params is ordered by appearance of
// named placeholders in sql; unknown or mistyped params fail with
// InvalidInput.
func (c *Connection) Execute(ctx context.Context, sqlText string, params map[string]mvalue.Value) (bool, error) {
	args, placeholders, err := bindParams(sqlText, params)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open_ {
		c.lastErr = "connection not open"
		return false, merrors.New(merrors.DatabaseError, "mdb: execute on closed connection")
	}

	runner := sqlRunner(c)
	translated := translatePlaceholders(sqlText, placeholders)

	_, err = runner.ExecContext(ctx, translated, args...)
	if err != nil {
		c.lastErr = err.Error()
		return false, merrors.Wrap(merrors.DatabaseError, err, "mdb: execute")
	}

	return true, nil
}

// Query runs a statement returning rows.
func (c *Connection) Query(ctx context.Context, sqlText string, params map[string]mvalue.Value) ([]Row, error) {
	args, placeholders, err := bindParams(sqlText, params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open_ {
		c.lastErr = "connection not open"
		return nil, merrors.New(merrors.DatabaseError, "mdb: query on closed connection")
	}

	runner := sqlRunner(c)
	translated := translatePlaceholders(sqlText, placeholders)

	rows, err := runner.QueryContext(ctx, translated, args...)
	if err != nil {
		c.lastErr = err.Error()
		return nil, merrors.Wrap(merrors.DatabaseError, err, "mdb: query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		c.lastErr = err.Error()
		return nil, merrors.Wrap(merrors.DatabaseError, err, "mdb: columns")
	}

	var out []Row

	for rows.Next() {
		scanDest := make([]any, len(cols))
		scanBuf := make([]any, len(cols))

		for i := range scanDest {
			scanDest[i] = &scanBuf[i]
		}

		if err := rows.Scan(scanDest...); err != nil {
			c.lastErr = err.Error()
			return nil, merrors.Wrap(merrors.DatabaseError, err, "mdb: scan")
		}

		row := make(Row, len(cols))

		for i, col := range cols {
			v, err := mvalue.FromAny(scanBuf[i])
			if err != nil {
				return nil, merrors.Wrap(merrors.DatabaseError, err, "mdb: decode column "+col)
			}

			row[col] = v
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		c.lastErr = err.Error()
		return nil, merrors.Wrap(merrors.DatabaseError, err, "mdb: rows")
	}

	return out, nil
}

// BeginTransaction opens a transaction on this connection. Only one may
// be open at a time.
func (c *Connection) BeginTransaction(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open_ {
		return merrors.New(merrors.DatabaseError, "mdb: begin on closed connection")
	}

	if c.tx != nil {
		return merrors.New(merrors.DatabaseError, "mdb: transaction already open")
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		c.lastErr = err.Error()
		return merrors.Wrap(merrors.DatabaseError, err, "mdb: begin")
	}

	c.tx = tx

	return nil
}

// CommitTransaction commits the open transaction, if any.
func (c *Connection) CommitTransaction() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx == nil {
		return merrors.New(merrors.DatabaseError, "mdb: commit without open transaction")
	}

	err := c.tx.Commit()
	c.tx = nil

	if err != nil {
		c.lastErr = err.Error()
		return merrors.Wrap(merrors.DatabaseError, err, "mdb: commit")
	}

	return nil
}

// RollbackTransaction rolls back the open transaction, if any. It is
// safe to call with no open transaction.
func (c *Connection) RollbackTransaction() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx == nil {
		return nil
	}

	err := c.tx.Rollback()
	c.tx = nil

	if err != nil {
		c.lastErr = err.Error()
		return merrors.Wrap(merrors.DatabaseError, err, "mdb: rollback")
	}

	return nil
}

// Reset rolls back any in-flight transaction and clears per-connection
// state. Safe to call on a closed connection.
func (c *Connection) Reset() {
	c.mu.Lock()
	tx := c.tx
	c.tx = nil
	c.mu.Unlock()

	if tx != nil {
		_ = tx.Rollback()
	}
}

// LastError returns the engine message from the most recently failed op.
func (c *Connection) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastErr
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// sqlRunner returns the transaction if one is open, else the pooled db
// handle. Caller must hold c.mu.
func sqlRunner(c *Connection) execer {
	if c.tx != nil {
		return c.tx
	}

	return c.db
}

// bindParams walks sql for named placeholders (":name") in order of
// first appearance, rejecting any not present in params, and returns
// the ordered argument slice plus the placeholder order.
func bindParams(sqlText string, params map[string]mvalue.Value) ([]any, []string, error) {
	order := extractPlaceholders(sqlText)

	args, err := mvalue.Map2Args(params, order)
	if err != nil {
		return nil, nil, merrors.Wrap(merrors.InvalidInput, err, "mdb: bind parameters")
	}

	return args, order, nil
}

func extractPlaceholders(sqlText string) []string {
	var out []string

	seen := make(map[string]bool)

	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		if runes[i] != ':' {
			continue
		}

		j := i + 1
		for j < len(runes) && isIdentRune(runes[j]) {
			j++
		}

		if j > i+1 {
			name := string(runes[i+1 : j])
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}

			i = j - 1
		}
	}

	return out
}

func isIdentRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// translatePlaceholders rewrites ":name" placeholders into pgx's
// positional "$n" form, in the order args were bound.
func translatePlaceholders(sqlText string, order []string) string {
	if len(order) == 0 {
		return sqlText
	}

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i + 1
	}

	var b []byte

	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		if runes[i] != ':' {
			b = append(b, string(runes[i])...)
			continue
		}

		j := i + 1
		for j < len(runes) && isIdentRune(runes[j]) {
			j++
		}

		if j > i+1 {
			name := string(runes[i+1 : j])
			if n, ok := pos[name]; ok {
				b = append(b, fmt.Sprintf("$%d", n)...)
				i = j - 1
				continue
			}
		}

		b = append(b, string(runes[i])...)
	}

	return string(b)
}
