// Package testutil provides a table-backed stub database for postgres
// repository tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Uint64

// StubConn records statements and keeps inserted rows per table. Queries
// honour a single "WHERE col = $1" predicate; ordering is insertion order.
type StubConn struct {
	Execs      []string
	Tables     map[string][]map[string]any
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	RowsErr    error
	FailTables map[string]bool
	// ExecErrors returns the mapped error for any statement containing the key.
	ExecErrors map[string]error
	// Cascade lists child tables whose rows sharing site_id are dropped with
	// a parent delete.
	Cascade   map[string][]string
	Commits   int
	Rollbacks int

	saved map[string][]map[string]any
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailExec {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	c.saved = make(map[string][]map[string]any, len(c.Tables))
	for table, rows := range c.Tables {
		c.saved[table] = append([]map[string]any(nil), rows...)
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	for key, err := range c.ExecErrors {
		if strings.Contains(query, key) {
			return nil, err
		}
	}
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT INTO"):
		return c.insert(query, args)
	case strings.HasPrefix(upper, "DELETE FROM"):
		return c.delete(query, args)
	}
	return driver.RowsAffected(0), nil
}

func (c *StubConn) insert(query string, args []driver.NamedValue) (driver.Result, error) {
	table, cols, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("exec fail for %s", table)
	}
	if len(cols) != len(args) {
		return nil, fmt.Errorf("column/arg mismatch for %s", table)
	}
	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = args[i].Value
	}
	if strings.Contains(strings.ToUpper(query), "ON CONFLICT") && len(cols) > 0 {
		primary := cols[0]
		var filtered []map[string]any
		for _, existing := range c.Tables[table] {
			if existing[primary] == row[primary] {
				continue
			}
			filtered = append(filtered, existing)
		}
		c.Tables[table] = filtered
	}
	c.Tables[table] = append(c.Tables[table], row)
	return driver.RowsAffected(1), nil
}

func (c *StubConn) delete(query string, args []driver.NamedValue) (driver.Result, error) {
	table, col, err := parseDelete(query)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("missing args for delete %s", table)
	}
	target := args[0].Value
	n := c.dropWhere(table, col, target)
	for _, child := range c.Cascade[table] {
		c.dropWhere(child, "site_id", target)
	}
	return driver.RowsAffected(n), nil
}

func (c *StubConn) dropWhere(table, col string, target any) int64 {
	var kept []map[string]any
	var n int64
	for _, row := range c.Tables[table] {
		if row[col] == target {
			n++
			continue
		}
		kept = append(kept, row)
	}
	c.Tables[table] = kept
	return n
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.Tables == nil {
		c.Tables = make(map[string][]map[string]any)
	}
	table, cols, where, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if c.FailTables[table] {
		return nil, fmt.Errorf("query fail for %s", table)
	}
	values := make([][]driver.Value, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		if where != "" && len(args) > 0 && row[where] != args[0].Value {
			continue
		}
		vals := make([]driver.Value, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: cols, rows: values, err: c.RowsErr}, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	t.conn.Commits++
	t.conn.saved = nil
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.Rollbacks++
	if t.conn.saved != nil {
		t.conn.Tables = t.conn.saved
		t.conn.saved = nil
	}
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

// normalizeSQL folds runs of whitespace, including the newlines and tabs of
// multi-line statements, into single spaces.
func normalizeSQL(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

func parseInsert(query string) (string, []string, error) {
	query = normalizeSQL(query)
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, fmt.Errorf("cannot parse insert: %s", query)
	}
	table := strings.ToLower(strings.TrimSpace(rest[:open]))
	cols := splitColumns(rest[open+1 : closeIdx])
	return table, cols, nil
}

func parseDelete(query string) (string, string, error) {
	lower := strings.ToLower(normalizeSQL(query))
	prefix := "delete from "
	if !strings.HasPrefix(lower, prefix) {
		return "", "", fmt.Errorf("cannot parse delete: %s", query)
	}
	rest := strings.TrimSpace(lower[len(prefix):])
	whereIdx := strings.Index(rest, " where ")
	if whereIdx == -1 {
		return "", "", fmt.Errorf("cannot parse delete: %s", query)
	}
	table := strings.TrimSpace(rest[:whereIdx])
	col, ok := predicateColumn(rest[whereIdx:])
	if !ok {
		return "", "", fmt.Errorf("cannot parse delete predicate: %s", query)
	}
	return table, col, nil
}

func parseSelect(query string) (string, []string, string, error) {
	lower := strings.ToLower(normalizeSQL(query))
	selectPrefix := "select "
	fromToken := " from "
	if !strings.HasPrefix(lower, selectPrefix) {
		return "", nil, "", fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, fromToken)
	if fromIdx == -1 {
		return "", nil, "", fmt.Errorf("cannot parse select: %s", query)
	}
	cols := lower[len(selectPrefix):fromIdx]
	fields := strings.Fields(lower[fromIdx+len(fromToken):])
	if len(fields) == 0 {
		return "", nil, "", fmt.Errorf("cannot parse select: %s", query)
	}
	where := ""
	if idx := strings.Index(lower[fromIdx:], " where "); idx != -1 {
		where, _ = predicateColumn(lower[fromIdx+idx:])
	}
	return fields[0], splitColumns(cols), where, nil
}

func predicateColumn(clause string) (string, bool) {
	clause = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(clause), "where"))
	parts := strings.SplitN(clause, "=", 2)
	if len(parts) != 2 {
		return "", false
	}
	return strings.TrimSpace(parts[0]), true
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
