package testutil

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
)

func TestStubDBStoresAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	for _, id := range []string{"a1", "a2"} {
		site := "site-1"
		if id == "a2" {
			site = "site-2"
		}
		_, err := conn.ExecContext(ctx, "INSERT INTO assets (site_id, id) VALUES ($1,$2)", []driver.NamedValue{
			{Value: site},
			{Value: id},
		})
		if err != nil {
			t.Fatalf("ExecContext insert: %v", err)
		}
	}

	rows, err := conn.QueryContext(ctx, "SELECT id FROM assets WHERE site_id = $1 ORDER BY position", []driver.NamedValue{{Value: "site-2"}})
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 1)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "a2" {
		t.Fatalf("unexpected row values: %v", dest)
	}
	if err := rows.Next(dest); err == nil {
		t.Fatalf("expected filtered result to hold one row")
	}
}

func TestStubCascadeAndRollback(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.Cascade = map[string][]string{"sites": {"assets"}}
	conn.Tables["sites"] = []map[string]any{{"id": "s1"}}
	conn.Tables["assets"] = []map[string]any{{"site_id": "s1", "id": "a1"}}

	tx, err := conn.BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := conn.ExecContext(ctx, "DELETE FROM sites WHERE id = $1", []driver.NamedValue{{Value: "s1"}}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(conn.Tables["assets"]) != 0 {
		t.Fatalf("expected cascade to drop assets, got %v", conn.Tables["assets"])
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(conn.Tables["sites"]) != 1 || len(conn.Tables["assets"]) != 1 {
		t.Fatalf("expected rollback to restore rows, got %v", conn.Tables)
	}
	if conn.Rollbacks != 1 || conn.Commits != 0 {
		t.Fatalf("unexpected tx counters: commits=%d rollbacks=%d", conn.Commits, conn.Rollbacks)
	}
}

func TestStubExecErrors(t *testing.T) {
	_, conn := NewStubDB()
	boom := errors.New("boom")
	conn.ExecErrors = map[string]error{"lock_timeout": boom}
	_, err := conn.ExecContext(context.Background(), "SET LOCAL lock_timeout = '10ms'", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
}

func TestStubParsesMultiLineStatements(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	insert := "INSERT INTO\n\tasset_history (asset_id, date, action, author)\n\tVALUES ($1, $2, $3, $4)"
	args := []driver.NamedValue{{Value: "a1"}, {Value: "2024-01-01"}, {Value: "Asset Created"}, {Value: "CB"}}
	if _, err := conn.ExecContext(ctx, insert, args); err != nil {
		t.Fatalf("ExecContext insert: %v", err)
	}

	query := "SELECT asset_id, date, action, author\n\t\tFROM asset_history\n\t\tWHERE asset_id = $1\n\t\tORDER BY position"
	rows, err := conn.QueryContext(ctx, query, []driver.NamedValue{{Value: "a1"}})
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	dest := make([]driver.Value, 4)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[2] != "Asset Created" || dest[3] != "CB" {
		t.Fatalf("unexpected row values: %v", dest)
	}

	if _, err := conn.ExecContext(ctx, "DELETE FROM asset_history\n\tWHERE asset_id = $1", []driver.NamedValue{{Value: "a1"}}); err != nil {
		t.Fatalf("ExecContext delete: %v", err)
	}
	if got := len(conn.Tables["asset_history"]); got != 0 {
		t.Fatalf("expected history to be empty, got %d rows", got)
	}
}
