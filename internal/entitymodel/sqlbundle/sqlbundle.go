// Package sqlbundle hands the embedded site-graph DDL to the persistence
// adapters, one executable statement at a time.
package sqlbundle

import (
	"fmt"
	"strings"

	sqldocs "calibtrack/docs/schema/sql"
)

// SQLite returns the SQLite DDL for the site graph.
func SQLite() string { return sqldocs.SQLite }

// Postgres returns the Postgres DDL for the site graph.
func Postgres() string { return sqldocs.Postgres }

// For returns the DDL of a named dialect ("sqlite" or "postgres").
func For(dialect string) (string, error) {
	switch strings.ToLower(dialect) {
	case "sqlite":
		return SQLite(), nil
	case "postgres", "postgresql":
		return Postgres(), nil
	}
	return "", fmt.Errorf("no schema bundle for dialect %q", dialect)
}

// SplitStatements cuts a DDL script at top-level semicolons. Line comments
// are dropped; semicolons inside quoted strings or identifiers do not end a
// statement. Each returned statement keeps its terminating semicolon except a
// trailing unterminated one.
func SplitStatements(ddl string) []string {
	var (
		stmts []string
		cur   strings.Builder
		quote rune
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" && s != ";" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}
	rs := []rune(ddl)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			cur.WriteRune(r)
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			cur.WriteRune('\n')
		case r == ';':
			cur.WriteRune(r)
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return stmts
}
