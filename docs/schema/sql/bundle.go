// Package sqldocs exposes the relational schema bundles directly from the
// docs tree.
package sqldocs

import _ "embed"

// SQLite contains the SQLite DDL for the site graph.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the Postgres DDL for the site graph.
//
//go:embed postgres.sql
var Postgres string
