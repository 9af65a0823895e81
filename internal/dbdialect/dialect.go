// Package dbdialect isolates the handful of SQL constructs that differ
// between SQLite and PostgreSQL so the storage layer can express each
// operation once and let the dialect fill in placeholders and clauses.
package dbdialect

import (
	"fmt"
	"strings"
)

// Name identifies a supported SQL backend.
type Name string

const (
	SQLite     Name = "sqlite"
	PostgreSQL Name = "postgres"
)

// Dialect abstracts the wire-level and statement-level differences between
// backends used by the URL Store and Index Job Queue claim operations.
type Dialect interface {
	Name() Name

	// Placeholder returns the parameter marker for the n-th (1-indexed)
	// bound argument in a statement: "?" for SQLite, "$n" for PostgreSQL.
	Placeholder(n int) string

	// Rebind rewrites a statement written with "?" placeholders into this
	// dialect's native placeholder style, leaving SQLite statements untouched.
	Rebind(query string) string

	// InsertIgnore returns the clause used to insert a row while silently
	// skipping a conflict on the named unique column(s): "INSERT OR IGNORE"
	// for SQLite, "INSERT ... ON CONFLICT (...) DO NOTHING" for PostgreSQL.
	InsertIgnoreClause(conflictColumns string) string

	// UpsertClause returns the clause appended after VALUES(...) to turn a
	// plain INSERT into an upsert keyed on conflictColumns, setting every
	// column in updateColumns to its newly proposed value.
	UpsertClause(conflictColumns string, updateColumns []string) string

	// ReturningClause returns "RETURNING <cols>" on both backends used here;
	// kept as a method so call sites don't special-case dialects that lack it.
	ReturningClause(columns string) string
}

type sqliteDialect struct{}

// SQLiteDialect is the Dialect for the CGO-free modernc.org/sqlite driver.
var SQLiteDialect Dialect = sqliteDialect{}

func (sqliteDialect) Name() Name                { return SQLite }
func (sqliteDialect) Placeholder(n int) string   { return "?" }
func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) InsertIgnoreClause(conflictColumns string) string {
	return "OR IGNORE"
}

func (sqliteDialect) UpsertClause(conflictColumns string, updateColumns []string) string {
	sets := make([]string, len(updateColumns))
	for i, c := range updateColumns {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", conflictColumns, strings.Join(sets, ", "))
}

func (sqliteDialect) ReturningClause(columns string) string {
	return "RETURNING " + columns
}

type postgresDialect struct{}

// PostgresDialect is the Dialect for github.com/jackc/pgx/v5.
var PostgresDialect Dialect = postgresDialect{}

func (postgresDialect) Name() Name { return PostgreSQL }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// Rebind walks the query left to right, replacing each "?" with the next
// "$n" marker. Statements in this codebase never embed a literal "?".
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) InsertIgnoreClause(conflictColumns string) string {
	return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", conflictColumns)
}

func (postgresDialect) UpsertClause(conflictColumns string, updateColumns []string) string {
	sets := make([]string, len(updateColumns))
	for i, c := range updateColumns {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", conflictColumns, strings.Join(sets, ", "))
}

func (postgresDialect) ReturningClause(columns string) string {
	return "RETURNING " + columns
}

// For parses a dialect name out of a database URL scheme ("sqlite://" or
// "postgres://"/"postgresql://"), matching the SE_DATABASE_URL convention.
func For(databaseURL string) (Dialect, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return SQLiteDialect, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return PostgresDialect, nil
	default:
		return nil, fmt.Errorf("dbdialect: unrecognized database URL scheme in %q", databaseURL)
	}
}
