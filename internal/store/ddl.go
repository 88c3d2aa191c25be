package store

import (
	"strings"

	"github.com/roach88/eventbook/internal/record"
)

// DDL generation from a record.StoreSpec.
//
// Conventions: the first column of every table is its primary key; all
// columns are NOT NULL with a zero default so scans never see NULL. The
// spec compiler restricts column types to text/integer/real, but unknown
// types fall back to TEXT rather than failing here.

// columnAffinity maps a spec column type to its SQLite column definition.
func columnAffinity(typ string) string {
	switch strings.ToLower(typ) {
	case "integer":
		return "INTEGER NOT NULL DEFAULT 0"
	case "real":
		return "REAL NOT NULL DEFAULT 0"
	default:
		return "TEXT NOT NULL DEFAULT ''"
	}
}

// quoteIdent quotes an identifier for safe use in generated DDL.
// Spec-supplied names are operator input, not user input, but external
// spec files make them untrusted enough to quote.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS for one table spec.
func createTableSQL(t record.TableSpec) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(quoteIdent(t.Name))
	b.WriteString(" (\n")
	for i, col := range t.Columns {
		if i > 0 {
			b.WriteString(",\n")
		}
		b.WriteString("\t")
		b.WriteString(quoteIdent(col.Name))
		if i == 0 {
			b.WriteString(" TEXT PRIMARY KEY")
		} else {
			b.WriteString(" ")
			b.WriteString(columnAffinity(col.Type))
		}
	}
	b.WriteString("\n)")
	return b.String()
}

// createUniqueIndexSQL renders the composite unique index for a table
// spec, or "" when the spec declares none.
func createUniqueIndexSQL(t record.TableSpec) string {
	if len(t.Unique) == 0 {
		return ""
	}
	cols := make([]string, len(t.Unique))
	for i, c := range t.Unique {
		cols[i] = quoteIdent(c)
	}
	return "CREATE UNIQUE INDEX IF NOT EXISTS " +
		quoteIdent("idx_"+t.Name+"_"+strings.Join(t.Unique, "_")) +
		" ON " + quoteIdent(t.Name) + " (" + strings.Join(cols, ", ") + ")"
}

// seedInsertSQL renders the idempotent seed insert for one table spec.
// ON CONFLICT DO NOTHING keeps re-initialization from clobbering values
// an operator has changed since seeding.
func seedInsertSQL(t record.TableSpec) string {
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c.Name)
		marks[i] = "?"
	}
	return "INSERT INTO " + quoteIdent(t.Name) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")" +
		" ON CONFLICT DO NOTHING"
}
