package schema

import "strings"

// Dialect identifies a SQL flavor the compiler can target.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Driver describes the executing backend at its interface boundary. The
// core never touches a connection; it only needs the dialect identity and
// its capabilities.
type Driver struct {
	Dialect           Dialect
	SupportsReturning bool
}

// NewDriver returns the descriptor for a dialect with its default
// capability flags.
func NewDriver(dialect Dialect) Driver {
	return Driver{
		Dialect:           dialect,
		SupportsReturning: dialect == Postgres || dialect == SQLite,
	}
}

// EscapeIdentifier quotes an identifier for the dialect: backticks for
// mysql/sqlite, double quotes for postgres.
func (d Driver) EscapeIdentifier(name string) string {
	if d.Dialect == Postgres {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// Supported reports whether the dialect is one the spellbook can render.
func (d Driver) Supported() bool {
	switch d.Dialect {
	case MySQL, Postgres, SQLite:
		return true
	}
	return false
}
