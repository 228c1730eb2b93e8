package spellbook

import (
	"strconv"

	"github.com/grimoire-orm/grimoire/engine/ast"
	"github.com/grimoire-orm/grimoire/engine/schema"
)

func (f *formatter) formatLimit(limit, offset int) {
	switch f.driver.Dialect {
	case schema.MySQL:
		f.formatMySQLLimit(limit, offset)
	case schema.SQLite:
		f.formatSQLiteLimit(limit, offset)
	default:
		f.formatPostgresLimit(limit, offset)
	}
}

// formatDMLLimit renders LIMIT on UPDATE and DELETE where the dialect
// allows it; postgres has no such clause.
func (f *formatter) formatDMLLimit(limit int) {
	if f.driver.Dialect == schema.Postgres || limit <= 0 {
		return
	}
	f.write(" LIMIT " + strconv.Itoa(limit))
}

func (f *formatter) formatUpsertTail() error {
	if f.driver.Dialect == schema.MySQL {
		return f.formatMySQLUpsert()
	}
	return f.formatConflictUpsert()
}

func (f *formatter) formatFunc(fn *ast.Func) error {
	if f.driver.Dialect == schema.Postgres {
		if done, err := f.formatPostgresFunc(fn); done || err != nil {
			return err
		}
	}
	f.write(fn.Name + "(")
	for i, arg := range fn.Args {
		if i > 0 {
			f.write(", ")
		}
		if err := f.formatNode(arg); err != nil {
			return err
		}
	}
	f.write(")")
	return nil
}
