package spellbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grimoire-orm/grimoire/engine/ast"
)

func (f *formatter) formatPostgresLimit(limit, offset int) {
	if limit > 0 {
		f.write(" LIMIT " + strconv.Itoa(limit))
	}
	if offset > 0 {
		f.write(" OFFSET " + strconv.Itoa(offset))
	}
}

var pgExtractFields = map[string]string{
	"YEAR":   "YEAR",
	"MONTH":  "MONTH",
	"DAY":    "DAY",
	"HOUR":   "HOUR",
	"MINUTE": "MINUTE",
	"SECOND": "SECOND",
}

// formatPostgresFunc rewrites MySQL-flavored date part functions into
// EXTRACT. It reports whether it handled the call.
func (f *formatter) formatPostgresFunc(fn *ast.Func) (bool, error) {
	field, ok := pgExtractFields[fn.Name]
	if !ok || len(fn.Args) != 1 {
		return false, nil
	}
	f.write("EXTRACT(" + field + " FROM ")
	if err := f.formatNode(fn.Args[0]); err != nil {
		return true, err
	}
	f.write(")")
	return true, nil
}

// formatConflictUpsert renders ON CONFLICT against the primary key
// column, used by both postgres and sqlite.
func (f *formatter) formatConflictUpsert() error {
	s := f.spell
	pk, ok := s.Model.ColumnFor(s.Model.PrimaryKey)
	if !ok {
		return fmt.Errorf("%w: primary key %q on model %s",
			ErrUnknownColumn, s.Model.PrimaryKey, s.Model.Name)
	}
	cols, err := f.setColumns()
	if err != nil {
		return err
	}

	f.write(" ON CONFLICT (" + f.escape(pk) + ")")
	first := true
	for _, c := range cols {
		if c.attr == s.Model.PrimaryKey {
			continue
		}
		if first {
			f.write(" DO UPDATE SET ")
		} else {
			f.write(", ")
		}
		f.write(f.escape(c.column) + " = EXCLUDED." + f.escape(c.column))
		first = false
	}
	if first {
		f.write(" DO NOTHING")
	}
	return nil
}

// substituteAliases rewrites select-list aliases in HAVING back to their
// expressions; postgres forbids referring to output columns there.
func substituteAliases(conds []ast.Node, aliases map[string]ast.Node) []ast.Node {
	if len(aliases) == 0 {
		return conds
	}
	out := make([]ast.Node, len(conds))
	for i, cond := range conds {
		out[i] = substituteNode(cond, aliases)
	}
	return out
}

func substituteNode(n ast.Node, aliases map[string]ast.Node) ast.Node {
	switch node := n.(type) {
	case *ast.ID:
		if len(node.Qualifiers) == 0 {
			if expr, ok := aliases[node.Value]; ok {
				return expr
			}
		}
	case *ast.Op:
		args := make([]ast.Node, len(node.Args))
		for i, arg := range node.Args {
			args[i] = substituteNode(arg, aliases)
		}
		return &ast.Op{Name: node.Name, Args: args, Position: node.Position}
	case *ast.Func:
		args := make([]ast.Node, len(node.Args))
		for i, arg := range node.Args {
			args[i] = substituteNode(arg, aliases)
		}
		return &ast.Func{Name: node.Name, Args: args, Position: node.Position}
	case *ast.Mod:
		return &ast.Mod{Name: node.Name, Expr: substituteNode(node.Expr, aliases), Position: node.Position}
	}
	return n
}

// numberPlaceholders converts ? markers to $1..$n. Literal values never
// render inline, so every ? in the SQL is a marker.
func numberPlaceholders(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			b.WriteByte(sql[i])
			continue
		}
		n++
		b.WriteString("$" + strconv.Itoa(n))
	}
	return b.String()
}
