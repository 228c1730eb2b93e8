// Package spellbook renders accumulated query state into dialect SQL
// with a positional value list. Every literal except NULL becomes a
// placeholder; values are appended at the moment their placeholder is
// written, which keeps the two in lockstep across nested subqueries.
package spellbook

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/grimoire-orm/grimoire/engine/ast"
	"github.com/grimoire-orm/grimoire/engine/schema"
	"github.com/grimoire-orm/grimoire/engine/spell"
)

// Statement is a compiled query ready for database/sql.
type Statement struct {
	SQL    string
	Values []any
}

var (
	ErrUnsupportedDialect = errors.New("unsupported dialect")
	ErrUnknownColumn      = errors.New("unknown column")
	ErrAmbiguousColumn    = errors.New("ambiguous column")
	ErrShardingKey        = errors.New("sharding key must be given a non-null value")
	ErrEmptySets          = errors.New("no attribute values to write")
)

// Format compiles the spell for the driver's dialect. The spell itself is
// left untouched; scopes and the derived-table rewrite run on a private
// duplicate.
func Format(sp *spell.Spell, driver schema.Driver) (Statement, error) {
	if err := sp.Err(); err != nil {
		return Statement{}, err
	}
	if !driver.Supported() {
		return Statement{}, fmt.Errorf("%w: %q", ErrUnsupportedDialect, driver.Dialect)
	}

	dup := sp.Dup()
	dup.ApplyScopes()
	if err := checkSharding(dup); err != nil {
		return Statement{}, err
	}

	f := &formatter{driver: driver, spell: dup}
	var err error
	switch dup.Command {
	case spell.CommandSelect:
		err = f.formatSelect()
	case spell.CommandInsert:
		err = f.formatInsert()
	case spell.CommandUpdate:
		err = f.formatUpdate()
	case spell.CommandDelete:
		err = f.formatDelete()
	case spell.CommandUpsert:
		err = f.formatUpsertCmd()
	default:
		err = fmt.Errorf("unsupported command %d", dup.Command)
	}
	if err != nil {
		return Statement{}, err
	}

	sql := f.sql.String()
	if driver.Dialect == schema.Postgres {
		sql = numberPlaceholders(sql)
	}
	return Statement{SQL: sql, Values: f.values}, nil
}

type formatter struct {
	driver schema.Driver
	spell  *spell.Spell
	sql    strings.Builder
	values []any

	// select-list aliases, referencable from HAVING and ORDER BY
	aliases map[string]ast.Node
}

func (f *formatter) write(s string) { f.sql.WriteString(s) }

func (f *formatter) escape(name string) string { return f.driver.EscapeIdentifier(name) }

func (f *formatter) placeholder(value any) {
	f.write("?")
	f.values = append(f.values, value)
}

// ---------------------------------------------------------------------
// statements
// ---------------------------------------------------------------------

func (f *formatter) formatSelect() error {
	s := f.spell
	if s.NeedsDerivation() {
		if !s.Derivable() {
			return fmt.Errorf("%s: %w", s.Model.Name, spell.ErrNotDerivable)
		}
		s = s.Derive()
		f.spell = s
	}
	f.aliases = collectAliases(s.Columns)

	f.write("SELECT ")
	if err := f.formatSelectList(); err != nil {
		return err
	}

	f.write(" FROM ")
	if err := f.formatTable(); err != nil {
		return err
	}
	if err := f.formatJoins(); err != nil {
		return err
	}

	if err := f.formatWheres(); err != nil {
		return err
	}

	if len(s.Groups) > 0 {
		f.write(" GROUP BY ")
		for i, g := range s.Groups {
			if i > 0 {
				f.write(", ")
			}
			if err := f.formatNode(g); err != nil {
				return err
			}
		}
	}

	if len(s.Havings) > 0 {
		f.write(" HAVING ")
		havings := s.Havings
		if f.driver.Dialect == schema.Postgres {
			havings = substituteAliases(havings, f.aliases)
		}
		if err := f.formatCondList(havings); err != nil {
			return err
		}
	}

	if err := f.formatOrders(); err != nil {
		return err
	}

	f.formatLimit(s.RowCount, s.Skip)
	return nil
}

func (f *formatter) formatSelectList() error {
	s := f.spell
	if len(s.Columns) == 0 {
		if len(s.JoinOrder) == 0 {
			f.write("*")
			return nil
		}
		f.write(f.escape(s.Model.Alias()) + ".*")
		for _, alias := range s.JoinOrder {
			f.write(", " + f.escape(alias) + ".*")
		}
		return nil
	}
	for i, col := range s.Columns {
		if i > 0 {
			f.write(", ")
		}
		if err := f.formatNode(col); err != nil {
			return err
		}
	}
	return nil
}

func (f *formatter) formatTable() error {
	s := f.spell
	if sub, ok := s.Table.(*ast.Subquery); ok {
		if err := f.formatSubquery(sub); err != nil {
			return err
		}
		f.write(" AS " + f.escape(s.Model.Alias()))
		return nil
	}
	f.write(f.escape(s.Model.Table()))
	if len(s.JoinOrder) > 0 || s.Model.Alias() != s.Model.Table() {
		f.write(" AS " + f.escape(s.Model.Alias()))
	}
	return nil
}

func (f *formatter) formatJoins() error {
	s := f.spell
	for _, alias := range s.JoinOrder {
		join := s.Joins[alias]
		f.write(" LEFT JOIN " + f.escape(join.Model.Table()) + " AS " + f.escape(alias) + " ON ")
		if err := f.formatCondition(join.On); err != nil {
			return err
		}
	}
	return nil
}

func (f *formatter) formatWheres() error {
	if len(f.spell.Wheres) == 0 {
		return nil
	}
	f.write(" WHERE ")
	return f.formatCondList(f.spell.Wheres)
}

func (f *formatter) formatOrders() error {
	s := f.spell
	if len(s.Orders) == 0 {
		return nil
	}
	f.write(" ORDER BY ")
	for i, order := range s.Orders {
		if i > 0 {
			f.write(", ")
		}
		if err := f.formatNode(order.Expr); err != nil {
			return err
		}
		if order.Desc {
			f.write(" DESC")
		}
	}
	return nil
}

func (f *formatter) formatInsert() error {
	if err := f.formatInsertBody(); err != nil {
		return err
	}
	f.formatReturning()
	return nil
}

func (f *formatter) formatUpdate() error {
	s := f.spell
	cols, err := f.setColumns()
	if err != nil {
		return err
	}

	f.write("UPDATE " + f.escape(s.Model.Table()) + " SET ")
	for i, c := range cols {
		if i > 0 {
			f.write(", ")
		}
		f.write(f.escape(c.column) + " = ")
		if err := f.formatSetValue(c.value); err != nil {
			return err
		}
	}
	if err := f.formatWheres(); err != nil {
		return err
	}
	f.formatDMLLimit(s.RowCount)
	return nil
}

func (f *formatter) formatDelete() error {
	f.write("DELETE FROM " + f.escape(f.spell.Model.Table()))
	if err := f.formatWheres(); err != nil {
		return err
	}
	f.formatDMLLimit(f.spell.RowCount)
	return nil
}

func (f *formatter) formatUpsertCmd() error {
	if err := f.formatInsertBody(); err != nil {
		return err
	}
	if err := f.formatUpsertTail(); err != nil {
		return err
	}
	f.formatReturning()
	return nil
}

// formatInsertBody renders the INSERT prefix shared by insert and upsert,
// without the RETURNING tail.
func (f *formatter) formatInsertBody() error {
	s := f.spell
	cols, err := f.setColumns()
	if err != nil {
		return err
	}

	f.write("INSERT INTO " + f.escape(s.Model.Table()) + " (")
	for i, c := range cols {
		if i > 0 {
			f.write(", ")
		}
		f.write(f.escape(c.column))
	}
	f.write(") VALUES (")
	for i, c := range cols {
		if i > 0 {
			f.write(", ")
		}
		if err := f.formatSetValue(c.value); err != nil {
			return err
		}
	}
	f.write(")")
	return nil
}

func (f *formatter) formatReturning() {
	s := f.spell
	if !f.driver.SupportsReturning {
		return
	}
	pk, ok := s.Model.ColumnFor(s.Model.PrimaryKey)
	if !ok {
		return
	}
	f.write(" RETURNING " + f.escape(pk))
}

// setColumn pairs a resolved column with the attribute value to write.
type setColumn struct {
	attr   string
	column string
	value  any
}

// setColumns resolves Sets to columns in attribute order, so compiled SQL
// is stable across runs.
func (f *formatter) setColumns() ([]setColumn, error) {
	s := f.spell
	if len(s.Sets) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrEmptySets, s.Command, s.Model.Name)
	}
	attrs := make([]string, 0, len(s.Sets))
	for attr := range s.Sets {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)

	cols := make([]setColumn, len(attrs))
	for i, attr := range attrs {
		column, ok := s.Model.ColumnFor(attr)
		if !ok {
			return nil, fmt.Errorf("%w: %q on model %s", ErrUnknownColumn, attr, s.Model.Name)
		}
		cols[i] = setColumn{attr: attr, column: column, value: s.Sets[attr]}
	}
	return cols, nil
}

func (f *formatter) formatSetValue(value any) error {
	switch v := value.(type) {
	case nil:
		f.write("NULL")
	case ast.QueryValue:
		return f.formatSubquery(&ast.Subquery{Value: v})
	case ast.Node:
		return f.formatNode(v)
	default:
		f.placeholder(value)
	}
	return nil
}

// ---------------------------------------------------------------------
// expressions
// ---------------------------------------------------------------------

// formatCondList joins conditions with AND; each condition that is itself
// a lower-precedence logical expression gets wrapped.
func (f *formatter) formatCondList(conds []ast.Node) error {
	for i, cond := range conds {
		if i > 0 {
			f.write(" AND ")
		}
		if len(conds) > 1 {
			if err := f.formatOperand(cond, ast.OpAnd.Precedence(), false); err != nil {
				return err
			}
			continue
		}
		if err := f.formatCondition(cond); err != nil {
			return err
		}
	}
	return nil
}

func (f *formatter) formatCondition(cond ast.Node) error {
	return f.formatNode(cond)
}

func (f *formatter) formatNode(n ast.Node) error {
	switch node := n.(type) {
	case *ast.Literal:
		return f.formatLiteral(node)
	case *ast.ID:
		name, err := f.resolveID(node)
		if err != nil {
			return err
		}
		f.write(name)
	case *ast.Func:
		return f.formatFunc(node)
	case *ast.Op:
		return f.formatOp(node)
	case *ast.Alias:
		if err := f.formatNode(node.Expr); err != nil {
			return err
		}
		f.write(" AS " + f.escape(node.Value))
	case *ast.Mod:
		f.write(strings.ToUpper(node.Name) + " ")
		return f.formatNode(node.Expr)
	case *ast.Wildcard:
		f.write("*")
	case *ast.Subquery:
		return f.formatSubquery(node)
	default:
		return fmt.Errorf("unsupported expression node %T", n)
	}
	return nil
}

func (f *formatter) formatLiteral(lit *ast.Literal) error {
	if lit.IsNull() {
		f.write("NULL")
		return nil
	}
	if values, ok := lit.Value.([]any); ok {
		f.write("(")
		for i, v := range values {
			if i > 0 {
				f.write(", ")
			}
			f.placeholder(v)
		}
		f.write(")")
		return nil
	}
	f.placeholder(lit.Value)
	return nil
}

func (f *formatter) formatOp(op *ast.Op) error {
	switch {
	case op.Name == ast.OpNot:
		f.write("NOT ")
		return f.formatOperand(op.Args[0], op.Name.Precedence(), true)

	case op.Name == ast.OpBetween || op.Name == ast.OpNotBetween:
		if err := f.formatOperand(op.Args[0], op.Name.Precedence(), false); err != nil {
			return err
		}
		f.write(" " + op.Name.String() + " ")
		if err := f.formatNode(op.Args[1]); err != nil {
			return err
		}
		f.write(" AND ")
		return f.formatNode(op.Args[2])
	}

	name := op.Name
	rhs := op.Args[1]

	// Equality is rewritten by operand shape: NULL flips to IS [NOT]
	// NULL, a value list or subquery flips to [NOT] IN.
	if name == ast.OpEq || name == ast.OpNe {
		if lit, ok := rhs.(*ast.Literal); ok && lit.IsNull() {
			if err := f.formatOperand(op.Args[0], name.Precedence(), false); err != nil {
				return err
			}
			if name == ast.OpEq {
				f.write(" IS NULL")
			} else {
				f.write(" IS NOT NULL")
			}
			return nil
		}
		if isListOperand(rhs) {
			if name == ast.OpEq {
				name = ast.OpIn
			} else {
				name = ast.OpNotIn
			}
		}
	}

	// IN always renders a parenthesized list; a scalar literal operand
	// becomes a one-element list.
	if name == ast.OpIn || name == ast.OpNotIn {
		if lit, ok := rhs.(*ast.Literal); ok && !lit.IsArray() && !lit.IsNull() {
			rhs = &ast.Literal{Value: []any{lit.Value}, Position: lit.Position}
		}
	}

	if err := f.formatOperand(op.Args[0], name.Precedence(), false); err != nil {
		return err
	}
	f.write(" " + name.String() + " ")
	return f.formatOperand(rhs, name.Precedence(), true)
}

// formatOperand renders a child expression, parenthesizing when its
// precedence would otherwise rebind against the parent operator.
func (f *formatter) formatOperand(n ast.Node, parentPrec int, right bool) error {
	child, ok := n.(*ast.Op)
	if !ok {
		return f.formatNode(n)
	}
	prec := child.Name.Precedence()
	if prec < parentPrec || (right && prec == parentPrec) {
		f.write("(")
		if err := f.formatNode(child); err != nil {
			return err
		}
		f.write(")")
		return nil
	}
	return f.formatNode(child)
}

func isListOperand(n ast.Node) bool {
	switch v := n.(type) {
	case *ast.Literal:
		return v.IsArray()
	case *ast.Subquery:
		return true
	}
	return false
}

func (f *formatter) formatSubquery(sq *ast.Subquery) error {
	sub, ok := sq.Value.(*spell.Spell)
	if !ok {
		return fmt.Errorf("unsupported subquery value %T", sq.Value)
	}
	if err := sub.Err(); err != nil {
		return err
	}
	dup := sub.Dup()
	dup.ApplyScopes()

	child := &formatter{driver: f.driver, spell: dup}
	if err := child.formatSelect(); err != nil {
		return err
	}
	f.write("(" + child.sql.String() + ")")
	f.values = append(f.values, child.values...)
	return nil
}

// resolveID maps an attribute reference to its quoted column. Qualified
// references resolve against the named alias; unqualified ones try the
// base model first, then the mounted joins.
func (f *formatter) resolveID(id *ast.ID) (string, error) {
	s := f.spell

	if len(id.Qualifiers) > 0 {
		qualifier := id.Qualifiers[0]
		model := s.Model
		if qualifier != s.Model.Alias() {
			join, ok := s.Joins[qualifier]
			if !ok {
				return "", fmt.Errorf("%w: unknown qualifier %q on %s.%s",
					ErrUnknownColumn, qualifier, qualifier, id.Value)
			}
			model = join.Model
		}
		column, ok := model.ColumnFor(id.Value)
		if !ok {
			return "", fmt.Errorf("%w: %q on model %s", ErrUnknownColumn, id.Value, model.Name)
		}
		return f.escape(qualifier) + "." + f.escape(column), nil
	}

	if column, ok := s.Model.ColumnFor(id.Value); ok {
		if len(s.JoinOrder) == 0 {
			return f.escape(column), nil
		}
		return f.escape(s.Model.Alias()) + "." + f.escape(column), nil
	}

	if _, ok := f.aliases[id.Value]; ok {
		return f.escape(id.Value), nil
	}

	var found string
	var foundAlias string
	for _, alias := range s.JoinOrder {
		if column, ok := s.Joins[alias].Model.ColumnFor(id.Value); ok {
			if found != "" {
				return "", fmt.Errorf("%w: %q matches both %s and %s",
					ErrAmbiguousColumn, id.Value, foundAlias, alias)
			}
			found, foundAlias = column, alias
		}
	}
	if found == "" {
		return "", fmt.Errorf("%w: %q on model %s", ErrUnknownColumn, id.Value, s.Model.Name)
	}
	return f.escape(foundAlias) + "." + f.escape(found), nil
}

func collectAliases(columns []ast.Node) map[string]ast.Node {
	aliases := make(map[string]ast.Node)
	for _, col := range columns {
		if alias, ok := col.(*ast.Alias); ok {
			aliases[alias.Value] = alias.Expr
		}
	}
	return aliases
}

// ---------------------------------------------------------------------
// sharding
// ---------------------------------------------------------------------

// checkSharding fails closed: a sharded model refuses to compile unless
// the statement pins its sharding key to a concrete value.
func checkSharding(s *spell.Spell) error {
	key := s.Model.ShardingKey
	if key == "" {
		return nil
	}
	switch s.Command {
	case spell.CommandInsert, spell.CommandUpsert:
		if value, ok := s.Sets[key]; !ok || value == nil {
			return fmt.Errorf("%w: %q on model %s", ErrShardingKey, key, s.Model.Name)
		}
	default:
		for _, cond := range s.Wheres {
			if shardKeyBound(cond, key) {
				return nil
			}
		}
		return fmt.Errorf("%w: %q on model %s", ErrShardingKey, key, s.Model.Name)
	}
	return nil
}

// shardKeyBound looks for key = <non-null literal> or key IN (...)
// anywhere in the condition tree.
func shardKeyBound(cond ast.Node, key string) bool {
	found := false
	ast.Walk(cond, func(n ast.Node) bool {
		op, ok := n.(*ast.Op)
		if !ok || (op.Name != ast.OpEq && op.Name != ast.OpIn) || len(op.Args) != 2 {
			return !found
		}
		id, ok := op.Args[0].(*ast.ID)
		if !ok || id.Value != key {
			return !found
		}
		if lit, ok := op.Args[1].(*ast.Literal); ok && !lit.IsNull() {
			found = true
		}
		return !found
	})
	return found
}
