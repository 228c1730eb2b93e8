package spell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grimoire-orm/grimoire/engine/ast"
	"github.com/grimoire-orm/grimoire/engine/parser"
	"github.com/grimoire-orm/grimoire/engine/schema"
)

// Command is the statement kind a spell compiles to.
type Command int

const (
	CommandSelect Command = iota
	CommandInsert
	CommandUpdate
	CommandDelete
	CommandUpsert
)

var commandNames = map[Command]string{
	CommandSelect: "select",
	CommandInsert: "insert",
	CommandUpdate: "update",
	CommandDelete: "delete",
	CommandUpsert: "upsert",
}

func (c Command) String() string { return commandNames[c] }

var (
	ErrInvalidPagination = errors.New("limit and offset must be non-negative")
	ErrDuplicateJoin     = errors.New("join alias already in use")
	ErrUnknownRelation   = errors.New("unknown relation")
	ErrNotDerivable      = errors.New("joined query cannot be paginated or grouped without changing semantics")
)

// Order pairs an expression with its direction.
type Order struct {
	Expr ast.Node
	Desc bool
}

// Join is one mounted join target.
type Join struct {
	Model   *schema.Model
	On      ast.Node
	HasMany bool
}

// Scope is a predicate injector applied right before compilation, e.g.
// the soft-delete filter.
type Scope func(*Spell)

// Spell accumulates query state until it is handed to the spellbook. The
// chain methods duplicate before mutating, so branching a spell never
// lets the branches observe each other; the unexported primitives mutate
// in place and are what the chain methods delegate to.
type Spell struct {
	Command   Command
	Model     *schema.Model
	Columns   []ast.Node
	Table     ast.Node // nil means the model's table; *ast.Subquery when derived
	Wheres    []ast.Node
	Havings   []ast.Node
	Groups    []ast.Node
	Orders    []Order
	Joins     map[string]*Join
	JoinOrder []string
	Skip      int
	RowCount  int
	Scopes    []Scope
	Sets      map[string]any

	err error
}

// New returns a select spell for the model. Models with a soft-delete
// column start with the soft-delete scope registered.
func New(model *schema.Model) *Spell {
	s := &Spell{
		Command: CommandSelect,
		Model:   model,
	}
	if model.SoftDeleteColumn != "" {
		s.Scopes = append(s.Scopes, SoftDeleteScope)
	}
	return s
}

// QueryMarker implements ast.QueryValue so a spell can appear as a
// subquery value.
func (s *Spell) QueryMarker() {}

// Err returns the first error recorded by a chain mutation. Compilation
// refuses a spell whose Err is non-nil.
func (s *Spell) Err() error { return s.err }

func (s *Spell) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// Dup returns a copy with fresh mutable containers. AST nodes are shared;
// they are immutable once parsed.
func (s *Spell) Dup() *Spell {
	d := *s
	d.Columns = append([]ast.Node(nil), s.Columns...)
	d.Wheres = append([]ast.Node(nil), s.Wheres...)
	d.Havings = append([]ast.Node(nil), s.Havings...)
	d.Groups = append([]ast.Node(nil), s.Groups...)
	d.Orders = append([]Order(nil), s.Orders...)
	d.JoinOrder = append([]string(nil), s.JoinOrder...)
	d.Scopes = append([]Scope(nil), s.Scopes...)
	if s.Joins != nil {
		d.Joins = make(map[string]*Join, len(s.Joins))
		for alias, join := range s.Joins {
			d.Joins[alias] = join
		}
	}
	if s.Sets != nil {
		d.Sets = make(map[string]any, len(s.Sets))
		for attr, value := range s.Sets {
			d.Sets[attr] = value
		}
	}
	return &d
}

// ---------------------------------------------------------------------
// chain API: duplicate, then delegate to the in-place primitive
// ---------------------------------------------------------------------

// Select replaces the select list. Each argument may hold several comma
// separated expressions.
func (s *Spell) Select(exprs ...string) *Spell {
	d := s.Dup()
	d.setSelect(exprs...)
	return d
}

// Where appends conditions. cond may be an expression template with
// positional values, a condition document (map, bson.M, bson.D), or a
// prebuilt AST node.
func (s *Spell) Where(cond any, values ...any) *Spell {
	d := s.Dup()
	d.addWhere(cond, values...)
	return d
}

// Having appends HAVING conditions, same forms as Where.
func (s *Spell) Having(cond any, values ...any) *Spell {
	d := s.Dup()
	d.addHaving(cond, values...)
	return d
}

// Group appends GROUP BY expressions.
func (s *Spell) Group(exprs ...string) *Spell {
	d := s.Dup()
	d.addGroup(exprs...)
	return d
}

// Order appends ORDER BY entries; each spec may carry a trailing asc or
// desc, e.g. "createdAt desc".
func (s *Spell) Order(specs ...string) *Spell {
	d := s.Dup()
	d.addOrder(specs...)
	return d
}

// Limit caps the row count.
func (s *Spell) Limit(n int) *Spell {
	d := s.Dup()
	d.setLimit(n)
	return d
}

// Offset skips n rows.
func (s *Spell) Offset(n int) *Spell {
	d := s.Dup()
	d.setOffset(n)
	return d
}

// Join mounts an explicit join under alias with an ON template.
func (s *Spell) Join(model *schema.Model, alias, on string, values ...any) *Spell {
	d := s.Dup()
	d.addJoin(model, alias, on, values...)
	return d
}

// With mounts declared relations by name; names may be dotted to reach
// nested relations, e.g. "posts.comments".
func (s *Spell) With(names ...string) *Spell {
	d := s.Dup()
	for _, name := range names {
		if err := d.with(name); err != nil {
			d.fail(err)
			break
		}
	}
	return d
}

// Unscoped returns a branch with all scopes cleared, so soft-delete
// filtering is never injected on it.
func (s *Spell) Unscoped() *Spell {
	d := s.Dup()
	d.Scopes = nil
	return d
}

// Insert turns the spell into an INSERT of the given attribute values.
func (s *Spell) Insert(sets map[string]any) *Spell {
	d := s.Dup()
	d.Command = CommandInsert
	d.Sets = copySets(sets)
	return d
}

// Update turns the spell into an UPDATE, keeping accumulated conditions.
func (s *Spell) Update(sets map[string]any) *Spell {
	d := s.Dup()
	d.Command = CommandUpdate
	d.Sets = copySets(sets)
	return d
}

// Delete turns the spell into a DELETE, keeping accumulated conditions.
func (s *Spell) Delete() *Spell {
	d := s.Dup()
	d.Command = CommandDelete
	return d
}

// Upsert turns the spell into an insert-or-update of the given values.
func (s *Spell) Upsert(sets map[string]any) *Spell {
	d := s.Dup()
	d.Command = CommandUpsert
	d.Sets = copySets(sets)
	return d
}

// ---------------------------------------------------------------------
// in-place primitives
// ---------------------------------------------------------------------

func (s *Spell) setSelect(exprs ...string) {
	s.Columns = s.Columns[:0]
	for _, text := range exprs {
		nodes, err := parser.ParseExprList(text)
		if err != nil {
			s.fail(err)
			return
		}
		s.Columns = append(s.Columns, nodes...)
	}
}

func (s *Spell) addWhere(cond any, values ...any) {
	nodes, err := parseConditions(cond, values...)
	if err != nil {
		s.fail(err)
		return
	}
	s.Wheres = append(s.Wheres, nodes...)
}

func (s *Spell) addHaving(cond any, values ...any) {
	nodes, err := parseConditions(cond, values...)
	if err != nil {
		s.fail(err)
		return
	}
	s.Havings = append(s.Havings, nodes...)
}

func (s *Spell) addGroup(exprs ...string) {
	for _, text := range exprs {
		nodes, err := parser.ParseExprList(text)
		if err != nil {
			s.fail(err)
			return
		}
		s.Groups = append(s.Groups, nodes...)
	}
}

func (s *Spell) addOrder(specs ...string) {
	for _, spec := range specs {
		expr, desc := splitDirection(spec)
		node, err := parser.ParseExpr(expr)
		if err != nil {
			s.fail(err)
			return
		}
		s.Orders = append(s.Orders, Order{Expr: node, Desc: desc})
	}
}

func (s *Spell) setLimit(n int) {
	if n < 0 {
		s.fail(fmt.Errorf("%w: limit %d", ErrInvalidPagination, n))
		return
	}
	s.RowCount = n
}

func (s *Spell) setOffset(n int) {
	if n < 0 {
		s.fail(fmt.Errorf("%w: offset %d", ErrInvalidPagination, n))
		return
	}
	s.Skip = n
}

func (s *Spell) addJoin(model *schema.Model, alias, on string, values ...any) {
	if _, taken := s.Joins[alias]; taken {
		s.fail(fmt.Errorf("%w: %q", ErrDuplicateJoin, alias))
		return
	}
	node, err := parser.ParseExpr(on, values...)
	if err != nil {
		s.fail(err)
		return
	}
	s.mountJoin(alias, &Join{Model: model, On: node})
}

func (s *Spell) mountJoin(alias string, join *Join) {
	if s.Joins == nil {
		s.Joins = make(map[string]*Join)
	}
	s.Joins[alias] = join
	s.JoinOrder = append(s.JoinOrder, alias)
}

// ApplyScopes runs the registered scopes against s in place. The
// spellbook calls this on its own duplicate right before rendering.
func (s *Spell) ApplyScopes() {
	for _, scope := range s.Scopes {
		scope(s)
	}
	s.Scopes = nil
}

// SoftDeleteScope injects softDeleteColumn IS NULL unless some condition
// already references the column, so an explicit deletedAt filter wins.
func SoftDeleteScope(s *Spell) {
	attr := s.Model.SoftDeleteColumn
	if attr == "" || s.Command == CommandInsert {
		return
	}
	for _, cond := range s.Wheres {
		if referencesColumn(cond, attr) {
			return
		}
	}
	s.Wheres = append(s.Wheres, &ast.Op{
		Name: ast.OpEq,
		Args: []ast.Node{&ast.ID{Value: attr}, &ast.Literal{Value: nil}},
	})
}

func referencesColumn(node ast.Node, attr string) bool {
	found := false
	ast.Walk(node, func(n ast.Node) bool {
		if id, ok := n.(*ast.ID); ok && id.Value == attr {
			found = true
		}
		return !found
	})
	return found
}

func parseConditions(cond any, values ...any) ([]ast.Node, error) {
	switch c := cond.(type) {
	case string:
		return parser.ParseExprList(c, values...)
	case ast.Node:
		return []ast.Node{c}, nil
	case []ast.Node:
		return c, nil
	}
	if len(values) > 0 {
		return nil, fmt.Errorf("positional values require a string condition, got %T", cond)
	}
	return parser.ParseObjectConditions(cond)
}

func splitDirection(spec string) (string, bool) {
	trimmed := strings.TrimSpace(spec)
	lower := strings.ToLower(trimmed)
	if strings.HasSuffix(lower, " desc") {
		return strings.TrimSpace(trimmed[:len(trimmed)-5]), true
	}
	if strings.HasSuffix(lower, " asc") {
		return strings.TrimSpace(trimmed[:len(trimmed)-4]), false
	}
	return trimmed, false
}

func copySets(sets map[string]any) map[string]any {
	copied := make(map[string]any, len(sets))
	for attr, value := range sets {
		copied[attr] = value
	}
	return copied
}
