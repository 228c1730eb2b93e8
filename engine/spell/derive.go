package spell

import (
	"github.com/grimoire-orm/grimoire/engine/ast"
)

var aggregates = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

// Dispatchable reports whether result rows map 1:1 to model instances:
// no aggregate or aliased select column and no GROUP BY.
func (s *Spell) Dispatchable() bool {
	if len(s.Groups) > 0 {
		return false
	}
	for _, col := range s.Columns {
		switch c := col.(type) {
		case *ast.Alias:
			return false
		case *ast.Func:
			if aggregates[c.Name] {
				return false
			}
		}
	}
	return true
}

// Derivable reports whether wrapping the base table in a subquery keeps
// grouping semantics: either there is no GROUP BY, or every base-table
// column referenced by a join condition also appears in the GROUP BY
// list.
func (s *Spell) Derivable() bool {
	if len(s.Groups) == 0 {
		return true
	}

	grouped := make(map[string]bool, len(s.Groups))
	for _, g := range s.Groups {
		if id, ok := g.(*ast.ID); ok {
			grouped[id.Value] = true
		}
	}

	baseAlias := s.Model.Alias()
	ok := true
	for _, alias := range s.JoinOrder {
		ast.Walk(s.Joins[alias].On, func(n ast.Node) bool {
			id, isID := n.(*ast.ID)
			if !isID {
				return ok
			}
			onBase := len(id.Qualifiers) == 0 || id.Qualifiers[0] == baseAlias
			if onBase && !grouped[id.Value] {
				ok = false
			}
			return ok
		})
		if !ok {
			return false
		}
	}
	return true
}

// NeedsDerivation reports whether the join/pagination combination
// requires the derived-table rewrite: SQL applies LIMIT after join
// fan-out, so paginating a joined one-to-many flat would truncate joined
// rows instead of base rows.
func (s *Spell) NeedsDerivation() bool {
	return len(s.Joins) > 0 && (s.RowCount > 0 || s.Skip > 0 || len(s.Groups) > 0)
}

// Derive splits the spell into an outer query joining against a derived
// table that carries the base-only conditions, base-only order, and the
// pagination. Callers must check Derivable first; scopes must already be
// applied.
func (s *Spell) Derive() *Spell {
	sub := &Spell{
		Command:  CommandSelect,
		Model:    s.Model,
		Skip:     s.Skip,
		RowCount: s.RowCount,
	}
	if len(s.Groups) > 0 {
		for _, g := range s.Groups {
			sub.Columns = append(sub.Columns, unqualify(g))
		}
	}

	outer := s.Dup()
	outer.Skip = 0
	outer.RowCount = 0
	outer.Wheres = nil

	for _, cond := range s.Wheres {
		if s.baseOnly(cond) {
			sub.Wheres = append(sub.Wheres, cond)
		} else {
			outer.Wheres = append(outer.Wheres, cond)
		}
	}
	for _, order := range s.Orders {
		if s.baseOnly(order.Expr) {
			sub.Orders = append(sub.Orders, order)
		}
	}

	outer.Table = &ast.Subquery{Value: sub}
	return outer
}

// baseOnly reports whether every identifier in the condition resolves to
// the base table: qualified with the base alias, or unqualified and
// present on the base model.
func (s *Spell) baseOnly(cond ast.Node) bool {
	baseAlias := s.Model.Alias()
	ok := true
	ast.Walk(cond, func(n ast.Node) bool {
		id, isID := n.(*ast.ID)
		if !isID {
			return ok
		}
		if len(id.Qualifiers) > 0 {
			if id.Qualifiers[0] != baseAlias {
				ok = false
			}
		} else if _, exists := s.Model.ColumnFor(id.Value); !exists {
			ok = false
		}
		return ok
	})
	return ok
}

func unqualify(node ast.Node) ast.Node {
	if id, ok := node.(*ast.ID); ok && len(id.Qualifiers) > 0 {
		return &ast.ID{Value: id.Value, Position: id.Position}
	}
	return node
}
