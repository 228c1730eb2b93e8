package spell

import (
	"fmt"
	"strings"

	"github.com/grimoire-orm/grimoire/engine/ast"
	"github.com/grimoire-orm/grimoire/engine/schema"
)

// with resolves a relation path against the base model. Each hop mounts
// at most once, so sibling through-relations can share an intermediate.
func (s *Spell) with(path string) error {
	model := s.Model
	baseAlias := s.Model.Alias()
	for _, name := range strings.Split(path, ".") {
		if err := s.resolveJoin(model, baseAlias, name); err != nil {
			return err
		}
		join := s.Joins[name]
		model = join.Model
		baseAlias = name
	}
	return nil
}

// resolveJoin mounts the named relation of model under its own name as
// join alias. Already-mounted aliases are left untouched.
func (s *Spell) resolveJoin(model *schema.Model, baseAlias, name string) error {
	if _, mounted := s.Joins[name]; mounted {
		return nil
	}

	assoc := model.Association(name)
	if assoc == nil {
		return fmt.Errorf("%w: %q on model %s", ErrUnknownRelation, name, model.Name)
	}

	if assoc.Through != "" {
		return s.resolveThrough(model, baseAlias, name, assoc)
	}

	return s.mountAssociation(assoc, model, baseAlias, name, false)
}

// resolveThrough mounts the intermediate hop first, then resolves the
// target relation against the intermediate model. The hop inherits many
// cardinality from either side.
func (s *Spell) resolveThrough(model *schema.Model, baseAlias, name string, assoc *schema.Association) error {
	if _, mounted := s.Joins[assoc.Through]; !mounted {
		if err := s.resolveJoin(model, baseAlias, assoc.Through); err != nil {
			return fmt.Errorf("through relation %q: %w", name, err)
		}
	}
	intermediate := s.Joins[assoc.Through]

	target := intermediate.Model.Association(name)
	if target == nil {
		return fmt.Errorf("%w: %q on through model %s", ErrUnknownRelation, name, intermediate.Model.Name)
	}

	return s.mountAssociation(target, intermediate.Model, assoc.Through, name, intermediate.HasMany)
}

func (s *Spell) mountAssociation(assoc *schema.Association, baseModel *schema.Model, baseAlias, alias string, manyHop bool) error {
	target := assoc.TargetModel
	if target == nil {
		return fmt.Errorf("relation %q declares no target model", alias)
	}

	var baseKey, targetKey string
	if assoc.BelongsTo {
		baseKey, targetKey = assoc.ForeignKey, target.PrimaryKey
	} else {
		baseKey, targetKey = baseModel.PrimaryKey, assoc.ForeignKey
	}

	on := ast.Node(&ast.Op{
		Name: ast.OpEq,
		Args: []ast.Node{
			&ast.ID{Value: baseKey, Qualifiers: []string{baseAlias}},
			&ast.ID{Value: targetKey, Qualifiers: []string{alias}},
		},
	})

	if len(assoc.Where) > 0 {
		for _, cond := range assoc.Where {
			on = andNode(on, qualifyTo(cond, alias))
		}
	} else if target.SoftDeleteColumn != "" {
		// Soft-deleted related rows stay out of joins unless the
		// association declares its own filter.
		on = andNode(on, &ast.Op{
			Name: ast.OpEq,
			Args: []ast.Node{
				&ast.ID{Value: target.SoftDeleteColumn, Qualifiers: []string{alias}},
				&ast.Literal{Value: nil},
			},
		})
	}

	s.mountJoin(alias, &Join{
		Model:   target,
		On:      on,
		HasMany: assoc.HasMany || manyHop,
	})

	for _, include := range assoc.Includes {
		if err := s.resolveJoin(target, alias, include); err != nil {
			return err
		}
	}
	return nil
}

func andNode(left, right ast.Node) ast.Node {
	return &ast.Op{Name: ast.OpAnd, Args: []ast.Node{left, right}}
}

// qualifyTo deep-copies a condition, rewriting every identifier to the
// given alias. Association filters are declared against the target table
// without knowing the alias they will be mounted under.
func qualifyTo(node ast.Node, alias string) ast.Node {
	switch n := node.(type) {
	case *ast.ID:
		return &ast.ID{Value: n.Value, Qualifiers: []string{alias}, Position: n.Position}
	case *ast.Op:
		args := make([]ast.Node, len(n.Args))
		for i, arg := range n.Args {
			args[i] = qualifyTo(arg, alias)
		}
		return &ast.Op{Name: n.Name, Args: args, Position: n.Position}
	case *ast.Func:
		args := make([]ast.Node, len(n.Args))
		for i, arg := range n.Args {
			args[i] = qualifyTo(arg, alias)
		}
		return &ast.Func{Name: n.Name, Args: args, Position: n.Position}
	case *ast.Alias:
		return &ast.Alias{Value: n.Value, Expr: qualifyTo(n.Expr, alias), Position: n.Position}
	case *ast.Mod:
		return &ast.Mod{Name: n.Name, Expr: qualifyTo(n.Expr, alias), Position: n.Position}
	}
	return node
}
