package reverse

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser"
	tidbast "github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/opcode"
	"github.com/pingcap/tidb/parser/test_driver"

	"github.com/grimoire-orm/grimoire/engine/ast"
	grmparser "github.com/grimoire-orm/grimoire/engine/parser"
)

// Select is the recovered shape of a compiled SELECT.
type Select struct {
	Table  string
	Where  ast.Node
	Having ast.Node
	Limit  int
	Offset int
}

// MySQLSelect parses a compiled MySQL SELECT back into expression trees.
// Each ? marker consumes the next positional value, the same binding rule
// the expression parser applies going forward.
func MySQLSelect(sql string, values ...any) (*Select, error) {
	if sql == "" {
		return nil, ErrEmptyQuery
	}

	p := parser.New()
	stmts, _, err := p.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseError, err)
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("%w: empty statement", ErrParseError)
	}

	stmt, ok := stmts[0].(*tidbast.SelectStmt)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotSupported, stmts[0])
	}

	c := &converter{values: values}
	out := &Select{}

	if stmt.From != nil {
		out.Table = tableName(stmt.From.TableRefs)
	}
	if stmt.Where != nil {
		out.Where, err = c.expr(stmt.Where)
		if err != nil {
			return nil, err
		}
	}
	if stmt.Having != nil {
		out.Having, err = c.expr(stmt.Having.Expr)
		if err != nil {
			return nil, err
		}
	}
	if stmt.Limit != nil {
		if v, ok := stmt.Limit.Count.(*test_driver.ValueExpr); ok {
			out.Limit = int(v.GetInt64())
		}
		if stmt.Limit.Offset != nil {
			if v, ok := stmt.Limit.Offset.(*test_driver.ValueExpr); ok {
				out.Offset = int(v.GetInt64())
			}
		}
	}

	if c.idx < len(c.values) {
		return nil, fmt.Errorf("%w: %d value(s) left unbound", ErrParseError, len(c.values)-c.idx)
	}
	return out, nil
}

type converter struct {
	values []any
	idx    int
}

func (c *converter) nextValue() (any, error) {
	if c.idx >= len(c.values) {
		return nil, fmt.Errorf("%w: no value for placeholder %d", ErrParseError, c.idx+1)
	}
	v := c.values[c.idx]
	c.idx++
	return v, nil
}

func (c *converter) expr(e tidbast.ExprNode) (ast.Node, error) {
	switch node := e.(type) {
	case *test_driver.ParamMarkerExpr:
		v, err := c.nextValue()
		if err != nil {
			return nil, err
		}
		return grmparser.LiteralFromValue(v, 0)

	case *test_driver.ValueExpr:
		return literalNode(node), nil

	case *tidbast.ColumnNameExpr:
		id := &ast.ID{Value: node.Name.Name.O}
		if node.Name.Table.O != "" {
			id.Qualifiers = []string{node.Name.Table.O}
		}
		return id, nil

	case *tidbast.BinaryOperationExpr:
		op, ok := opcodeToOperator(node.Op)
		if !ok {
			return nil, fmt.Errorf("%w: operator %s", ErrNotSupported, node.Op)
		}
		left, err := c.expr(node.L)
		if err != nil {
			return nil, err
		}
		right, err := c.expr(node.R)
		if err != nil {
			return nil, err
		}
		return &ast.Op{Name: op, Args: []ast.Node{left, right}}, nil

	case *tidbast.PatternInExpr:
		return c.inExpr(node)

	case *tidbast.PatternLikeOrIlikeExpr:
		return c.likeExpr(node)

	case *tidbast.BetweenExpr:
		return c.betweenExpr(node)

	case *tidbast.IsNullExpr:
		subject, err := c.expr(node.Expr)
		if err != nil {
			return nil, err
		}
		op := ast.OpEq
		if node.Not {
			op = ast.OpNe
		}
		return &ast.Op{Name: op, Args: []ast.Node{subject, &ast.Literal{Value: nil}}}, nil

	case *tidbast.ParenthesesExpr:
		return c.expr(node.Expr)

	case *tidbast.UnaryOperationExpr:
		if node.Op == opcode.Not || node.Op == opcode.Not2 {
			operand, err := c.expr(node.V)
			if err != nil {
				return nil, err
			}
			return &ast.Op{Name: ast.OpNot, Args: []ast.Node{operand}}, nil
		}
		if node.Op == opcode.Minus {
			inner, err := c.expr(node.V)
			if err != nil {
				return nil, err
			}
			if lit, ok := inner.(*ast.Literal); ok {
				return negateLiteral(lit)
			}
		}
		return nil, fmt.Errorf("%w: unary operator %s", ErrNotSupported, node.Op)

	case *tidbast.FuncCallExpr:
		args := make([]ast.Node, 0, len(node.Args))
		for _, arg := range node.Args {
			converted, err := c.expr(arg)
			if err != nil {
				return nil, err
			}
			args = append(args, converted)
		}
		return &ast.Func{Name: strings.ToUpper(node.FnName.O), Args: args}, nil

	case *tidbast.AggregateFuncExpr:
		args := make([]ast.Node, 0, len(node.Args))
		for _, arg := range node.Args {
			converted, err := c.expr(arg)
			if err != nil {
				return nil, err
			}
			args = append(args, converted)
		}
		return &ast.Func{Name: strings.ToUpper(node.F), Args: args}, nil
	}

	return nil, fmt.Errorf("%w: expression %T", ErrNotSupported, e)
}

func (c *converter) inExpr(e *tidbast.PatternInExpr) (ast.Node, error) {
	subject, err := c.expr(e.Expr)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(e.List))
	for _, item := range e.List {
		converted, err := c.expr(item)
		if err != nil {
			return nil, err
		}
		lit, ok := converted.(*ast.Literal)
		if !ok {
			return nil, fmt.Errorf("%w: non-literal IN element %T", ErrNotSupported, item)
		}
		values = append(values, lit.Value)
	}
	op := ast.OpIn
	if e.Not {
		op = ast.OpNotIn
	}
	return &ast.Op{Name: op, Args: []ast.Node{subject, &ast.Literal{Value: values}}}, nil
}

func (c *converter) likeExpr(e *tidbast.PatternLikeOrIlikeExpr) (ast.Node, error) {
	subject, err := c.expr(e.Expr)
	if err != nil {
		return nil, err
	}
	pattern, err := c.expr(e.Pattern)
	if err != nil {
		return nil, err
	}
	op := ast.OpLike
	if e.Not {
		op = ast.OpNotLike
	}
	return &ast.Op{Name: op, Args: []ast.Node{subject, pattern}}, nil
}

func (c *converter) betweenExpr(e *tidbast.BetweenExpr) (ast.Node, error) {
	subject, err := c.expr(e.Expr)
	if err != nil {
		return nil, err
	}
	lower, err := c.expr(e.Left)
	if err != nil {
		return nil, err
	}
	upper, err := c.expr(e.Right)
	if err != nil {
		return nil, err
	}
	op := ast.OpBetween
	if e.Not {
		op = ast.OpNotBetween
	}
	return &ast.Op{Name: op, Args: []ast.Node{subject, lower, upper}}, nil
}

func opcodeToOperator(op opcode.Op) (ast.Operator, bool) {
	switch op {
	case opcode.EQ:
		return ast.OpEq, true
	case opcode.NE:
		return ast.OpNe, true
	case opcode.GT:
		return ast.OpGt, true
	case opcode.GE:
		return ast.OpGe, true
	case opcode.LT:
		return ast.OpLt, true
	case opcode.LE:
		return ast.OpLe, true
	case opcode.LogicAnd:
		return ast.OpAnd, true
	case opcode.LogicOr:
		return ast.OpOr, true
	case opcode.LogicXor:
		return ast.OpXor, true
	case opcode.Plus:
		return ast.OpAdd, true
	case opcode.Minus:
		return ast.OpSub, true
	case opcode.Mul:
		return ast.OpMul, true
	case opcode.Div:
		return ast.OpDiv, true
	case opcode.Mod:
		return ast.OpMod, true
	}
	return ast.OpInvalid, false
}

func literalNode(v *test_driver.ValueExpr) *ast.Literal {
	d := v.Datum
	switch d.Kind() {
	case test_driver.KindInt64:
		return &ast.Literal{Value: d.GetInt64()}
	case test_driver.KindUint64:
		return &ast.Literal{Value: int64(d.GetUint64())}
	case test_driver.KindFloat64:
		return &ast.Literal{Value: d.GetFloat64()}
	case test_driver.KindString:
		return &ast.Literal{Value: d.GetString()}
	case test_driver.KindBytes:
		return &ast.Literal{Value: d.GetBytes()}
	case test_driver.KindNull:
		return &ast.Literal{Value: nil}
	}
	return &ast.Literal{Value: d.GetValue()}
}

func negateLiteral(lit *ast.Literal) (ast.Node, error) {
	switch v := lit.Value.(type) {
	case int64:
		return &ast.Literal{Value: -v}, nil
	case float64:
		return &ast.Literal{Value: -v}, nil
	}
	return nil, fmt.Errorf("%w: cannot negate %T", ErrNotSupported, lit.Value)
}

func tableName(refs *tidbast.Join) string {
	if refs == nil {
		return ""
	}
	if ts, ok := refs.Left.(*tidbast.TableSource); ok {
		if tn, ok := ts.Source.(*tidbast.TableName); ok {
			return tn.Name.O
		}
	}
	if join, ok := refs.Left.(*tidbast.Join); ok {
		return tableName(join)
	}
	return ""
}
