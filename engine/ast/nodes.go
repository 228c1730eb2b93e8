package ast

import (
	"bytes"
	"math"
	"time"
)

// Node is the interface all expression nodes implement
type Node interface {
	node()
	Pos() int
}

// QueryValue marks a value that carries a nested query. The query builder
// implements it so a builder passed as a placeholder value or condition
// value becomes a Subquery node.
type QueryValue interface {
	QueryMarker()
}

// Literal is a constant value: nil, bool, int64, float64, string,
// time.Time, []byte, or []any of those. A nil value compares as SQL NULL
// and an []any value drives the IN rewrite in the compiler.
type Literal struct {
	Value    any
	Position int
}

func (n *Literal) node()    {}
func (n *Literal) Pos() int { return n.Position }

// IsNull reports whether the literal is SQL NULL.
func (n *Literal) IsNull() bool { return n.Value == nil }

// IsArray reports whether the literal holds a value list.
func (n *Literal) IsArray() bool {
	_, ok := n.Value.([]any)
	return ok
}

// ID is a column or attribute reference. Qualifiers holds the table
// aliases of a dotted reference, e.g. ["posts"] for posts.title; empty
// means the reference resolves against the default table in context.
type ID struct {
	Value      string
	Qualifiers []string
	Position   int
}

func (n *ID) node()    {}
func (n *ID) Pos() int { return n.Position }

// Func is a scalar function call, e.g. YEAR(created_at).
type Func struct {
	Name     string
	Args     []Node
	Position int
}

func (n *Func) node()    {}
func (n *Func) Pos() int { return n.Position }

// Op is a unary, binary, or ternary operator node. Arity is fixed by the
// operator: NOT takes one argument, BETWEEN/NOT BETWEEN take three,
// everything else takes two.
type Op struct {
	Name     Operator
	Args     []Node
	Position int
}

func (n *Op) node()    {}
func (n *Op) Pos() int { return n.Position }

// Alias is inner AS value.
type Alias struct {
	Value    string
	Expr     Node
	Position int
}

func (n *Alias) node()    {}
func (n *Alias) Pos() int { return n.Position }

// Mod is a modifier such as DISTINCT applied to an expression.
type Mod struct {
	Name     string
	Expr     Node
	Position int
}

func (n *Mod) node()    {}
func (n *Mod) Pos() int { return n.Position }

// Wildcard is *.
type Wildcard struct {
	Position int
}

func (n *Wildcard) node()    {}
func (n *Wildcard) Pos() int { return n.Position }

// Subquery wraps a nested query builder used as a value or as a derived
// table.
type Subquery struct {
	Value    QueryValue
	Position int
}

func (n *Subquery) node()    {}
func (n *Subquery) Pos() int { return n.Position }

// Walk calls fn on n and recurses into children while fn returns true.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch node := n.(type) {
	case *Func:
		for _, arg := range node.Args {
			Walk(arg, fn)
		}
	case *Op:
		for _, arg := range node.Args {
			Walk(arg, fn)
		}
	case *Alias:
		Walk(node.Expr, fn)
	case *Mod:
		Walk(node.Expr, fn)
	}
}

// Equal reports structural equality of two nodes. Literal values compare
// loosely across numeric types so a re-parsed tree matches the original.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch x := a.(type) {
	case *Literal:
		y, ok := b.(*Literal)
		return ok && literalEqual(x.Value, y.Value)
	case *ID:
		y, ok := b.(*ID)
		if !ok || x.Value != y.Value || len(x.Qualifiers) != len(y.Qualifiers) {
			return false
		}
		for i := range x.Qualifiers {
			if x.Qualifiers[i] != y.Qualifiers[i] {
				return false
			}
		}
		return true
	case *Func:
		y, ok := b.(*Func)
		return ok && x.Name == y.Name && nodesEqual(x.Args, y.Args)
	case *Op:
		y, ok := b.(*Op)
		return ok && x.Name == y.Name && nodesEqual(x.Args, y.Args)
	case *Alias:
		y, ok := b.(*Alias)
		return ok && x.Value == y.Value && Equal(x.Expr, y.Expr)
	case *Mod:
		y, ok := b.(*Mod)
		return ok && x.Name == y.Name && Equal(x.Expr, y.Expr)
	case *Wildcard:
		_, ok := b.(*Wildcard)
		return ok
	case *Subquery:
		y, ok := b.(*Subquery)
		return ok && x.Value == y.Value
	}
	return false
}

func nodesEqual(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func literalEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && math.Abs(af-bf) < 1e-9
	}
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !literalEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
