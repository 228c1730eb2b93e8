package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/grimoire-orm/grimoire/engine/ast"
	"github.com/grimoire-orm/grimoire/engine/lexer"
)

func mustParse(t *testing.T, input string, values ...any) ast.Node {
	t.Helper()
	node, err := ParseExpr(input, values...)
	if err != nil {
		t.Fatalf("ParseExpr(%q): %v", input, err)
	}
	return node
}

func TestParsePrecedence(t *testing.T) {
	// AND binds tighter than OR, comparisons tighter than both.
	node := mustParse(t, "a = 1 OR b = 2 AND c = 3")

	or, ok := node.(*ast.Op)
	if !ok || or.Name != ast.OpOr {
		t.Fatalf("root = %#v, want OR", node)
	}
	and, ok := or.Args[1].(*ast.Op)
	if !ok || and.Name != ast.OpAnd {
		t.Fatalf("right arm = %#v, want AND", or.Args[1])
	}
}

func TestParseLeftAssociative(t *testing.T) {
	node := mustParse(t, "a - b - c")
	outer, ok := node.(*ast.Op)
	if !ok || outer.Name != ast.OpSub {
		t.Fatalf("root = %#v", node)
	}
	inner, ok := outer.Args[0].(*ast.Op)
	if !ok || inner.Name != ast.OpSub {
		t.Fatalf("left arm = %#v, want (a - b)", outer.Args[0])
	}
}

func TestParseGroupingOverridesPrecedence(t *testing.T) {
	node := mustParse(t, "(a = 1 OR b = 2) AND c = 3")
	and, ok := node.(*ast.Op)
	if !ok || and.Name != ast.OpAnd {
		t.Fatalf("root = %#v, want AND", node)
	}
	or, ok := and.Args[0].(*ast.Op)
	if !ok || or.Name != ast.OpOr {
		t.Fatalf("left arm = %#v, want OR", and.Args[0])
	}
}

func TestParsePlaceholders(t *testing.T) {
	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	node := mustParse(t, "title = ? AND createdAt > ?", "Leah", when)

	and := node.(*ast.Op)
	eq := and.Args[0].(*ast.Op)
	if lit, ok := eq.Args[1].(*ast.Literal); !ok || lit.Value != "Leah" {
		t.Errorf("first placeholder = %#v, want Leah", eq.Args[1])
	}
	gt := and.Args[1].(*ast.Op)
	if lit, ok := gt.Args[1].(*ast.Literal); !ok || !lit.Value.(time.Time).Equal(when) {
		t.Errorf("second placeholder = %#v", gt.Args[1])
	}
}

func TestParsePlaceholderSlice(t *testing.T) {
	node := mustParse(t, "id in ?", []int{1, 2, 3})
	in := node.(*ast.Op)
	lit, ok := in.Args[1].(*ast.Literal)
	if !ok || !lit.IsArray() {
		t.Fatalf("rhs = %#v, want array literal", in.Args[1])
	}
	arr := lit.Value.([]any)
	if len(arr) != 3 || arr[0] != 1 {
		t.Errorf("array = %#v", arr)
	}
}

func TestParsePlaceholderCountMismatch(t *testing.T) {
	if _, err := ParseExpr("a = ?"); err == nil {
		t.Error("missing value accepted")
	}
	if _, err := ParseExpr("a = ?", 1, 2); err == nil {
		t.Error("extra value accepted")
	}
}

func TestParseValueList(t *testing.T) {
	node := mustParse(t, "status IN (1, 2, 3)")
	in := node.(*ast.Op)
	if in.Name != ast.OpIn {
		t.Fatalf("op = %v", in.Name)
	}
	lit := in.Args[1].(*ast.Literal)
	if !lit.IsArray() {
		t.Fatalf("rhs = %#v", lit)
	}
}

func TestParseValueListSingleElement(t *testing.T) {
	// A one-element group after IN is still a value list, not a
	// parenthesized scalar.
	for _, input := range []string{"id IN (1)", "id NOT IN (1)"} {
		node := mustParse(t, input)
		in := node.(*ast.Op)
		lit, ok := in.Args[1].(*ast.Literal)
		if !ok || !lit.IsArray() {
			t.Fatalf("%s rhs = %#v, want array literal", input, in.Args[1])
		}
		if arr := lit.Value.([]any); len(arr) != 1 || arr[0] != int64(1) {
			t.Errorf("%s rhs = %#v, want [1]", input, lit.Value)
		}
	}

	if node := mustParse(t, "(1)"); node.(*ast.Literal).IsArray() {
		t.Error("plain parenthesized scalar became an array")
	}
}

func TestParseInParenthesizedPlaceholderSlice(t *testing.T) {
	node := mustParse(t, "id IN (?)", []int{1, 2})
	in := node.(*ast.Op)
	lit := in.Args[1].(*ast.Literal)
	if arr := lit.Value.([]any); len(arr) != 2 {
		t.Fatalf("rhs = %#v, want the bound slice kept flat", lit.Value)
	}
}

func TestParseValueListRejectsNonLiterals(t *testing.T) {
	_, err := ParseExpr("status IN (1, id)")
	if err == nil {
		t.Fatal("value list with identifier accepted")
	}
}

func TestParseBetween(t *testing.T) {
	node := mustParse(t, "age NOT BETWEEN 18 AND 65")
	op := node.(*ast.Op)
	if op.Name != ast.OpNotBetween || len(op.Args) != 3 {
		t.Fatalf("got %v with %d args", op.Name, len(op.Args))
	}

	// The AND after the lower bound belongs to BETWEEN, not the logical
	// chain; a following AND still parses as a conjunction.
	node = mustParse(t, "age BETWEEN 18 AND 65 AND active = true")
	and := node.(*ast.Op)
	if and.Name != ast.OpAnd {
		t.Fatalf("root = %v, want AND", and.Name)
	}
	between := and.Args[0].(*ast.Op)
	if between.Name != ast.OpBetween {
		t.Fatalf("left arm = %v, want BETWEEN", between.Name)
	}
}

func TestParseAliasAndFunc(t *testing.T) {
	exprs, err := ParseExprList("COUNT(id) AS total, YEAR(createdAt)")
	if err != nil {
		t.Fatal(err)
	}
	if len(exprs) != 2 {
		t.Fatalf("got %d expressions", len(exprs))
	}

	alias, ok := exprs[0].(*ast.Alias)
	if !ok || alias.Value != "total" {
		t.Fatalf("first = %#v", exprs[0])
	}
	fn, ok := alias.Expr.(*ast.Func)
	if !ok || fn.Name != "COUNT" {
		t.Fatalf("aliased expr = %#v", alias.Expr)
	}
	if fn2, ok := exprs[1].(*ast.Func); !ok || fn2.Name != "YEAR" {
		t.Fatalf("second = %#v", exprs[1])
	}
}

func TestParseDistinct(t *testing.T) {
	node := mustParse(t, "DISTINCT authorId")
	mod, ok := node.(*ast.Mod)
	if !ok || mod.Name != "distinct" {
		t.Fatalf("got %#v", node)
	}
}

func TestParseQualifiedID(t *testing.T) {
	node := mustParse(t, "posts.author.name = 'x'")
	eq := node.(*ast.Op)
	id := eq.Args[0].(*ast.ID)
	if id.Value != "name" || len(id.Qualifiers) != 2 {
		t.Fatalf("got %#v", id)
	}
	if id.Qualifiers[0] != "posts" || id.Qualifiers[1] != "author" {
		t.Errorf("qualifiers = %v", id.Qualifiers)
	}
}

func TestParseNot(t *testing.T) {
	node := mustParse(t, "NOT (a = 1 AND b = 2)")
	not := node.(*ast.Op)
	if not.Name != ast.OpNot || len(not.Args) != 1 {
		t.Fatalf("got %#v", node)
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := ParseExpr("a = ,")
	var perr *lexer.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Position == 0 {
		t.Errorf("position not set: %+v", perr)
	}
}

func TestParseTrailingTokens(t *testing.T) {
	if _, err := ParseExprList("a = 1 b"); err == nil {
		t.Fatal("trailing token accepted")
	}
}

func TestParseNumbers(t *testing.T) {
	node := mustParse(t, "price > -2.5")
	gt := node.(*ast.Op)
	lit := gt.Args[1].(*ast.Literal)
	if lit.Value != -2.5 {
		t.Errorf("got %#v, want -2.5", lit.Value)
	}

	node = mustParse(t, "n = 42")
	eq := node.(*ast.Op)
	if eq.Args[1].(*ast.Literal).Value != int64(42) {
		t.Errorf("integer literal mistyped: %#v", eq.Args[1])
	}
}
