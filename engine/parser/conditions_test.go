package parser

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/grimoire-orm/grimoire/engine/ast"
)

func TestObjectConditionsPlainValues(t *testing.T) {
	conds, err := ParseObjectConditions(map[string]any{
		"title":     "Leah",
		"authorId":  1,
		"deletedAt": nil,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(conds) != 3 {
		t.Fatalf("got %d conditions, want 3", len(conds))
	}

	// Map keys iterate sorted, so order is authorId, deletedAt, title.
	eq := conds[0].(*ast.Op)
	if eq.Name != ast.OpEq || eq.Args[0].(*ast.ID).Value != "authorId" {
		t.Errorf("first condition = %#v", conds[0])
	}

	// NULL stays a plain = here; the compiler rewrites it to IS NULL.
	null := conds[1].(*ast.Op)
	if null.Name != ast.OpEq {
		t.Errorf("null condition op = %v, want =", null.Name)
	}
	if lit := null.Args[1].(*ast.Literal); !lit.IsNull() {
		t.Errorf("null condition rhs = %#v", null.Args[1])
	}
}

func TestObjectConditionsArrayValue(t *testing.T) {
	conds, err := ParseObjectConditions(map[string]any{
		"status": []any{1, 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	eq := conds[0].(*ast.Op)
	if eq.Name != ast.OpEq {
		t.Fatalf("op = %v, want = (IN rewrite happens at compile time)", eq.Name)
	}
	if lit := eq.Args[1].(*ast.Literal); !lit.IsArray() {
		t.Fatalf("rhs = %#v", eq.Args[1])
	}
}

func TestObjectConditionsOperatorDocument(t *testing.T) {
	conds, err := ParseObjectConditions(map[string]any{
		"wordCount": map[string]any{"$gte": 800, "$lt": 4000},
	})
	if err != nil {
		t.Fatal(err)
	}
	and := conds[0].(*ast.Op)
	if and.Name != ast.OpAnd {
		t.Fatalf("root = %v, want AND", and.Name)
	}
	ge := and.Args[0].(*ast.Op)
	lt := and.Args[1].(*ast.Op)
	if ge.Name != ast.OpGe || lt.Name != ast.OpLt {
		t.Errorf("ops = %v, %v", ge.Name, lt.Name)
	}
}

func TestObjectConditionsOperators(t *testing.T) {
	cases := map[string]ast.Operator{
		"$eq":      ast.OpEq,
		"$ne":      ast.OpNe,
		"$gt":      ast.OpGt,
		"$gte":     ast.OpGe,
		"$lt":      ast.OpLt,
		"$lte":     ast.OpLe,
		"$like":    ast.OpLike,
		"$notLike": ast.OpNotLike,
	}
	for alias, want := range cases {
		conds, err := ParseObjectConditions(map[string]any{
			"f": map[string]any{alias: "v"},
		})
		if err != nil {
			t.Fatalf("%s: %v", alias, err)
		}
		if op := conds[0].(*ast.Op); op.Name != want {
			t.Errorf("%s parsed as %v, want %v", alias, op.Name, want)
		}
	}
}

func TestObjectConditionsIn(t *testing.T) {
	conds, err := ParseObjectConditions(map[string]any{
		"id": map[string]any{"$in": []any{1, 2, 3}},
	})
	if err != nil {
		t.Fatal(err)
	}
	in := conds[0].(*ast.Op)
	if in.Name != ast.OpIn {
		t.Fatalf("op = %v", in.Name)
	}
}

func TestObjectConditionsInRequiresList(t *testing.T) {
	for _, doc := range []map[string]any{
		{"id": map[string]any{"$in": 5}},
		{"id": map[string]any{"$nin": "x"}},
	} {
		if _, err := ParseObjectConditions(doc); err == nil {
			t.Errorf("scalar operand accepted for %v", doc)
		}
	}

	conds, err := ParseObjectConditions(map[string]any{
		"id": map[string]any{"$in": []any{5}},
	})
	if err != nil {
		t.Fatal(err)
	}
	lit := conds[0].(*ast.Op).Args[1].(*ast.Literal)
	if arr := lit.Value.([]any); len(arr) != 1 {
		t.Fatalf("rhs = %#v, want one-element array", lit.Value)
	}
}

func TestObjectConditionsBetween(t *testing.T) {
	conds, err := ParseObjectConditions(map[string]any{
		"age": map[string]any{"$between": []any{18, 65}},
	})
	if err != nil {
		t.Fatal(err)
	}
	between := conds[0].(*ast.Op)
	if between.Name != ast.OpBetween || len(between.Args) != 3 {
		t.Fatalf("got %v with %d args", between.Name, len(between.Args))
	}

	_, err = ParseObjectConditions(map[string]any{
		"age": map[string]any{"$between": []any{18}},
	})
	if err == nil {
		t.Error("single bound accepted")
	}
}

func TestObjectConditionsOr(t *testing.T) {
	conds, err := ParseObjectConditions(map[string]any{
		"$or": []any{
			map[string]any{"title": "Leah"},
			map[string]any{"title": map[string]any{"$like": "%Leah%"}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	or := conds[0].(*ast.Op)
	if or.Name != ast.OpOr {
		t.Fatalf("root = %v, want OR", or.Name)
	}
}

func TestObjectConditionsAndDocument(t *testing.T) {
	// $and with a single sub-document folds its entries with AND.
	conds, err := ParseObjectConditions(map[string]any{
		"$and": map[string]any{"a": 1, "b": 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	and := conds[0].(*ast.Op)
	if and.Name != ast.OpAnd {
		t.Fatalf("root = %v, want AND", and.Name)
	}
}

func TestObjectConditionsUnknownOperator(t *testing.T) {
	if _, err := ParseObjectConditions(map[string]any{"$nor": []any{}}); err == nil {
		t.Error("$nor accepted")
	}
	if _, err := ParseObjectConditions(map[string]any{
		"f": map[string]any{"$regex": "x"},
	}); err == nil {
		t.Error("$regex accepted")
	}
}

func TestObjectConditionsBsonD(t *testing.T) {
	// bson.D preserves declaration order.
	conds, err := ParseObjectConditions(bson.D{
		{Key: "zzz", Value: 1},
		{Key: "aaa", Value: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	first := conds[0].(*ast.Op).Args[0].(*ast.ID)
	if first.Value != "zzz" {
		t.Errorf("first condition field = %q, want zzz", first.Value)
	}
}

func TestObjectConditionsBsonM(t *testing.T) {
	conds, err := ParseObjectConditions(bson.M{
		"status": bson.M{"$nin": bson.A{4, 5}},
	})
	if err != nil {
		t.Fatal(err)
	}
	nin := conds[0].(*ast.Op)
	if nin.Name != ast.OpNotIn {
		t.Fatalf("op = %v, want NOT IN", nin.Name)
	}
}

func TestObjectConditionsQualifiedField(t *testing.T) {
	conds, err := ParseObjectConditions(map[string]any{
		"posts.title": "Leah",
	})
	if err != nil {
		t.Fatal(err)
	}
	id := conds[0].(*ast.Op).Args[0].(*ast.ID)
	if id.Value != "title" || len(id.Qualifiers) != 1 || id.Qualifiers[0] != "posts" {
		t.Errorf("got %#v", id)
	}
}
