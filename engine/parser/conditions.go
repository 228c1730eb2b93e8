package parser

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/grimoire-orm/grimoire/engine/ast"
)

// Operator aliases of the object-condition grammar.
var operatorAliases = map[string]ast.Operator{
	"$eq":         ast.OpEq,
	"$ne":         ast.OpNe,
	"$gt":         ast.OpGt,
	"$gte":        ast.OpGe,
	"$lt":         ast.OpLt,
	"$lte":        ast.OpLe,
	"$in":         ast.OpIn,
	"$nin":        ast.OpNotIn,
	"$like":       ast.OpLike,
	"$notLike":    ast.OpNotLike,
	"$between":    ast.OpBetween,
	"$notBetween": ast.OpNotBetween,
}

// ParseObjectConditions parses the object-condition grammar into a list of
// AND-joined condition nodes. Accepted documents are map[string]any,
// bson.M, and ordered bson.D; plain maps iterate in sorted key order so
// output is deterministic.
func ParseObjectConditions(obj any) ([]ast.Node, error) {
	entries, err := documentEntries(obj)
	if err != nil {
		return nil, err
	}

	var conditions []ast.Node
	for _, entry := range entries {
		node, err := parseEntry(entry.key, entry.value)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, node)
	}
	return conditions, nil
}

type entry struct {
	key   string
	value any
}

func documentEntries(obj any) ([]entry, error) {
	switch doc := obj.(type) {
	case bson.D:
		entries := make([]entry, len(doc))
		for i, e := range doc {
			entries[i] = entry{key: e.Key, value: e.Value}
		}
		return entries, nil
	case bson.M:
		return mapEntries(map[string]any(doc)), nil
	case map[string]any:
		return mapEntries(doc), nil
	}
	return nil, fmt.Errorf("unsupported condition document type %T", obj)
}

func mapEntries(doc map[string]any) []entry {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]entry, len(keys))
	for i, k := range keys {
		entries[i] = entry{key: k, value: doc[k]}
	}
	return entries
}

func parseEntry(key string, value any) (ast.Node, error) {
	switch key {
	case "$and":
		return parseLogical(ast.OpAnd, value)
	case "$or":
		return parseLogical(ast.OpOr, value)
	}
	if strings.HasPrefix(key, "$") {
		return nil, fmt.Errorf("unknown operator %s", key)
	}
	return parseFieldCondition(key, value)
}

// parseLogical handles $and/$or whose value is a sub-document or a list
// of sub-documents, folded left-first into a binary chain.
func parseLogical(op ast.Operator, value any) (ast.Node, error) {
	var branches []ast.Node

	appendDoc := func(doc any) error {
		conditions, err := ParseObjectConditions(doc)
		if err != nil {
			return err
		}
		if node := andJoin(conditions); node != nil {
			branches = append(branches, node)
		}
		return nil
	}

	switch v := value.(type) {
	case []any:
		for _, doc := range v {
			if err := appendDoc(doc); err != nil {
				return nil, err
			}
		}
	case bson.A:
		for _, doc := range v {
			if err := appendDoc(doc); err != nil {
				return nil, err
			}
		}
	default:
		if err := appendDoc(value); err != nil {
			return nil, err
		}
	}

	if len(branches) == 0 {
		return nil, fmt.Errorf("%s requires at least one condition", op)
	}

	node := branches[0]
	for _, branch := range branches[1:] {
		node = &ast.Op{Name: op, Args: []ast.Node{node, branch}}
	}
	return node, nil
}

// parseFieldCondition turns one field entry into a condition. Plain
// values become an = op regardless of NULL or array shape; the compiler
// owns the IS NULL / IN rewrites.
func parseFieldCondition(field string, value any) (ast.Node, error) {
	id := fieldID(field)

	if q, ok := value.(ast.QueryValue); ok {
		return &ast.Op{Name: ast.OpIn, Args: []ast.Node{id, &ast.Subquery{Value: q}}}, nil
	}

	if ops, ok := operatorDocument(value); ok {
		var conditions []ast.Node
		for _, e := range ops {
			op, known := operatorAliases[e.key]
			if !known {
				return nil, fmt.Errorf("unknown operator %s on field %s", e.key, field)
			}
			node, err := operatorCondition(id, op, e.value)
			if err != nil {
				return nil, err
			}
			conditions = append(conditions, node)
		}
		return andJoin(conditions), nil
	}

	lit, err := LiteralFromValue(value, 0)
	if err != nil {
		return nil, err
	}
	return &ast.Op{Name: ast.OpEq, Args: []ast.Node{id, lit}}, nil
}

func operatorCondition(id *ast.ID, op ast.Operator, value any) (ast.Node, error) {
	if op == ast.OpBetween || op == ast.OpNotBetween {
		bounds, err := valueList(value)
		if err != nil || len(bounds) != 2 {
			return nil, fmt.Errorf("%s expects exactly two bounds", op)
		}
		lower, err := LiteralFromValue(bounds[0], 0)
		if err != nil {
			return nil, err
		}
		upper, err := LiteralFromValue(bounds[1], 0)
		if err != nil {
			return nil, err
		}
		return &ast.Op{Name: op, Args: []ast.Node{id, lower, upper}}, nil
	}

	if op == ast.OpIn || op == ast.OpNotIn {
		if _, ok := value.(ast.QueryValue); !ok {
			if _, err := valueList(value); err != nil {
				return nil, fmt.Errorf("%s expects a value list, got %T", op, value)
			}
		}
	}

	lit, err := LiteralFromValue(value, 0)
	if err != nil {
		return nil, err
	}
	return &ast.Op{Name: op, Args: []ast.Node{id, lit}}, nil
}

// operatorDocument reports whether value is a sub-document keyed entirely
// by $operators, e.g. { $gt: 4, $lt: 9 }.
func operatorDocument(value any) ([]entry, bool) {
	entries, err := documentEntries(value)
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.key, "$") {
			return nil, false
		}
	}
	return entries, true
}

func valueList(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case bson.A:
		return []any(v), nil
	}
	node, err := LiteralFromValue(value, 0)
	if err != nil {
		return nil, err
	}
	if lit, ok := node.(*ast.Literal); ok {
		if arr, ok := lit.Value.([]any); ok {
			return arr, nil
		}
	}
	return nil, fmt.Errorf("expected a value list, got %T", value)
}

func fieldID(field string) *ast.ID {
	parts := strings.Split(field, ".")
	id := &ast.ID{Value: parts[len(parts)-1]}
	if len(parts) > 1 {
		id.Qualifiers = parts[:len(parts)-1]
	}
	return id
}

func andJoin(conditions []ast.Node) ast.Node {
	if len(conditions) == 0 {
		return nil
	}
	node := conditions[0]
	for _, cond := range conditions[1:] {
		node = &ast.Op{Name: ast.OpAnd, Args: []ast.Node{node, cond}}
	}
	return node
}
