package parser

import (
	"fmt"
	"reflect"
	"time"

	"github.com/grimoire-orm/grimoire/engine/ast"
	"github.com/grimoire-orm/grimoire/engine/lexer"
)

// LiteralFromValue types a positional value into its AST form. A nested
// query builder becomes a Subquery node; slices become array literals.
func LiteralFromValue(value any, pos int) (ast.Node, error) {
	if value == nil {
		return &ast.Literal{Value: nil, Position: pos}, nil
	}

	if q, ok := value.(ast.QueryValue); ok {
		return &ast.Subquery{Value: q, Position: pos}, nil
	}

	switch v := value.(type) {
	case bool, string, time.Time, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return &ast.Literal{Value: v, Position: pos}, nil
	case []any:
		return &ast.Literal{Value: v, Position: pos}, nil
	}

	// Typed slices ([]int, []string, ...) flatten into []any.
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice {
		values := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			values[i] = rv.Index(i).Interface()
		}
		return &ast.Literal{Value: values, Position: pos}, nil
	}

	return nil, &lexer.ParseError{
		Message:  fmt.Sprintf("unsupported placeholder value of type %T", value),
		Position: pos,
	}
}
