package ast

// Operator is the closed vocabulary of operator nodes. The compiler
// switches exhaustively over it; rewriting by operand shape (NULL, array,
// subquery) happens there, never here.
type Operator int

const (
	OpInvalid Operator = iota
	OpEq
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpLike
	OpNotLike
	OpIn
	OpNotIn
	OpBetween
	OpNotBetween
	OpAnd
	OpOr
	OpXor
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
)

var opNames = map[Operator]string{
	OpEq:         "=",
	OpNe:         "!=",
	OpGt:         ">",
	OpGe:         ">=",
	OpLt:         "<",
	OpLe:         "<=",
	OpLike:       "LIKE",
	OpNotLike:    "NOT LIKE",
	OpIn:         "IN",
	OpNotIn:      "NOT IN",
	OpBetween:    "BETWEEN",
	OpNotBetween: "NOT BETWEEN",
	OpAnd:        "AND",
	OpOr:         "OR",
	OpXor:        "XOR",
	OpNot:        "NOT",
	OpAdd:        "+",
	OpSub:        "-",
	OpMul:        "*",
	OpDiv:        "/",
	OpMod:        "%",
	OpPow:        "^",
}

// String returns the SQL spelling of the operator.
func (op Operator) String() string { return opNames[op] }

// Precedence follows ^ > * / % > + - > comparisons > NOT > AND > XOR > OR.
func (op Operator) Precedence() int {
	switch op {
	case OpPow:
		return 8
	case OpMul, OpDiv, OpMod:
		return 7
	case OpAdd, OpSub:
		return 6
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe,
		OpLike, OpNotLike, OpIn, OpNotIn, OpBetween, OpNotBetween:
		return 5
	case OpNot:
		return 4
	case OpAnd:
		return 3
	case OpXor:
		return 2
	case OpOr:
		return 1
	}
	return 0
}

// Arity returns the number of arguments the operator takes.
func (op Operator) Arity() int {
	switch op {
	case OpNot:
		return 1
	case OpBetween, OpNotBetween:
		return 3
	}
	return 2
}

// Unary reports whether the operator is prefix-unary.
func (op Operator) Unary() bool { return op == OpNot }

// Comparison reports whether the operator yields a boolean from values.
func (op Operator) Comparison() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe,
		OpLike, OpNotLike, OpIn, OpNotIn, OpBetween, OpNotBetween:
		return true
	}
	return false
}

// Logical reports whether the operator combines boolean operands.
func (op Operator) Logical() bool {
	switch op {
	case OpAnd, OpOr, OpXor, OpNot:
		return true
	}
	return false
}

// Negated returns the complementary comparison, used when the compiler
// rewrites = NULL into IS NULL and = [..] into IN.
func (op Operator) Negated() bool { return op == OpNe || op == OpNotLike || op == OpNotIn || op == OpNotBetween }

// LookupOperator resolves an operator spelling (upper-cased for words) to
// its Operator. Symbol aliases &&, ||, ! and <> are accepted.
func LookupOperator(text string) (Operator, bool) {
	op, ok := opLookup[text]
	return op, ok
}

var opLookup = map[string]Operator{
	"=":           OpEq,
	"==":          OpEq,
	"!=":          OpNe,
	"<>":          OpNe,
	">":           OpGt,
	">=":          OpGe,
	"<":           OpLt,
	"<=":          OpLe,
	"LIKE":        OpLike,
	"NOT LIKE":    OpNotLike,
	"IN":          OpIn,
	"NOT IN":      OpNotIn,
	"BETWEEN":     OpBetween,
	"NOT BETWEEN": OpNotBetween,
	"AND":         OpAnd,
	"&&":          OpAnd,
	"OR":          OpOr,
	"||":          OpOr,
	"XOR":         OpXor,
	"NOT":         OpNot,
	"!":           OpNot,
	"+":           OpAdd,
	"-":           OpSub,
	"*":           OpMul,
	"/":           OpDiv,
	"%":           OpMod,
	"^":           OpPow,
}
