package lexer

// TokenType classifies a scanned token
type TokenType int

const (
	TOKEN_EOF TokenType = iota
	TOKEN_IDENTIFIER
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_PLACEHOLDER
	TOKEN_OPERATOR
	TOKEN_KEYWORD
	TOKEN_BOOLEAN
	TOKEN_NULL
	TOKEN_LPAREN
	TOKEN_RPAREN
	TOKEN_COMMA
)

// Token is one lexical unit of the expression grammar
type Token struct {
	Type     TokenType
	Value    string
	Position int
	Line     int
	Column   int
}
