package lexer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/grimoire-orm/grimoire/engine/ast"
)

// Keywords recognized outside the operator vocabulary.
const (
	KeywordAS       = "AS"
	KeywordASC      = "ASC"
	KeywordDESC     = "DESC"
	KeywordDISTINCT = "DISTINCT"
)

var keywords = map[string]bool{
	KeywordAS:       true,
	KeywordASC:      true,
	KeywordDESC:     true,
	KeywordDISTINCT: true,
}

// Word operators that pair with a leading NOT into a single operator
// token, longest match first.
var notPrefixed = map[string]string{
	"LIKE":    "NOT LIKE",
	"IN":      "NOT IN",
	"BETWEEN": "NOT BETWEEN",
}

// Tokenizer converts an expression string to tokens
type Tokenizer struct {
	input  string
	pos    int
	line   int
	column int
	tokens []Token
}

// Tokenize converts an expression string to tokens, validating operators
// against the closed vocabulary.
func Tokenize(input string) ([]Token, error) {
	t := &Tokenizer{
		input:  input,
		pos:    0,
		line:   1,
		column: 1,
	}
	return t.tokenize()
}

func (t *Tokenizer) tokenize() ([]Token, error) {
	for t.pos < len(t.input) {
		if t.skipWhitespace() {
			continue
		}

		ch := t.input[t.pos]

		switch ch {
		case '(':
			t.addToken(TOKEN_LPAREN, "(")
			t.advance()
			continue
		case ')':
			t.addToken(TOKEN_RPAREN, ")")
			t.advance()
			continue
		case ',':
			t.addToken(TOKEN_COMMA, ",")
			t.advance()
			continue
		case '?':
			t.addToken(TOKEN_PLACEHOLDER, "?")
			t.advance()
			continue
		case '\'', '"':
			token, err := t.scanString(ch)
			if err != nil {
				return nil, err
			}
			t.tokens = append(t.tokens, token)
			continue
		}

		if unicode.IsLetter(rune(ch)) || ch == '_' {
			token, err := t.scanWord()
			if err != nil {
				return nil, err
			}
			t.tokens = append(t.tokens, token)
			continue
		}

		if unicode.IsDigit(rune(ch)) || (ch == '-' && t.peekDigit() && t.canStartNegativeNumber()) {
			token := t.scanNumber()
			t.tokens = append(t.tokens, token)
			continue
		}

		if isOperatorChar(ch) {
			token, err := t.scanOperator()
			if err != nil {
				return nil, err
			}
			t.tokens = append(t.tokens, token)
			continue
		}

		return nil, &ParseError{
			Message:  fmt.Sprintf("unexpected character '%c'", ch),
			Position: t.pos,
			Line:     t.line,
			Column:   t.column,
		}
	}

	t.addToken(TOKEN_EOF, "")

	return t.tokens, nil
}

func (t *Tokenizer) skipWhitespace() bool {
	skipped := false
	for t.pos < len(t.input) {
		ch := t.input[t.pos]
		if ch == ' ' || ch == '\t' {
			t.column++
			t.pos++
			skipped = true
		} else if ch == '\n' {
			t.line++
			t.column = 1
			t.pos++
			skipped = true
		} else if ch == '\r' {
			t.pos++
			skipped = true
		} else {
			break
		}
	}
	return skipped
}

func (t *Tokenizer) advance() {
	t.pos++
	t.column++
}

func (t *Tokenizer) peekDigit() bool {
	if t.pos+1 < len(t.input) {
		return unicode.IsDigit(rune(t.input[t.pos+1]))
	}
	return false
}

// canStartNegativeNumber reports whether a '-' here begins a negative
// literal rather than a binary minus. True only when the previous token is
// an operator, '(', ',', or start of input.
func (t *Tokenizer) canStartNegativeNumber() bool {
	if len(t.tokens) == 0 {
		return true
	}

	switch t.tokens[len(t.tokens)-1].Type {
	case TOKEN_OPERATOR, TOKEN_LPAREN, TOKEN_COMMA:
		return true
	}
	return false
}

func (t *Tokenizer) addToken(tokenType TokenType, value string) {
	t.tokens = append(t.tokens, Token{
		Type:     tokenType,
		Value:    value,
		Position: t.pos,
		Line:     t.line,
		Column:   t.column,
	})
}

func (t *Tokenizer) scanString(quote byte) (Token, error) {
	startPos := t.pos
	startLine := t.line
	startCol := t.column

	t.advance() // Skip opening quote

	var value strings.Builder
	for t.pos < len(t.input) {
		ch := t.input[t.pos]

		if ch == '\\' && t.pos+1 < len(t.input) {
			t.advance()
			switch t.input[t.pos] {
			case 'n':
				value.WriteByte('\n')
			case 't':
				value.WriteByte('\t')
			case 'r':
				value.WriteByte('\r')
			case '\\':
				value.WriteByte('\\')
			case '\'':
				value.WriteByte('\'')
			case '"':
				value.WriteByte('"')
			default:
				value.WriteByte(t.input[t.pos])
			}
			t.advance()
			continue
		}

		if ch == quote {
			t.advance() // Skip closing quote
			return Token{
				Type:     TOKEN_STRING,
				Value:    value.String(),
				Position: startPos,
				Line:     startLine,
				Column:   startCol,
			}, nil
		}

		value.WriteByte(ch)
		t.advance()
	}

	return Token{}, &ParseError{
		Message:  fmt.Sprintf("unclosed string, expected %c", quote),
		Position: startPos,
		Line:     startLine,
		Column:   startCol,
	}
}

func (t *Tokenizer) scanNumber() Token {
	startPos := t.pos
	startCol := t.column

	var value strings.Builder

	if t.input[t.pos] == '-' {
		value.WriteByte('-')
		t.advance()
	}

	for t.pos < len(t.input) && unicode.IsDigit(rune(t.input[t.pos])) {
		value.WriteByte(t.input[t.pos])
		t.advance()
	}

	if t.pos < len(t.input) && t.input[t.pos] == '.' && t.peekDigit() {
		value.WriteByte('.')
		t.advance()
		for t.pos < len(t.input) && unicode.IsDigit(rune(t.input[t.pos])) {
			value.WriteByte(t.input[t.pos])
			t.advance()
		}
	}

	return Token{
		Type:     TOKEN_NUMBER,
		Value:    value.String(),
		Position: startPos,
		Line:     t.line,
		Column:   startCol,
	}
}

func (t *Tokenizer) scanWord() (Token, error) {
	startPos := t.pos
	startCol := t.column

	var value strings.Builder
	for t.pos < len(t.input) {
		ch := t.input[t.pos]
		if unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_' || ch == '.' {
			value.WriteByte(ch)
			t.advance()
		} else {
			break
		}
	}

	word := value.String()
	upper := strings.ToUpper(word)

	// NOT LIKE / NOT IN / NOT BETWEEN must win over bare NOT
	if upper == "NOT" {
		if combined := t.tryNotCompound(); combined != "" {
			upper = combined
			word = combined
		}
	}

	return Token{
		Type:     t.classifyWord(upper),
		Value:    word,
		Position: startPos,
		Line:     t.line,
		Column:   startCol,
	}, nil
}

// tryNotCompound consumes the word after NOT when the pair forms a
// compound operator, restoring position otherwise.
func (t *Tokenizer) tryNotCompound() string {
	savedPos := t.pos
	savedCol := t.column
	savedLine := t.line

	t.skipWhitespace()

	var next strings.Builder
	for t.pos < len(t.input) {
		ch := t.input[t.pos]
		if unicode.IsLetter(rune(ch)) {
			next.WriteByte(ch)
			t.advance()
		} else {
			break
		}
	}

	if combined, ok := notPrefixed[strings.ToUpper(next.String())]; ok {
		return combined
	}

	t.pos = savedPos
	t.column = savedCol
	t.line = savedLine
	return ""
}

func (t *Tokenizer) classifyWord(upper string) TokenType {
	if keywords[upper] {
		return TOKEN_KEYWORD
	}
	if _, ok := ast.LookupOperator(upper); ok {
		return TOKEN_OPERATOR
	}
	if upper == "TRUE" || upper == "FALSE" {
		return TOKEN_BOOLEAN
	}
	if upper == "NULL" {
		return TOKEN_NULL
	}
	return TOKEN_IDENTIFIER
}

func (t *Tokenizer) scanOperator() (Token, error) {
	startPos := t.pos
	startCol := t.column

	var value strings.Builder

	for t.pos < len(t.input) && isOperatorChar(t.input[t.pos]) {
		value.WriteByte(t.input[t.pos])
		t.advance()
	}

	op := value.String()

	if _, ok := ast.LookupOperator(op); !ok {
		return Token{}, &ParseError{
			Message:  fmt.Sprintf("unknown operator '%s'", op),
			Position: startPos,
			Line:     t.line,
			Column:   startCol,
		}
	}

	return Token{
		Type:     TOKEN_OPERATOR,
		Value:    op,
		Position: startPos,
		Line:     t.line,
		Column:   startCol,
	}, nil
}

func isOperatorChar(ch byte) bool {
	return ch == '=' || ch == '!' || ch == '<' || ch == '>' || ch == '&' || ch == '|' ||
		ch == '*' || ch == '%' || ch == '+' || ch == '-' || ch == '/' || ch == '^'
}
