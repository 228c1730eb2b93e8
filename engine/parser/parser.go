package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grimoire-orm/grimoire/engine/ast"
	"github.com/grimoire-orm/grimoire/engine/lexer"
)

// Parser consumes the token stream of one expression list, binding '?'
// placeholders to positional values in order.
type Parser struct {
	tokens   []lexer.Token
	pos      int
	values   []any
	valueIdx int
}

// ParseExprList parses a comma separated expression list, e.g. a select
// list or the arguments of a WHERE template. Each '?' consumes the next
// positional value and is typed from that value at parse time.
func ParseExprList(input string, values ...any) ([]ast.Node, error) {
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		return nil, err
	}

	p := &Parser{tokens: tokens, values: values}

	var exprs []ast.Node
	for !p.at(lexer.TOKEN_EOF) {
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if !p.accept(lexer.TOKEN_COMMA) {
			break
		}
	}

	if !p.at(lexer.TOKEN_EOF) {
		return nil, p.errorf("unexpected token %q", p.peek().Value)
	}
	if p.valueIdx < len(p.values) {
		return nil, p.errorf("%d placeholder value(s) left unconsumed", len(p.values)-p.valueIdx)
	}

	return exprs, nil
}

// ParseExpr parses a single expression and rejects trailing input.
func ParseExpr(input string, values ...any) (ast.Node, error) {
	exprs, err := ParseExprList(input, values...)
	if err != nil {
		return nil, err
	}
	if len(exprs) != 1 {
		return nil, fmt.Errorf("expected a single expression, got %d", len(exprs))
	}
	return exprs[0], nil
}

func (p *Parser) peek() lexer.Token { return p.tokens[p.pos] }

func (p *Parser) at(t lexer.TokenType) bool { return p.peek().Type == t }

func (p *Parser) next() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Type != lexer.TOKEN_EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) accept(t lexer.TokenType) bool {
	if p.at(t) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) expect(t lexer.TokenType, what string) (lexer.Token, error) {
	if !p.at(t) {
		return lexer.Token{}, p.errorf("expected %s, got %q", what, p.peek().Value)
	}
	return p.next(), nil
}

func (p *Parser) errorf(format string, args ...any) error {
	tok := p.peek()
	return &lexer.ParseError{
		Message:  fmt.Sprintf(format, args...),
		Position: tok.Position,
		Line:     tok.Line,
		Column:   tok.Column,
		Token:    tok.Value,
	}
}

// parseExpression is the precedence climber. Binary operators at or above
// minPrec are folded into the left-hand tree, which keeps chains of equal
// precedence left-associative.
func (p *Parser) parseExpression(minPrec int) (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()

		if tok.Type == lexer.TOKEN_KEYWORD && strings.ToUpper(tok.Value) == lexer.KeywordAS {
			p.next()
			name, err := p.expect(lexer.TOKEN_IDENTIFIER, "alias name")
			if err != nil {
				return nil, err
			}
			left = &ast.Alias{Value: name.Value, Expr: left, Position: tok.Position}
			continue
		}

		if tok.Type != lexer.TOKEN_OPERATOR {
			break
		}
		op, ok := ast.LookupOperator(strings.ToUpper(tok.Value))
		if !ok || op.Unary() {
			break
		}
		prec := op.Precedence()
		if prec < minPrec {
			break
		}
		p.next()

		if op == ast.OpBetween || op == ast.OpNotBetween {
			left, err = p.parseBetween(op, left, tok.Position)
			if err != nil {
				return nil, err
			}
			continue
		}

		if op == ast.OpIn || op == ast.OpNotIn {
			right, err := p.parseInValues(prec + 1)
			if err != nil {
				return nil, err
			}
			left = &ast.Op{Name: op, Args: []ast.Node{left, right}, Position: tok.Position}
			continue
		}

		right, err := p.parseExpression(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.Op{Name: op, Args: []ast.Node{left, right}, Position: tok.Position}
	}

	return left, nil
}

// parseBetween parses the ternary lower AND upper tail. The conjunction
// must be a literal AND token.
func (p *Parser) parseBetween(op ast.Operator, subject ast.Node, pos int) (ast.Node, error) {
	lower, err := p.parseExpression(op.Precedence() + 1)
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	if tok.Type != lexer.TOKEN_OPERATOR || strings.ToUpper(tok.Value) != "AND" {
		return nil, p.errorf("%s requires an AND between its bounds", op)
	}
	p.next()

	upper, err := p.parseExpression(op.Precedence() + 1)
	if err != nil {
		return nil, err
	}

	return &ast.Op{Name: op, Args: []ast.Node{subject, lower, upper}, Position: pos}, nil
}

func (p *Parser) parseUnary() (ast.Node, error) {
	tok := p.peek()
	if tok.Type == lexer.TOKEN_OPERATOR {
		if op, ok := ast.LookupOperator(strings.ToUpper(tok.Value)); ok && op.Unary() {
			p.next()
			operand, err := p.parseExpression(op.Precedence() + 1)
			if err != nil {
				return nil, err
			}
			return &ast.Op{Name: op, Args: []ast.Node{operand}, Position: tok.Position}, nil
		}
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	tok := p.next()

	switch tok.Type {
	case lexer.TOKEN_NUMBER:
		return numberLiteral(tok)

	case lexer.TOKEN_STRING:
		return &ast.Literal{Value: tok.Value, Position: tok.Position}, nil

	case lexer.TOKEN_BOOLEAN:
		return &ast.Literal{Value: strings.EqualFold(tok.Value, "true"), Position: tok.Position}, nil

	case lexer.TOKEN_NULL:
		return &ast.Literal{Value: nil, Position: tok.Position}, nil

	case lexer.TOKEN_PLACEHOLDER:
		if p.valueIdx >= len(p.values) {
			return nil, p.errorf("no value bound for placeholder %d", p.valueIdx+1)
		}
		value := p.values[p.valueIdx]
		p.valueIdx++
		return LiteralFromValue(value, tok.Position)

	case lexer.TOKEN_IDENTIFIER:
		if p.at(lexer.TOKEN_LPAREN) {
			return p.parseFuncCall(tok)
		}
		return identifier(tok), nil

	case lexer.TOKEN_KEYWORD:
		if strings.ToUpper(tok.Value) == lexer.KeywordDISTINCT {
			inner, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Mod{Name: "distinct", Expr: inner, Position: tok.Position}, nil
		}
		return nil, p.errorfAt(tok, "unexpected keyword %q", tok.Value)

	case lexer.TOKEN_OPERATOR:
		if tok.Value == "*" {
			return &ast.Wildcard{Position: tok.Position}, nil
		}
		return nil, p.errorfAt(tok, "unexpected operator %q", tok.Value)

	case lexer.TOKEN_LPAREN:
		return p.parseGroup(tok)
	}

	return nil, p.errorfAt(tok, "unexpected token %q", tok.Value)
}

// parseGroup handles '(' in expression position: either a wrapped
// sub-expression or a literal value list such as (1, 2, 3).
func (p *Parser) parseGroup(open lexer.Token) (ast.Node, error) {
	exprs, err := p.parseGroupItems()
	if err != nil {
		return nil, err
	}
	if len(exprs) == 1 {
		return exprs[0], nil
	}
	return literalArray(exprs, open)
}

// parseInValues parses the right-hand side of IN / NOT IN. A paren group
// here is a value list, so a single element stays a one-element array
// instead of folding back to a scalar.
func (p *Parser) parseInValues(minPrec int) (ast.Node, error) {
	if !p.at(lexer.TOKEN_LPAREN) {
		return p.parseExpression(minPrec)
	}
	open := p.next()
	exprs, err := p.parseGroupItems()
	if err != nil {
		return nil, err
	}
	if len(exprs) == 1 {
		switch v := exprs[0].(type) {
		case *ast.Subquery:
			return v, nil
		case *ast.Literal:
			if v.IsArray() {
				return v, nil
			}
		}
	}
	return literalArray(exprs, open)
}

func (p *Parser) parseGroupItems() ([]ast.Node, error) {
	var exprs []ast.Node
	for {
		expr, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		if !p.accept(lexer.TOKEN_COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.TOKEN_RPAREN, "')'"); err != nil {
		return nil, err
	}
	return exprs, nil
}

// literalArray folds group elements into a literal array; every element
// must itself be a literal.
func literalArray(exprs []ast.Node, open lexer.Token) (ast.Node, error) {
	values := make([]any, len(exprs))
	for i, expr := range exprs {
		lit, ok := expr.(*ast.Literal)
		if !ok {
			return nil, &lexer.ParseError{
				Message:  "value list may only contain literals",
				Position: expr.Pos(),
			}
		}
		values[i] = lit.Value
	}
	return &ast.Literal{Value: values, Position: open.Position}, nil
}

func (p *Parser) parseFuncCall(name lexer.Token) (ast.Node, error) {
	p.next() // consume '('

	fn := &ast.Func{Name: strings.ToUpper(name.Value), Position: name.Position}
	if p.accept(lexer.TOKEN_RPAREN) {
		return fn, nil
	}

	for {
		arg, err := p.parseExpression(0)
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)
		if !p.accept(lexer.TOKEN_COMMA) {
			break
		}
	}
	if _, err := p.expect(lexer.TOKEN_RPAREN, "')'"); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *Parser) errorfAt(tok lexer.Token, format string, args ...any) error {
	return &lexer.ParseError{
		Message:  fmt.Sprintf(format, args...),
		Position: tok.Position,
		Line:     tok.Line,
		Column:   tok.Column,
		Token:    tok.Value,
	}
}

func numberLiteral(tok lexer.Token) (ast.Node, error) {
	if strings.Contains(tok.Value, ".") {
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, &lexer.ParseError{Message: "malformed number", Position: tok.Position, Token: tok.Value}
		}
		return &ast.Literal{Value: f, Position: tok.Position}, nil
	}
	n, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		return nil, &lexer.ParseError{Message: "malformed number", Position: tok.Position, Token: tok.Value}
	}
	return &ast.Literal{Value: n, Position: tok.Position}, nil
}

// identifier splits a dotted reference into qualifiers plus column name.
func identifier(tok lexer.Token) *ast.ID {
	parts := strings.Split(tok.Value, ".")
	id := &ast.ID{Value: parts[len(parts)-1], Position: tok.Position}
	if len(parts) > 1 {
		id.Qualifiers = parts[:len(parts)-1]
	}
	return id
}
