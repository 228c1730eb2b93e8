package lexer

import "fmt"

// ParseError reports a lexical or syntactic failure with its position.
type ParseError struct {
	Message  string
	Position int
	Line     int
	Column   int
	Token    string
}

func (e *ParseError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("parse error at line %d column %d near %q: %s", e.Line, e.Column, e.Token, e.Message)
	}
	return fmt.Sprintf("parse error at line %d column %d: %s", e.Line, e.Column, e.Message)
}
