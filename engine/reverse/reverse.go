// Package reverse parses compiled MySQL SQL back into expression trees,
// so a compile result can be verified structurally against the query
// state that produced it.
package reverse

import "errors"

var (
	ErrNotSupported = errors.New("statement not supported")
	ErrParseError   = errors.New("failed to parse query")
	ErrEmptyQuery   = errors.New("empty query")
)
