// Package validator checks compiled SQL against a real grammar for the
// target dialect before it ever reaches a connection.
package validator

import (
	"errors"
	"fmt"

	pgparser "github.com/pganalyze/pg_query_go/v5/parser"
	"github.com/xwb1989/sqlparser"

	"github.com/grimoire-orm/grimoire/engine/schema"
)

// ValidationResult contains detailed validation info
type ValidationResult struct {
	Valid    bool
	Error    string
	Position int // Character position of error
}

// Validate checks SQL syntax for the dialect.
func Validate(sql string, dialect schema.Dialect) error {
	switch dialect {
	case schema.Postgres:
		return ValidatePostgres(sql)
	case schema.MySQL:
		return ValidateMySQL(sql)
	case schema.SQLite:
		return ValidateSQLite(sql)
	default:
		return fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

// ValidateWithDetails returns detailed validation result
func ValidateWithDetails(sql string, dialect schema.Dialect) (*ValidationResult, error) {
	err := Validate(sql, dialect)
	if err != nil {
		return &ValidationResult{
			Valid:    false,
			Error:    err.Error(),
			Position: errorPosition(err),
		}, nil
	}
	return &ValidationResult{Valid: true}, nil
}

// errorPosition recovers the character position from the grammar errors
// that carry one; zero means unknown.
func errorPosition(err error) int {
	var positioned sqlparser.PositionedErr
	if errors.As(err, &positioned) {
		return positioned.Pos
	}
	var pgErr *pgparser.Error
	if errors.As(err, &pgErr) {
		return pgErr.Cursorpos
	}
	return 0
}
