// Package grimoire compiles chainable query builders into dialect SQL
// and runs them against database/sql connections.
package grimoire

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/grimoire-orm/grimoire/engine/schema"
	"github.com/grimoire-orm/grimoire/engine/spell"
	"github.com/grimoire-orm/grimoire/engine/spellbook"
	"github.com/grimoire-orm/grimoire/engine/validator"
)

// Client wraps a database connection and compiles spells against it.
type Client struct {
	db     *sql.DB
	driver schema.Driver

	// Strict re-parses every compiled statement with a real grammar for
	// the dialect before it runs.
	Strict bool
}

// Wrap wraps a SQL database connection for the given dialect.
func Wrap(db *sql.DB, dialect schema.Dialect) (*Client, error) {
	driver := schema.NewDriver(dialect)
	if !driver.Supported() {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	return &Client{db: db, driver: driver}, nil
}

// Driver returns the dialect descriptor the client compiles for.
func (c *Client) Driver() schema.Driver { return c.driver }

// Compile renders the spell without executing it.
func (c *Client) Compile(sp *spell.Spell) (spellbook.Statement, error) {
	stmt, err := spellbook.Format(sp, c.driver)
	if err != nil {
		return spellbook.Statement{}, err
	}
	if c.Strict {
		if err := validator.Validate(stmt.SQL, c.driver.Dialect); err != nil {
			return spellbook.Statement{}, fmt.Errorf("validation error: %w", err)
		}
	}
	return stmt, nil
}

// Query compiles and runs a row-returning spell.
func (c *Client) Query(ctx context.Context, sp *spell.Spell) ([]map[string]any, error) {
	stmt, err := c.Compile(sp)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, stmt.SQL, stmt.Values...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

// Exec compiles and runs a write spell, reporting affected rows and the
// inserted id where the driver surfaces one.
func (c *Client) Exec(ctx context.Context, sp *spell.Spell) (ExecResult, error) {
	stmt, err := c.Compile(sp)
	if err != nil {
		return ExecResult{}, err
	}
	result, err := c.db.ExecContext(ctx, stmt.SQL, stmt.Values...)
	if err != nil {
		return ExecResult{}, fmt.Errorf("exec error: %w", err)
	}
	affected, _ := result.RowsAffected()
	insertID, _ := result.LastInsertId()
	return ExecResult{RowsAffected: affected, InsertID: insertID}, nil
}

// ExecResult is the outcome of a write spell.
type ExecResult struct {
	RowsAffected int64
	InsertID     int64
}

// Compile renders a spell for a dialect without a client.
func Compile(sp *spell.Spell, dialect schema.Dialect) (spellbook.Statement, error) {
	return spellbook.Format(sp, schema.NewDriver(dialect))
}

func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]any

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any)
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		results = append(results, row)
	}

	return results, rows.Err()
}
