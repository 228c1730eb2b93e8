package validator

import (
	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// ValidatePostgres validates PostgreSQL SQL syntax
func ValidatePostgres(sql string) error {
	_, err := pg_query.Parse(sql)
	return err
}
