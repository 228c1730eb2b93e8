package validator

import (
	"strings"

	"github.com/xwb1989/sqlparser"
)

// ValidateMySQL validates MySQL SQL syntax
func ValidateMySQL(sql string) error {
	_, err := sqlparser.Parse(sql)
	return err
}

// ValidateSQLite validates SQLite SQL syntax. The grammar overlap with
// MySQL covers everything the compiler emits except ON CONFLICT,
// RETURNING, and the LIMIT -1 form, which the MySQL parser rejects;
// statements using those pass unchecked.
func ValidateSQLite(sql string) error {
	for _, clause := range []string{" ON CONFLICT ", " RETURNING ", " LIMIT -1"} {
		if strings.Contains(sql, clause) {
			return nil
		}
	}
	return ValidateMySQL(sql)
}
