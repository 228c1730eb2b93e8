package validator

import (
	"testing"

	"github.com/grimoire-orm/grimoire/engine/schema"
)

func TestValidateMySQL(t *testing.T) {
	valid := []string{
		"SELECT * FROM `posts` WHERE `title` = ? AND `deleted_at` IS NULL",
		"SELECT `id`, `title` FROM `posts` ORDER BY `created_at` DESC LIMIT 10 OFFSET 5",
		"INSERT INTO `posts` (`author_id`, `title`) VALUES (?, ?) " +
			"ON DUPLICATE KEY UPDATE `id` = LAST_INSERT_ID(`id`), `title` = VALUES(`title`)",
		"UPDATE `posts` SET `title` = ? WHERE `id` = ?",
		"DELETE FROM `posts` WHERE `id` = ? LIMIT 1",
	}
	for _, sql := range valid {
		if err := ValidateMySQL(sql); err != nil {
			t.Errorf("ValidateMySQL(%q) = %v", sql, err)
		}
	}

	if err := ValidateMySQL("SELEC * FROM posts"); err == nil {
		t.Error("malformed SQL accepted")
	}
}

func TestValidatePostgres(t *testing.T) {
	valid := []string{
		`SELECT * FROM "posts" WHERE "title" = $1`,
		`INSERT INTO "posts" ("title") VALUES ($1) ` +
			`ON CONFLICT ("id") DO UPDATE SET "title" = EXCLUDED."title" RETURNING "id"`,
		`SELECT "author_id", COUNT("id") FROM "posts" GROUP BY "author_id" HAVING COUNT("id") > $1`,
	}
	for _, sql := range valid {
		if err := ValidatePostgres(sql); err != nil {
			t.Errorf("ValidatePostgres(%q) = %v", sql, err)
		}
	}

	if err := ValidatePostgres(`SELECT FROM WHERE`); err == nil {
		t.Error("malformed SQL accepted")
	}
}

func TestValidateSQLite(t *testing.T) {
	if err := ValidateSQLite("SELECT * FROM `users` WHERE `id` = ?"); err != nil {
		t.Errorf("shared grammar statement rejected: %v", err)
	}

	// Clauses outside the shared grammar pass unchecked.
	skipped := []string{
		"SELECT * FROM `users` LIMIT -1 OFFSET 4",
		"INSERT INTO `posts` (`id`) VALUES (?) ON CONFLICT (`id`) DO NOTHING RETURNING `id`",
	}
	for _, sql := range skipped {
		if err := ValidateSQLite(sql); err != nil {
			t.Errorf("ValidateSQLite(%q) = %v", sql, err)
		}
	}

	if err := ValidateSQLite("SELEC nope"); err == nil {
		t.Error("malformed SQL accepted")
	}
}

func TestValidateDispatch(t *testing.T) {
	if err := Validate("SELECT 1", schema.MySQL); err != nil {
		t.Errorf("mysql dispatch: %v", err)
	}
	if err := Validate("SELECT 1", schema.Postgres); err != nil {
		t.Errorf("postgres dispatch: %v", err)
	}
	if err := Validate("SELECT 1", schema.Dialect("oracle")); err == nil {
		t.Error("unknown dialect accepted")
	}
}

func TestValidateWithDetails(t *testing.T) {
	result, err := ValidateWithDetails("SELECT 1", schema.MySQL)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Errorf("got %+v", result)
	}

	result, err = ValidateWithDetails("SELEC 1", schema.MySQL)
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid || result.Error == "" {
		t.Errorf("got %+v", result)
	}
	if result.Position == 0 {
		t.Errorf("error position not recovered: %+v", result)
	}
}
