package grimoire

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoire-orm/grimoire/engine/schema"
	"github.com/grimoire-orm/grimoire/engine/spell"
	"github.com/grimoire-orm/grimoire/engine/spellbook"
)

func userModel() *schema.Model {
	return &schema.Model{
		Name:       "User",
		PrimaryKey: "id",
		Columns: map[string]string{
			"id":    "id",
			"name":  "name",
			"email": "email",
		},
	}
}

func newMockClient(t *testing.T, dialect schema.Dialect) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client, err := Wrap(db, dialect)
	require.NoError(t, err)
	return client, mock
}

func TestWrapRejectsUnknownDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = Wrap(db, schema.Dialect("oracle"))
	assert.Error(t, err)
}

func TestClientQuery(t *testing.T) {
	client, mock := newMockClient(t, schema.MySQL)

	mock.ExpectQuery("SELECT * FROM `users` WHERE `name` = ?").
		WithArgs("Leah").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Leah"))

	rows, err := client.Query(context.Background(),
		spell.New(userModel()).Where("name = ?", "Leah"))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "Leah", rows[0]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientQueryDecodesBytes(t *testing.T) {
	client, mock := newMockClient(t, schema.MySQL)

	mock.ExpectQuery("SELECT * FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).
			AddRow([]byte("leah@example.com")))

	rows, err := client.Query(context.Background(), spell.New(userModel()))
	require.NoError(t, err)
	assert.Equal(t, "leah@example.com", rows[0]["email"])
}

func TestClientExec(t *testing.T) {
	client, mock := newMockClient(t, schema.MySQL)

	mock.ExpectExec("INSERT INTO `users` (`name`) VALUES (?)").
		WithArgs("Leah").
		WillReturnResult(sqlmock.NewResult(7, 1))

	result, err := client.Exec(context.Background(),
		spell.New(userModel()).Insert(map[string]any{"name": "Leah"}))
	require.NoError(t, err)

	assert.Equal(t, int64(7), result.InsertID)
	assert.Equal(t, int64(1), result.RowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientCompileErrorSkipsDatabase(t *testing.T) {
	client, mock := newMockClient(t, schema.MySQL)

	_, err := client.Query(context.Background(),
		spell.New(userModel()).Where("nickname = ?", "x"))
	assert.ErrorIs(t, err, spellbook.ErrUnknownColumn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientStrictValidation(t *testing.T) {
	client, _ := newMockClient(t, schema.MySQL)
	client.Strict = true

	stmt, err := client.Compile(spell.New(userModel()).Where("name = ?", "Leah"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE `name` = ?", stmt.SQL)
}

func TestCompileWithoutClient(t *testing.T) {
	stmt, err := Compile(spell.New(userModel()).Where("name = ?", "Leah"), schema.Postgres)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "name" = $1`, stmt.SQL)
	assert.Equal(t, []any{"Leah"}, stmt.Values)
}

// Client satisfies spell.Runner, so Batch can page through it.
var _ spell.Runner = (*Client)(nil)
