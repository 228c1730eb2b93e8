package schema

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"

	"github.com/grimoire-orm/grimoire/engine/ast"
)

// Model describes a mapped table to the query core: naming, the
// attribute-to-column map, and the declared associations. It is read-only
// to the core; ownership stays with the entity layer.
type Model struct {
	Name             string // entity name, e.g. "User"
	TableName        string // defaults to the pluralized snake_case Name
	AliasName        string // join alias, defaults to TableName
	PrimaryKey       string // attribute name, e.g. "id"
	Columns          map[string]string
	SoftDeleteColumn string // attribute name, empty when hard-deleting
	ShardingKey      string // attribute name, empty when unsharded
	Associations     map[string]*Association
}

// Association declares a relation from one model to another.
type Association struct {
	Name        string
	TargetModel *Model
	ForeignKey  string // attribute on the owning side
	BelongsTo   bool
	HasMany     bool
	Through     string     // intermediate association name
	Where       []ast.Node // extra ON predicates, qualified to the target alias
	Includes    []string   // nested relations mounted along with this one
}

// Table returns the physical table name, deriving it from the entity name
// when unset, the same way entity names pluralize elsewhere in the engine.
func (m *Model) Table() string {
	if m.TableName != "" {
		return m.TableName
	}
	return inflection.Plural(Snake(m.Name))
}

// Alias returns the default qualifier for the model in joined queries.
func (m *Model) Alias() string {
	if m.AliasName != "" {
		return m.AliasName
	}
	return m.Table()
}

// ColumnFor resolves an attribute name to its column.
func (m *Model) ColumnFor(attr string) (string, bool) {
	col, ok := m.Columns[attr]
	return col, ok
}

// Association looks up a declared relation, falling back to the
// singularized form of the name.
func (m *Model) Association(name string) *Association {
	if assoc, ok := m.Associations[name]; ok {
		return assoc
	}
	if assoc, ok := m.Associations[inflection.Singular(name)]; ok {
		return assoc
	}
	return nil
}

// Snake converts a camelCase attribute or entity name to snake_case.
func Snake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
