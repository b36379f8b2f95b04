// ABOUTME: Model and field descriptors supplied by the host auth framework
// ABOUTME: Defines logical field types and the table-naming policy

package model

// Type is the logical type of a model field. All storage coercion decisions
// are driven off this tag, never inferred from a value's runtime shape.
type Type string

const (
	TypeString    Type = "string"
	TypeNumber    Type = "number"
	TypeBoolean   Type = "boolean"
	TypeDate      Type = "date"
	TypeJSON      Type = "json"
	TypeReference Type = "reference"
)

// Valid reports whether t is one of the supported logical types.
func (t Type) Valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeDate, TypeJSON, TypeReference:
		return true
	}
	return false
}

// Field describes a single named, typed attribute of a model.
type Field struct {
	Name     string
	Type     Type
	Required bool
	Unique   bool

	// Default, when non-nil, is emitted as a column default so that values
	// omitted on create fall back to it inside the database.
	Default any

	// References names the target model for TypeReference fields. The
	// generated column carries a foreign key to the target's primary key
	// with ON DELETE CASCADE.
	References string
}

// Model is a named entity definition. Fields keep their declaration order;
// the primary key column "id" is implicit and must not appear in Fields.
type Model struct {
	Name   string
	Fields []Field
}

// Field returns the descriptor for the named field, or false when the model
// does not declare it. The implicit "id" field is not part of Fields and is
// resolved by callers separately.
func (m Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TableName maps a model name to its physical table name. It is a pure
// function of the name and the pluralization policy; the naive "+s" suffix
// matches what the host framework's schema generator emits.
func TableName(name string, usePlural bool) string {
	if usePlural {
		return name + "s"
	}
	return name
}
