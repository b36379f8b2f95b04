// ABOUTME: Structured filter, sort, and pagination types accepted by the adapter
// ABOUTME: Filters are flat predicate chains combined left-to-right with AND/OR

package model

// Operator is a comparison applied by a single predicate.
type Operator string

const (
	OpEQ         Operator = "eq"
	OpNE         Operator = "ne"
	OpLT         Operator = "lt"
	OpLTE        Operator = "lte"
	OpGT         Operator = "gt"
	OpGTE        Operator = "gte"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
)

// Connector joins a predicate with the one before it.
type Connector string

const (
	ConnectorAnd Connector = "AND"
	ConnectorOr  Connector = "OR"
)

// Predicate is one `(field, operator, value)` comparison. Operator defaults
// to OpEQ and Connector to ConnectorAnd when left empty. For OpIn and OpNotIn
// the value must be a slice.
type Predicate struct {
	Field     string
	Operator  Operator
	Value     any
	Connector Connector
}

// Where is an ordered predicate chain. Predicates combine strictly left to
// right with no implicit grouping; a nil or empty Where matches every row.
type Where []Predicate

// SortBy orders results by a declared field.
type SortBy struct {
	Field      string
	Descending bool
}
