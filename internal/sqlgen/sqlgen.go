// ABOUTME: Compiles structured filters, sorts, and data maps into parameterized SQL
// ABOUTME: Values are bound as arguments through the coercion layer, never interpolated

package sqlgen

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/conneroisu/better-auth-turso-sub001/internal/coerce"
	"github.com/conneroisu/better-auth-turso-sub001/model"
)

// Compiler errors, detected before any I/O is attempted.
var (
	ErrUnknownField        = errors.New("unknown field")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrEmptyData           = errors.New("no fields to write")
)

// Compiler turns adapter requests into SQL text plus bound arguments for one
// fixed naming and coercion policy. It holds no connection and no state.
type Compiler struct {
	UsePlural    bool
	NumericDates bool
	IntIDs       bool
}

// IDField is the synthesized descriptor for the implicit primary key.
func (c *Compiler) IDField() model.Field {
	if c.IntIDs {
		return model.Field{Name: "id", Type: model.TypeNumber}
	}
	return model.Field{Name: "id", Type: model.TypeString}
}

func (c *Compiler) table(m model.Model) string {
	return quote(model.TableName(m.Name, c.UsePlural))
}

// resolve returns the descriptor for a referenced field name, including the
// implicit "id" field.
func (c *Compiler) resolve(m model.Model, name string) (model.Field, error) {
	if name == "id" {
		return c.IDField(), nil
	}
	if f, ok := m.Field(name); ok {
		return f, nil
	}
	return model.Field{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, name)
}

// Select compiles a filtered, sorted, paginated read. A limit of zero means
// no limit; a projection always re-includes the primary key.
func (c *Compiler) Select(m model.Model, where model.Where, sort []model.SortBy, limit, offset int, project []string) (string, []any, error) {
	cols, err := c.columns(m, project)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(c.table(m))

	args, err := c.writeWhere(&sb, m, where)
	if err != nil {
		return "", nil, err
	}

	if err := c.writeOrderBy(&sb, m, sort); err != nil {
		return "", nil, err
	}

	switch {
	case limit > 0 && offset > 0:
		sb.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))
	case limit > 0:
		sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	case offset > 0:
		// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded.
		sb.WriteString(fmt.Sprintf(" LIMIT -1 OFFSET %d", offset))
	}

	return sb.String(), args, nil
}

// Insert compiles a create. Keys absent from data are omitted from the
// column list so database defaults apply. Fields are emitted in declaration
// order, primary key first.
func (c *Compiler) Insert(m model.Model, data map[string]any) (string, []any, error) {
	var cols []string
	var args []any

	appendField := func(f model.Field, v any) error {
		sv, err := coerce.ToStorage(v, f, c.NumericDates)
		if err != nil {
			return err
		}
		cols = append(cols, quote(f.Name))
		args = append(args, sv)
		return nil
	}

	if v, ok := data["id"]; ok {
		if err := appendField(c.IDField(), v); err != nil {
			return "", nil, err
		}
	}
	for _, f := range m.Fields {
		v, ok := data[f.Name]
		if !ok {
			continue
		}
		if err := appendField(f, v); err != nil {
			return "", nil, err
		}
	}
	if err := c.checkKnownKeys(m, data); err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrEmptyData, m.Name)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		c.table(m), strings.Join(cols, ", "), placeholders)
	return sql, args, nil
}

// Update compiles a partial update of every row matching where.
func (c *Compiler) Update(m model.Model, where model.Where, data map[string]any) (string, []any, error) {
	var sets []string
	var args []any

	for _, f := range m.Fields {
		v, ok := data[f.Name]
		if !ok {
			continue
		}
		sv, err := coerce.ToStorage(v, f, c.NumericDates)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, quote(f.Name)+" = ?")
		args = append(args, sv)
	}
	if err := c.checkKnownKeys(m, data); err != nil {
		return "", nil, err
	}
	if _, ok := data["id"]; ok {
		return "", nil, fmt.Errorf("%w: %s.id is immutable", ErrUnknownField, m.Name)
	}
	if len(sets) == 0 {
		return "", nil, fmt.Errorf("%w: %s", ErrEmptyData, m.Name)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(c.table(m))
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(sets, ", "))

	whereArgs, err := c.writeWhere(&sb, m, where)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), append(args, whereArgs...), nil
}

// Delete compiles removal of every row matching where.
func (c *Compiler) Delete(m model.Model, where model.Where) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(c.table(m))

	args, err := c.writeWhere(&sb, m, where)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

// Count compiles a row count of every row matching where.
func (c *Compiler) Count(m model.Model, where model.Where) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(c.table(m))

	args, err := c.writeWhere(&sb, m, where)
	if err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

// columns builds the select list: all declared fields, or the projection
// plus the primary key.
func (c *Compiler) columns(m model.Model, project []string) ([]string, error) {
	if len(project) == 0 {
		cols := make([]string, 0, len(m.Fields)+1)
		cols = append(cols, quote("id"))
		for _, f := range m.Fields {
			cols = append(cols, quote(f.Name))
		}
		return cols, nil
	}

	cols := []string{quote("id")}
	for _, name := range project {
		if name == "id" {
			continue
		}
		if _, err := c.resolve(m, name); err != nil {
			return nil, err
		}
		cols = append(cols, quote(name))
	}
	return cols, nil
}

// writeWhere appends a WHERE clause for the predicate chain and returns the
// bound arguments. An empty chain appends nothing and matches all rows.
// Predicates join left to right with their declared connector; there is no
// grouping, mirroring a flat chain rather than an expression tree.
func (c *Compiler) writeWhere(sb *strings.Builder, m model.Model, where model.Where) ([]any, error) {
	if len(where) == 0 {
		return nil, nil
	}

	var args []any
	sb.WriteString(" WHERE ")
	for i, p := range where {
		if i > 0 {
			if p.Connector == model.ConnectorOr {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}

		f, err := c.resolve(m, p.Field)
		if err != nil {
			return nil, err
		}

		frag, fragArgs, err := c.predicate(f, p)
		if err != nil {
			return nil, err
		}
		sb.WriteString(frag)
		args = append(args, fragArgs...)
	}
	return args, nil
}

func (c *Compiler) predicate(f model.Field, p model.Predicate) (string, []any, error) {
	col := quote(p.Field)
	op := p.Operator
	if op == "" {
		op = model.OpEQ
	}

	switch op {
	case model.OpEQ, model.OpNE, model.OpLT, model.OpLTE, model.OpGT, model.OpGTE:
		sv, err := coerce.ToStorage(p.Value, f, c.NumericDates)
		if err != nil {
			return "", nil, err
		}
		return col + " " + comparison(op) + " ?", []any{sv}, nil

	case model.OpIn, model.OpNotIn:
		values, err := valueSlice(p.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s on %s", err, op, p.Field)
		}
		if len(values) == 0 {
			// IN () is not valid SQL; an empty set matches nothing
			// (or everything, when negated).
			if op == model.OpNotIn {
				return "1 = 1", nil, nil
			}
			return "1 = 0", nil, nil
		}
		args := make([]any, 0, len(values))
		for _, v := range values {
			sv, err := coerce.ToStorage(v, f, c.NumericDates)
			if err != nil {
				return "", nil, err
			}
			args = append(args, sv)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
		kw := "IN"
		if op == model.OpNotIn {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col, kw, placeholders), args, nil

	case model.OpContains, model.OpStartsWith, model.OpEndsWith:
		sv, err := coerce.ToStorage(p.Value, f, c.NumericDates)
		if err != nil {
			return "", nil, err
		}
		text, ok := sv.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s requires a string value", ErrUnsupportedOperator, op)
		}
		switch op {
		case model.OpContains:
			text = "%" + text + "%"
		case model.OpStartsWith:
			text = text + "%"
		case model.OpEndsWith:
			text = "%" + text
		}
		return col + " LIKE ?", []any{text}, nil
	}

	return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedOperator, op)
}

func (c *Compiler) writeOrderBy(sb *strings.Builder, m model.Model, sort []model.SortBy) error {
	if len(sort) == 0 {
		return nil
	}

	clauses := make([]string, 0, len(sort))
	for _, s := range sort {
		if _, err := c.resolve(m, s.Field); err != nil {
			return err
		}
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		clauses = append(clauses, quote(s.Field)+" "+dir)
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(clauses, ", "))
	return nil
}

// checkKnownKeys rejects data keys that are not declared fields, before any
// statement reaches the database.
func (c *Compiler) checkKnownKeys(m model.Model, data map[string]any) error {
	for k := range data {
		if k == "id" {
			continue
		}
		if _, ok := m.Field(k); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, m.Name, k)
		}
	}
	return nil
}

func comparison(op model.Operator) string {
	switch op {
	case model.OpEQ:
		return "="
	case model.OpNE:
		return "!="
	case model.OpLT:
		return "<"
	case model.OpLTE:
		return "<="
	case model.OpGT:
		return ">"
	case model.OpGTE:
		return ">="
	}
	return "="
}

// valueSlice unpacks an in-set value. []any is the common case from callers;
// reflection covers typed slices like []string.
func valueSlice(v any) ([]any, error) {
	if vs, ok := v.([]any); ok {
		return vs, nil
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: expected a slice value", ErrUnsupportedOperator)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// quote produces a double-quoted SQLite identifier, doubling any embedded
// quote characters.
func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
