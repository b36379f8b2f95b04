// ABOUTME: Bidirectional mapping between logical field values and SQLite storage values
// ABOUTME: Pure, stateless functions driven entirely by the field's declared type

package coerce

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/conneroisu/better-auth-turso-sub001/model"
)

// Error reports a value that could not be converted to or from its storage
// representation. It wraps the underlying parse error when one exists.
type Error struct {
	Field string
	Type  model.Type
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("coercing field %q (%s): %v", e.Field, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ToStorage converts a logical value to the representation bound as a SQL
// argument. Nil values are returned unchanged; callers omit absent fields
// from column lists before ever reaching this function.
//
// When numericDates is set, dates are stored as Unix epoch seconds instead
// of RFC 3339 text.
func ToStorage(v any, f model.Field, numericDates bool) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch f.Type {
	case model.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, &Error{Field: f.Name, Type: f.Type, Err: fmt.Errorf("expected bool, got %T", v)}
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil

	case model.TypeDate:
		t, ok := v.(time.Time)
		if !ok {
			return nil, &Error{Field: f.Name, Type: f.Type, Err: fmt.Errorf("expected time.Time, got %T", v)}
		}
		if numericDates {
			return t.Unix(), nil
		}
		return t.UTC().Format(time.RFC3339Nano), nil

	case model.TypeJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, &Error{Field: f.Name, Type: f.Type, Err: err}
		}
		return string(data), nil

	case model.TypeNumber:
		n, err := normalizeNumber(v)
		if err != nil {
			return nil, &Error{Field: f.Name, Type: f.Type, Err: err}
		}
		return n, nil

	case model.TypeString, model.TypeReference:
		switch s := v.(type) {
		case string:
			return s, nil
		case int64, int, float64:
			// Numeric-id reference values pass through untouched.
			return v, nil
		default:
			return nil, &Error{Field: f.Name, Type: f.Type, Err: fmt.Errorf("expected string, got %T", s)}
		}
	}

	return nil, &Error{Field: f.Name, Type: f.Type, Err: fmt.Errorf("unsupported logical type")}
}

// FromStorage converts a scanned database value back to its logical form.
// The mapping is the exact inverse of ToStorage: for every supported value v,
// FromStorage(ToStorage(v)) yields v again.
func FromStorage(v any, f model.Field, numericDates bool) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch f.Type {
	case model.TypeBoolean:
		n, err := asInt64(v)
		if err != nil {
			return nil, &Error{Field: f.Name, Type: f.Type, Err: err}
		}
		return n != 0, nil

	case model.TypeDate:
		switch d := v.(type) {
		case int64:
			return time.Unix(d, 0).UTC(), nil
		case float64:
			return time.Unix(int64(d), 0).UTC(), nil
		case string:
			t, err := time.Parse(time.RFC3339, d)
			if err != nil {
				return nil, &Error{Field: f.Name, Type: f.Type, Err: err}
			}
			return t, nil
		case []byte:
			t, err := time.Parse(time.RFC3339, string(d))
			if err != nil {
				return nil, &Error{Field: f.Name, Type: f.Type, Err: err}
			}
			return t, nil
		default:
			return nil, &Error{Field: f.Name, Type: f.Type, Err: fmt.Errorf("unexpected storage type %T", v)}
		}

	case model.TypeJSON:
		text, err := asString(v)
		if err != nil {
			return nil, &Error{Field: f.Name, Type: f.Type, Err: err}
		}
		var out any
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return nil, &Error{Field: f.Name, Type: f.Type, Err: err}
		}
		return out, nil

	case model.TypeNumber:
		n, err := normalizeNumber(v)
		if err != nil {
			return nil, &Error{Field: f.Name, Type: f.Type, Err: err}
		}
		return n, nil

	case model.TypeString, model.TypeReference:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		case int64:
			return s, nil
		default:
			return nil, &Error{Field: f.Name, Type: f.Type, Err: fmt.Errorf("unexpected storage type %T", v)}
		}
	}

	return nil, &Error{Field: f.Name, Type: f.Type, Err: fmt.Errorf("unsupported logical type")}
}

// normalizeNumber folds Go's integer widths into int64 and keeps float64 as
// is, so that a value survives the write/read round trip unchanged.
func normalizeNumber(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return nil, fmt.Errorf("expected numeric value, got %T", v)
	}
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("expected text, got %T", v)
	}
}
