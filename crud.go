// ABOUTME: The CRUD facade consumed by the host framework
// ABOUTME: Every call runs ensure-schema, compile, coerce-bind, execute, coerce-read, log

package turso

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conneroisu/better-auth-turso-sub001/internal/coerce"
	"github.com/conneroisu/better-auth-turso-sub001/internal/debuglog"
	"github.com/conneroisu/better-auth-turso-sub001/model"
)

// Query bundles the optional read parameters of FindMany. A zero Query
// returns every row in declaration-independent storage order.
type Query struct {
	Where  model.Where
	Sort   []model.SortBy
	Limit  int
	Offset int
	Select []string
}

// Create inserts a new record and returns it as stored, including its
// primary key. Unless numeric ids are configured, a missing id is generated
// client-side before the insert; with numeric ids the database assigns it
// and the assigned value is read back.
func (a *Adapter) Create(ctx context.Context, modelName string, data map[string]any) (map[string]any, error) {
	m, err := a.modelFor(modelName)
	if err != nil {
		return nil, err
	}
	if err := a.ensure(ctx, m); err != nil {
		return nil, err
	}

	record := make(map[string]any, len(data)+1)
	for k, v := range data {
		record[k] = v
	}
	idVal, hasID := record["id"]
	if hasID && idVal == nil {
		// A nil id means "assign one", same as leaving it out.
		delete(record, "id")
		hasID = false
	}
	if !hasID && !a.intIDs {
		idVal = a.genID()
		record["id"] = idVal
	}

	query, args, err := a.compiler.Insert(m, record)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := a.conn.ExecContext(ctx, query, args...)
	a.debug.Log(debuglog.OpCreate, query, args, time.Since(start), affectedOrUnknown(res, err), err)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", modelName, err)
	}

	if idVal == nil {
		assigned, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading assigned id for %s: %w", modelName, err)
		}
		idVal = assigned
	}

	created, err := a.findOne(ctx, m, model.Where{{Field: "id", Value: idVal}}, nil, nil, debuglog.OpCreate)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("creating %s: inserted row not found on read-back", modelName)
	}
	return created, nil
}

// FindOne returns the first record matching the filter, or nil when nothing
// matches. Absence is not an error.
func (a *Adapter) FindOne(ctx context.Context, modelName string, where model.Where, opts ...func(*Query)) (map[string]any, error) {
	m, err := a.modelFor(modelName)
	if err != nil {
		return nil, err
	}
	if err := a.ensure(ctx, m); err != nil {
		return nil, err
	}

	var q Query
	for _, opt := range opts {
		opt(&q)
	}
	return a.findOne(ctx, m, where, q.Sort, q.Select, debuglog.OpFindOne)
}

// WithSort orders a FindOne lookup before its implicit limit of one applies.
func WithSort(sort ...model.SortBy) func(*Query) {
	return func(q *Query) { q.Sort = sort }
}

// WithProjection restricts the returned columns to the given fields plus the
// primary key.
func WithProjection(fields ...string) func(*Query) {
	return func(q *Query) { q.Select = fields }
}

// FindMany returns every record matching the query, in sort order when one
// is given. The result is possibly empty, never nil on success.
func (a *Adapter) FindMany(ctx context.Context, modelName string, q Query) ([]map[string]any, error) {
	m, err := a.modelFor(modelName)
	if err != nil {
		return nil, err
	}
	if err := a.ensure(ctx, m); err != nil {
		return nil, err
	}

	query, args, err := a.compiler.Select(m, q.Where, q.Sort, q.Limit, q.Offset, q.Select)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		a.debug.Log(debuglog.OpFindMany, query, args, time.Since(start), -1, err)
		return nil, fmt.Errorf("finding %s: %w", modelName, err)
	}
	defer rows.Close()

	records, err := a.scanRecords(rows, m)
	a.debug.Log(debuglog.OpFindMany, query, args, time.Since(start), int64(len(records)), err)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Update modifies at most one record matching the filter and returns it, or
// nil when nothing matches. Which row is "first" among ties follows the
// store's default ordering (insertion order in practice) and is
// implementation-defined; callers must not rely on it.
func (a *Adapter) Update(ctx context.Context, modelName string, where model.Where, data map[string]any) (map[string]any, error) {
	m, err := a.modelFor(modelName)
	if err != nil {
		return nil, err
	}
	if err := a.ensure(ctx, m); err != nil {
		return nil, err
	}

	id, err := a.firstID(ctx, m, where, debuglog.OpUpdate)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, nil
	}

	byID := model.Where{{Field: "id", Value: id}}
	query, args, err := a.compiler.Update(m, byID, data)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := a.conn.ExecContext(ctx, query, args...)
	a.debug.Log(debuglog.OpUpdate, query, args, time.Since(start), affectedOrUnknown(res, err), err)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", modelName, err)
	}

	return a.findOne(ctx, m, byID, nil, nil, debuglog.OpUpdate)
}

// UpdateMany modifies every record matching the filter and returns the
// affected count.
func (a *Adapter) UpdateMany(ctx context.Context, modelName string, where model.Where, data map[string]any) (int64, error) {
	m, err := a.modelFor(modelName)
	if err != nil {
		return 0, err
	}
	if err := a.ensure(ctx, m); err != nil {
		return 0, err
	}

	query, args, err := a.compiler.Update(m, where, data)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	res, err := a.conn.ExecContext(ctx, query, args...)
	a.debug.Log(debuglog.OpUpdateMany, query, args, time.Since(start), affectedOrUnknown(res, err), err)
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", modelName, err)
	}
	return res.RowsAffected()
}

// Delete removes at most one record matching the filter. A filter matching
// nothing is a no-op, not an error.
func (a *Adapter) Delete(ctx context.Context, modelName string, where model.Where) error {
	m, err := a.modelFor(modelName)
	if err != nil {
		return err
	}
	if err := a.ensure(ctx, m); err != nil {
		return err
	}

	id, err := a.firstID(ctx, m, where, debuglog.OpDelete)
	if err != nil {
		return err
	}
	if id == nil {
		return nil
	}

	query, args, err := a.compiler.Delete(m, model.Where{{Field: "id", Value: id}})
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := a.conn.ExecContext(ctx, query, args...)
	a.debug.Log(debuglog.OpDelete, query, args, time.Since(start), affectedOrUnknown(res, err), err)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", modelName, err)
	}
	return nil
}

// DeleteMany removes every record matching the filter and returns the
// affected count. Zero matches yield zero, not an error.
func (a *Adapter) DeleteMany(ctx context.Context, modelName string, where model.Where) (int64, error) {
	m, err := a.modelFor(modelName)
	if err != nil {
		return 0, err
	}
	if err := a.ensure(ctx, m); err != nil {
		return 0, err
	}

	query, args, err := a.compiler.Delete(m, where)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	res, err := a.conn.ExecContext(ctx, query, args...)
	a.debug.Log(debuglog.OpDeleteMany, query, args, time.Since(start), affectedOrUnknown(res, err), err)
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", modelName, err)
	}
	return res.RowsAffected()
}

// Count returns the number of records matching the filter.
func (a *Adapter) Count(ctx context.Context, modelName string, where model.Where) (int64, error) {
	m, err := a.modelFor(modelName)
	if err != nil {
		return 0, err
	}
	if err := a.ensure(ctx, m); err != nil {
		return 0, err
	}

	query, args, err := a.compiler.Count(m, where)
	if err != nil {
		return 0, err
	}

	var count int64
	start := time.Now()
	err = a.conn.QueryRowContext(ctx, query, args...).Scan(&count)
	logged := count
	if err != nil {
		logged = -1
	}
	a.debug.Log(debuglog.OpCount, query, args, time.Since(start), logged, err)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", modelName, err)
	}
	return count, nil
}

// findOne compiles a limit-one select and scans the single result. A miss
// returns (nil, nil).
func (a *Adapter) findOne(ctx context.Context, m model.Model, where model.Where, sort []model.SortBy, project []string, op string) (map[string]any, error) {
	query, args, err := a.compiler.Select(m, where, sort, 1, 0, project)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := a.conn.QueryContext(ctx, query, args...)
	if err != nil {
		a.debug.Log(op, query, args, time.Since(start), -1, err)
		return nil, fmt.Errorf("finding %s: %w", m.Name, err)
	}
	defer rows.Close()

	records, err := a.scanRecords(rows, m)
	a.debug.Log(op, query, args, time.Since(start), int64(len(records)), err)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// firstID resolves the primary key of the first row matching where, or nil
// when nothing matches. Update and Delete use it to pin their "at most one
// row" guarantee to a concrete key.
func (a *Adapter) firstID(ctx context.Context, m model.Model, where model.Where, op string) (any, error) {
	record, err := a.findOne(ctx, m, where, nil, []string{"id"}, op)
	if err != nil || record == nil {
		return nil, err
	}
	return record["id"], nil
}

// scanRecords reads every row into field maps, converting storage values
// back to their logical types column by column.
func (a *Adapter) scanRecords(rows *sql.Rows, m model.Model) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns for %s: %w", m.Name, err)
	}

	fields := make([]model.Field, len(cols))
	for i, col := range cols {
		if col == "id" {
			fields[i] = a.compiler.IDField()
			continue
		}
		f, ok := m.Field(col)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownModel, m.Name, col)
		}
		fields[i] = f
	}

	records := []map[string]any{}
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", m.Name, err)
		}

		record := make(map[string]any, len(cols))
		for i, col := range cols {
			v, err := coerce.FromStorage(raw[i], fields[i], a.compiler.NumericDates)
			if err != nil {
				return nil, err
			}
			record[col] = v
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", m.Name, err)
	}
	return records, nil
}

// affectedOrUnknown extracts the affected-row count for logging without
// letting a driver quirk disturb the call itself.
func affectedOrUnknown(res sql.Result, execErr error) int64 {
	if execErr != nil || res == nil {
		return -1
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}
