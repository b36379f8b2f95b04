// ABOUTME: Integration tests for the CRUD facade against a local in-memory store
// ABOUTME: Covers create/find round trips, bulk writes, pluralization, and cascades

package turso

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/conneroisu/better-auth-turso-sub001/internal/sqlgen"
	"github.com/conneroisu/better-auth-turso-sub001/model"
)

func TestCreateAndFindOne(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	created, err := a.Create(ctx, "user", map[string]any{
		"email": "a@x.com",
		"age":   30,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	id, ok := created["id"].(string)
	if !ok || id == "" {
		t.Fatalf("expected non-empty string id, got %#v", created["id"])
	}

	got, err := a.FindOne(ctx, "user", model.Where{
		{Field: "email", Operator: model.OpEQ, Value: "a@x.com"},
	})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got == nil {
		t.Fatal("FindOne returned no record")
	}
	if got["age"] != int64(30) {
		t.Errorf("age = %#v, want int64(30)", got["age"])
	}
	if got["id"] != id {
		t.Errorf("id = %#v, want %q", got["id"], id)
	}
}

func TestCreateAppliesColumnDefaults(t *testing.T) {
	a := newTestAdapter(t)

	created, err := a.Create(context.Background(), "user", map[string]any{
		"email": "d@x.com",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// "verified" was omitted, so the declared default lands in the store
	// and comes back coerced to a boolean.
	if created["verified"] != false {
		t.Errorf("verified = %#v, want false", created["verified"])
	}
}

func TestCreateHonorsCallerSuppliedID(t *testing.T) {
	a := newTestAdapter(t)

	created, err := a.Create(context.Background(), "user", map[string]any{
		"id":    "user-42",
		"email": "fixed@x.com",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created["id"] != "user-42" {
		t.Errorf("id = %#v, want %q", created["id"], "user-42")
	}
}

func TestCreateNilIDAssignsOne(t *testing.T) {
	a := newTestAdapter(t)

	created, err := a.Create(context.Background(), "user", map[string]any{
		"id":    nil,
		"email": "nil-id@x.com",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	id, ok := created["id"].(string)
	if !ok || id == "" {
		t.Fatalf("expected generated string id, got %#v", created["id"])
	}
}

func TestCreateNilIDWithIntIDs(t *testing.T) {
	a := newTestAdapter(t, func(o *Options) { o.IntIDs = true })

	created, err := a.Create(context.Background(), "user", map[string]any{
		"id":    nil,
		"email": "nil-int-id@x.com",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	id, ok := created["id"].(int64)
	if !ok || id < 1 {
		t.Fatalf("expected positive integer id, got %#v", created["id"])
	}
}

func TestCreateGeneratesDistinctIDs(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		created, err := a.Create(ctx, "user", map[string]any{
			"email": fmt.Sprintf("u%d@x.com", i),
		})
		if err != nil {
			t.Fatalf("Create #%d failed: %v", i, err)
		}
		id := created["id"].(string)
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestFindOneMissIsNotAnError(t *testing.T) {
	a := newTestAdapter(t)

	got, err := a.FindOne(context.Background(), "user", model.Where{
		{Field: "email", Value: "nobody@x.com"},
	})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil record, got %#v", got)
	}
}

func TestFindManySortLimitOffset(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for i, age := range []int{40, 20, 30, 10} {
		_, err := a.Create(ctx, "user", map[string]any{
			"email": fmt.Sprintf("s%d@x.com", i),
			"age":   age,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := a.FindMany(ctx, "user", Query{
		Sort:   []model.SortBy{{Field: "age"}},
		Limit:  2,
		Offset: 1,
	})
	if err != nil {
		t.Fatalf("FindMany failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0]["age"] != int64(20) || got[1]["age"] != int64(30) {
		t.Errorf("unexpected page: %v, %v", got[0]["age"], got[1]["age"])
	}
}

func TestFindManyProjection(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if _, err := a.Create(ctx, "user", map[string]any{"email": "p@x.com", "age": 9}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := a.FindMany(ctx, "user", Query{Select: []string{"email"}})
	if err != nil {
		t.Fatalf("FindMany failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	record := got[0]
	if _, ok := record["email"]; !ok {
		t.Error("projected field missing")
	}
	if _, ok := record["id"]; !ok {
		t.Error("projection must keep the primary key")
	}
	if _, ok := record["age"]; ok {
		t.Error("unprojected field present")
	}
}

func TestFindManyEmptyResult(t *testing.T) {
	a := newTestAdapter(t)

	got, err := a.FindMany(context.Background(), "user", Query{})
	if err != nil {
		t.Fatalf("FindMany failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestUpdateAffectsAtMostOneRow(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.Create(ctx, "user", map[string]any{
			"email": fmt.Sprintf("m%d@x.com", i),
			"age":   50,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	updated, err := a.Update(ctx, "user", model.Where{
		{Field: "age", Value: 50},
	}, map[string]any{"age": 51})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated == nil {
		t.Fatal("Update returned no record")
	}
	if updated["age"] != int64(51) {
		t.Errorf("age = %#v, want int64(51)", updated["age"])
	}

	remaining, err := a.Count(ctx, "user", model.Where{{Field: "age", Value: 50}})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if remaining != 2 {
		t.Errorf("remaining = %d, want 2", remaining)
	}
}

func TestUpdateMissReturnsNil(t *testing.T) {
	a := newTestAdapter(t)

	updated, err := a.Update(context.Background(), "user", model.Where{
		{Field: "email", Value: "nobody@x.com"},
	}, map[string]any{"age": 1})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated != nil {
		t.Errorf("expected nil record, got %#v", updated)
	}
}

func TestUpdateMany(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.Create(ctx, "user", map[string]any{
			"email":    fmt.Sprintf("b%d@x.com", i),
			"age":      30,
			"verified": false,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	filter := model.Where{{Field: "verified", Value: false}}
	affected, err := a.UpdateMany(ctx, "user", filter, map[string]any{"age": 31})
	if err != nil {
		t.Fatalf("UpdateMany failed: %v", err)
	}
	if affected != 3 {
		t.Fatalf("affected = %d, want 3", affected)
	}

	rows, err := a.FindMany(ctx, "user", Query{Where: filter})
	if err != nil {
		t.Fatalf("FindMany failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}
	for _, row := range rows {
		if row["age"] != int64(31) {
			t.Errorf("age = %#v, want int64(31)", row["age"])
		}
	}
}

func TestDeleteAffectsAtMostOneRow(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := a.Create(ctx, "user", map[string]any{
			"email": fmt.Sprintf("del%d@x.com", i),
			"age":   70,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	if err := a.Delete(ctx, "user", model.Where{{Field: "age", Value: 70}}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	count, err := a.Count(ctx, "user", model.Where{{Field: "age", Value: 70}})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestDeleteManyZeroMatches(t *testing.T) {
	a := newTestAdapter(t)

	affected, err := a.DeleteMany(context.Background(), "user", model.Where{
		{Field: "email", Value: "nobody@x.com"},
	})
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if affected != 0 {
		t.Errorf("affected = %d, want 0", affected)
	}
}

func TestCount(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := a.Create(ctx, "user", map[string]any{
			"email": fmt.Sprintf("c%d@x.com", i),
			"age":   i,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	total, err := a.Count(ctx, "user", nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}

	some, err := a.Count(ctx, "user", model.Where{{Field: "age", Operator: model.OpGTE, Value: 2}})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if some != 2 {
		t.Errorf("filtered = %d, want 2", some)
	}
}

func TestCountLogsUnknownRowsOnError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a := newTestAdapter(t, func(o *Options) {
		o.Logger = logger
		o.DebugLogs = DebugLogs{Ops: map[string]bool{"count": true}}
	})
	ctx := context.Background()

	// Ensure the table exists while the connection is still healthy.
	if _, err := a.Count(ctx, "user", nil); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := a.Count(ctx, "user", nil); err == nil {
		t.Fatal("expected error from closed connection")
	}

	// A failed count has no meaningful result, so the row count is unknown.
	if !strings.Contains(buf.String(), "rows=-1") {
		t.Errorf("expected unknown row count in log output:\n%s", buf.String())
	}
}

func TestJSONAndDateRoundTripThroughStore(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	meta := map[string]any{"theme": "dark", "retries": 2.0}

	_, err := a.Create(ctx, "user", map[string]any{
		"email":      "j@x.com",
		"meta":       meta,
		"created_at": ts,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := a.FindOne(ctx, "user", model.Where{{Field: "email", Value: "j@x.com"}})
	if err != nil {
		t.Fatalf("FindOne failed: %v", err)
	}
	if got["created_at"] != ts {
		t.Errorf("created_at = %#v, want %v", got["created_at"], ts)
	}
	gotMeta, ok := got["meta"].(map[string]any)
	if !ok {
		t.Fatalf("meta = %#v, want map", got["meta"])
	}
	if gotMeta["theme"] != "dark" || gotMeta["retries"] != 2.0 {
		t.Errorf("meta = %#v", gotMeta)
	}
}

func TestUsePluralTableNaming(t *testing.T) {
	a := newTestAdapter(t, func(o *Options) { o.UsePlural = true })
	ctx := context.Background()

	// Logical model names are unchanged; only the physical table moves.
	if _, err := a.Create(ctx, "user", map[string]any{"email": "pl@x.com"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var name string
	err := a.conn.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='users'`).Scan(&name)
	if err != nil {
		t.Fatalf("expected pluralized table: %v", err)
	}

	got, err := a.FindOne(ctx, "user", model.Where{{Field: "email", Value: "pl@x.com"}})
	if err != nil || got == nil {
		t.Fatalf("FindOne against logical name failed: %v, %v", got, err)
	}
}

func TestIntIDsAssignedByDatabase(t *testing.T) {
	a := newTestAdapter(t, func(o *Options) { o.IntIDs = true })
	ctx := context.Background()

	first, err := a.Create(ctx, "user", map[string]any{"email": "n1@x.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	second, err := a.Create(ctx, "user", map[string]any{"email": "n2@x.com"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	id1, ok := first["id"].(int64)
	if !ok || id1 < 1 {
		t.Fatalf("expected positive integer id, got %#v", first["id"])
	}
	id2 := second["id"].(int64)
	if id2 <= id1 {
		t.Errorf("ids not increasing: %d then %d", id1, id2)
	}

	got, err := a.FindOne(ctx, "user", model.Where{{Field: "id", Value: id1}})
	if err != nil || got == nil {
		t.Fatalf("FindOne by numeric id failed: %v, %v", got, err)
	}
}

func TestForeignKeyCascadeDelete(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	user, err := a.Create(ctx, "user", map[string]any{"email": "fk@x.com"})
	if err != nil {
		t.Fatalf("Create user failed: %v", err)
	}

	_, err = a.Create(ctx, "session", map[string]any{
		"token":      "tok-1",
		"user_id":    user["id"],
		"expires_at": time.Now().UTC().Truncate(time.Second).Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Create session failed: %v", err)
	}

	if _, err := a.DeleteMany(ctx, "user", model.Where{{Field: "id", Value: user["id"]}}); err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}

	sessions, err := a.Count(ctx, "session", nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if sessions != 0 {
		t.Errorf("sessions = %d, want 0 after cascade", sessions)
	}
}

func TestUnknownModelRejected(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.Create(context.Background(), "ghost", map[string]any{"x": 1})
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestUnknownFilterFieldRejectedBeforeIO(t *testing.T) {
	a := newTestAdapter(t)

	_, err := a.FindMany(context.Background(), "user", Query{
		Where: model.Where{{Field: "ghost", Value: 1}},
	})
	if !errors.Is(err, sqlgen.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestConcurrentFirstUse(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			_, err := a.Create(ctx, "user", map[string]any{
				"email": fmt.Sprintf("cc%d@x.com", i),
			})
			errs <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent Create failed: %v", err)
		}
	}

	count, err := a.Count(ctx, "user", nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 8 {
		t.Errorf("count = %d, want 8", count)
	}
}
