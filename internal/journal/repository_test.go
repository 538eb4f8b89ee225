package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/kairos-persistor/internal/infrastructure/database"
	_ "github.com/nerrad567/kairos-persistor/migrations" // Registers the embedded schema
)

// testRepo opens a temporary database with the embedded migrations applied.
func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	return NewSQLiteRepository(db.DB)
}

func TestRepository_CreateAndList(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	entry := &Entry{
		RequestID:  "req-1",
		Action:     "add_data_points",
		Status:     "error",
		Kind:       "validation_failure",
		Message:    "data points object was incorrectly formatted",
		DurationMS: 3,
	}

	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if entry.ID == "" {
		t.Fatal("Create() should generate an ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Fatal("Create() should set CreatedAt")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("List() total = %d, entries = %d, want 1/1", result.Total, len(result.Entries))
	}

	got := result.Entries[0]
	if got.ID != entry.ID || got.RequestID != "req-1" || got.Action != "add_data_points" {
		t.Errorf("entry = %+v", got)
	}
	if got.Kind != "validation_failure" || got.Message != entry.Message {
		t.Errorf("Kind/Message = %q/%q", got.Kind, got.Message)
	}
	if got.DurationMS != 3 {
		t.Errorf("DurationMS = %d, want 3", got.DurationMS)
	}
	if result.Limit != 50 || result.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d, want 50/0", result.Limit, result.Offset)
	}
}

func TestRepository_CreateSuccessOmitsKind(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Entry{RequestID: "r", Action: "version", Status: "ok"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Entries[0].Kind != "" || result.Entries[0].Message != "" {
		t.Errorf("Kind/Message = %q/%q, want empty", result.Entries[0].Kind, result.Entries[0].Message)
	}
}

func TestRepository_ListNewestFirst(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for i := range 3 {
		e := &Entry{
			RequestID: fmt.Sprintf("req-%d", i),
			Action:    "version",
			Status:    "ok",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	want := []string{"req-2", "req-1", "req-0"}
	for i, e := range result.Entries {
		if e.RequestID != want[i] {
			t.Errorf("Entries[%d].RequestID = %q, want %q", i, e.RequestID, want[i])
		}
	}
}

func TestRepository_ListFilters(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seed := []Entry{
		{RequestID: "a", Action: "add_data_points", Status: "ok"},
		{RequestID: "b", Action: "add_data_points", Status: "error", Kind: "backend_error"},
		{RequestID: "c", Action: "query_metrics", Status: "ok"},
		{RequestID: "d", Action: "version", Status: "error", Kind: "backend_unreachable"},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
	}{
		{"no filter", Filter{}, 4},
		{"by action", Filter{Action: "add_data_points"}, 2},
		{"by status", Filter{Status: "error"}, 2},
		{"by action and status", Filter{Action: "add_data_points", Status: "ok"}, 1},
		{"no match", Filter{Action: "delete_metric"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal || len(result.Entries) != tt.wantTotal {
				t.Errorf("List() total = %d, entries = %d, want %d", result.Total, len(result.Entries), tt.wantTotal)
			}
		})
	}
}

func TestRepository_ListPagination(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for i := range 5 {
		if err := repo.Create(ctx, &Entry{RequestID: fmt.Sprintf("r%d", i), Action: "version", Status: "ok"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	result, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 5 || len(result.Entries) != 1 {
		t.Errorf("List() total = %d, entries = %d, want 5/1", result.Total, len(result.Entries))
	}

	result, err = repo.List(ctx, Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Limit != 200 || result.Offset != 0 {
		t.Errorf("clamped Limit/Offset = %d/%d, want 200/0", result.Limit, result.Offset)
	}
}

func TestRepository_Prune(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &Entry{RequestID: "old", Action: "version", Status: "ok", CreatedAt: now.Add(-48 * time.Hour)}
	fresh := &Entry{RequestID: "fresh", Action: "version", Status: "ok", CreatedAt: now}
	for _, e := range []*Entry{old, fresh} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d, want 1", n)
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 || result.Entries[0].RequestID != "fresh" {
		t.Errorf("remaining entries = %+v, want only fresh", result.Entries)
	}
}
