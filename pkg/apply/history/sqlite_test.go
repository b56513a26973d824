package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensase/upo/pkg/apply"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(&Config{
		Path:        filepath.Join(t.TempDir(), "history.db"),
		WALMode:     true,
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(policy string, success bool) *apply.Report {
	report := apply.NewReport(policy, false)
	status := apply.StatusApplied
	if !success {
		status = apply.StatusFailed
	}
	report.Results = []apply.TargetResult{
		{Target: "opnsense", Status: status, Applied: 3},
	}
	report.FinishedAt = time.Now().UTC()
	return report
}

func TestStore_SaveAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	want := testReport("branch-baseline", true)
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Get(ctx, want.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != want.ID || got.PolicyName != "branch-baseline" {
		t.Errorf("got %+v", got)
	}
	if len(got.Results) != 1 || got.Results[0].Applied != 3 {
		t.Errorf("results not round-tripped: %+v", got.Results)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "no-such-run")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	older := testReport("branch-baseline", true)
	older.StartedAt = time.Now().UTC().Add(-time.Hour)
	newer := testReport("branch-baseline", false)

	for _, r := range []*apply.Report{older, newer} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	reports, err := s.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].ID != newer.ID {
		t.Errorf("expected newest report first, got %s", reports[0].ID)
	}
}

func TestStore_ListFiltersByPolicy(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testReport("branch-baseline", true)); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, testReport("campus-policy", true)); err != nil {
		t.Fatal(err)
	}

	reports, err := s.List(ctx, ListOptions{PolicyName: "campus-policy"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(reports) != 1 || reports[0].PolicyName != "campus-policy" {
		t.Errorf("filter failed: %+v", reports)
	}
}

func TestStore_Prune(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	old := testReport("branch-baseline", true)
	old.StartedAt = time.Now().UTC().Add(-48 * time.Hour)
	recent := testReport("branch-baseline", true)

	for _, r := range []*apply.Report{old, recent} {
		if err := s.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Prune(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned report, got %d", n)
	}

	if _, err := s.Get(ctx, recent.ID); err != nil {
		t.Errorf("recent report must survive pruning: %v", err)
	}
}
