package config

import (
	"context"
	"errors"
	"testing"

	"github.com/prismbi/prism/internal/contract"
	"github.com/prismbi/prism/internal/model"
)

func TestSnapshotLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	columns := []model.Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "name", Type: "VARCHAR"},
	}

	snap, err := s.SaveSnapshot(ctx, "1__postgres", columns)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if snap.DatasourceUID != "1__postgres" || len(snap.Columns) != 2 {
		t.Errorf("snap = %+v", snap)
	}

	got, err := s.GetSnapshot(ctx, "1__postgres")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if len(got.Columns) != 2 || got.Columns[0].Name != "id" {
		t.Errorf("columns = %+v", got.Columns)
	}
	if got.TakenAt.IsZero() {
		t.Error("TakenAt should be set")
	}
}

func TestSnapshotUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := []model.Column{{Name: "id", Type: "BIGINT"}}
	if _, err := s.SaveSnapshot(ctx, "2__mysql", first); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	second := []model.Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "email", Type: "VARCHAR"},
	}
	if _, err := s.SaveSnapshot(ctx, "2__mysql", second); err != nil {
		t.Fatalf("SaveSnapshot upsert: %v", err)
	}

	got, err := s.GetSnapshot(ctx, "2__mysql")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if len(got.Columns) != 2 {
		t.Errorf("got %d columns after upsert, want 2", len(got.Columns))
	}
}

func TestSnapshotNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSnapshot(ctx, "9__sqlite"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteSnapshot(ctx, "9__sqlite"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestSnapshotFeedsDriftDiff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stored := []model.Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "status", Type: "VARCHAR"},
	}
	if _, err := s.SaveSnapshot(ctx, "3__postgres", stored); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	snap, err := s.GetSnapshot(ctx, "3__postgres")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}

	live := []model.Column{
		{Name: "id", Type: "BIGINT"},
		{Name: "created_at", Type: "TIMESTAMP"},
	}
	report := contract.DiffColumns("3__postgres", snap.Columns, live)
	if report.AdditiveCount != 1 || report.BreakingCount != 1 {
		t.Errorf("report = %+v", report)
	}
}
