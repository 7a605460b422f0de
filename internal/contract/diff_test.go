package contract

import (
	"testing"

	"github.com/prismbi/prism/internal/model"
)

func cols(pairs ...string) []model.Column {
	out := make([]model.Column, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Column{Name: pairs[i], Type: pairs[i+1]})
	}
	return out
}

func TestDiffColumnsNoDrift(t *testing.T) {
	stored := cols("id", "BIGINT", "name", "VARCHAR")
	report := DiffColumns("1__postgres", stored, stored)

	if report.HasDrift {
		t.Errorf("HasDrift = true for identical column sets: %+v", report.Items)
	}
	if report.DatasourceUID != "1__postgres" {
		t.Errorf("DatasourceUID = %q", report.DatasourceUID)
	}
}

func TestDiffColumnsAdded(t *testing.T) {
	stored := cols("id", "BIGINT")
	live := cols("id", "BIGINT", "email", "VARCHAR")
	report := DiffColumns("1__postgres", stored, live)

	if !report.HasDrift || report.HasBreaking {
		t.Fatalf("want additive-only drift, got %+v", report)
	}
	if report.AdditiveCount != 1 || len(report.Items) != 1 {
		t.Fatalf("items = %+v", report.Items)
	}
	item := report.Items[0]
	if item.Category != "column_added" || item.ColumnName != "email" || item.NewValue != "VARCHAR" {
		t.Errorf("item = %+v", item)
	}
}

func TestDiffColumnsRemoved(t *testing.T) {
	stored := cols("id", "BIGINT", "legacy", "VARCHAR")
	live := cols("id", "BIGINT")
	report := DiffColumns("2__mysql", stored, live)

	if !report.HasBreaking || report.BreakingCount != 1 {
		t.Fatalf("want breaking drift, got %+v", report)
	}
	item := report.Items[0]
	if item.Category != "column_removed" || item.ColumnName != "legacy" || item.OldValue != "VARCHAR" {
		t.Errorf("item = %+v", item)
	}
}

func TestDiffColumnsTypeChanged(t *testing.T) {
	stored := cols("amount", "INT")
	live := cols("amount", "DOUBLE")
	report := DiffColumns("3__sqlite", stored, live)

	if !report.HasBreaking {
		t.Fatalf("want breaking drift, got %+v", report)
	}
	item := report.Items[0]
	if item.Category != "type_changed" || item.OldValue != "INT" || item.NewValue != "DOUBLE" {
		t.Errorf("item = %+v", item)
	}
}

func TestDiffColumnsMixed(t *testing.T) {
	stored := cols("id", "BIGINT", "status", "VARCHAR", "amount", "INT")
	live := cols("id", "BIGINT", "amount", "DOUBLE", "created_at", "DATETIME")
	report := DiffColumns("4__oracle", stored, live)

	if report.AdditiveCount != 1 || report.BreakingCount != 2 {
		t.Fatalf("additive = %d, breaking = %d, items = %+v",
			report.AdditiveCount, report.BreakingCount, report.Items)
	}
}
