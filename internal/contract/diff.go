package contract

import (
	"fmt"
	"time"

	"github.com/prismbi/prism/internal/model"
)

// DiffColumns compares the stored column set of a datasource against the
// live introspected columns and classifies each difference as additive or
// breaking.
func DiffColumns(datasourceUID string, stored, live []model.Column) DriftReport {
	report := DriftReport{
		DatasourceUID: datasourceUID,
		CheckedAt:     time.Now().UTC(),
	}

	liveByName := make(map[string]model.Column, len(live))
	for _, col := range live {
		liveByName[col.Name] = col
	}
	storedByName := make(map[string]model.Column, len(stored))
	for _, col := range stored {
		storedByName[col.Name] = col
	}

	// Removed or retyped columns are breaking.
	for _, storedCol := range stored {
		liveCol, exists := liveByName[storedCol.Name]
		if !exists {
			report.Items = append(report.Items, DriftItem{
				Type:        DriftBreaking,
				Category:    "column_removed",
				ColumnName:  storedCol.Name,
				OldValue:    storedCol.Type,
				Description: fmt.Sprintf("Column %q no longer exists in the backing table", storedCol.Name),
			})
			continue
		}
		if storedCol.Type != liveCol.Type {
			report.Items = append(report.Items, DriftItem{
				Type:        DriftBreaking,
				Category:    "type_changed",
				ColumnName:  storedCol.Name,
				OldValue:    storedCol.Type,
				NewValue:    liveCol.Type,
				Description: fmt.Sprintf("Column %q type changed from %q to %q", storedCol.Name, storedCol.Type, liveCol.Type),
			})
		}
	}

	// New columns are additive.
	for _, liveCol := range live {
		if _, exists := storedByName[liveCol.Name]; !exists {
			report.Items = append(report.Items, DriftItem{
				Type:        DriftAdditive,
				Category:    "column_added",
				ColumnName:  liveCol.Name,
				NewValue:    liveCol.Type,
				Description: fmt.Sprintf("Column %q appeared in the backing table", liveCol.Name),
			})
		}
	}

	for _, item := range report.Items {
		switch item.Type {
		case DriftAdditive:
			report.AdditiveCount++
		case DriftBreaking:
			report.BreakingCount++
		}
	}
	report.HasDrift = len(report.Items) > 0
	report.HasBreaking = report.BreakingCount > 0
	return report
}
