package contract

import (
	"time"

	"github.com/prismbi/prism/internal/model"
)

// Snapshot is the column set of a datasource's backing table as last
// introspected, kept so a refresh can report what changed underneath the
// stored metadata.
type Snapshot struct {
	ID            int64          `json:"id" db:"id"`
	DatasourceUID string         `json:"datasource_uid" db:"datasource_uid"`
	Columns       []model.Column `json:"columns"`
	ColumnsJSON   string         `json:"-" db:"columns_json"`
	TakenAt       time.Time      `json:"taken_at" db:"taken_at"`
}

// DriftType classifies the severity of a column change.
type DriftType string

const (
	// DriftAdditive means a new column appeared. Stored metadata stays valid.
	DriftAdditive DriftType = "additive"
	// DriftBreaking means a column vanished or changed type, so metrics and
	// capability flags referencing it may no longer hold.
	DriftBreaking DriftType = "breaking"
)

// DriftItem describes a single difference between the stored columns and the
// live table.
type DriftItem struct {
	Type        DriftType `json:"type"`
	Category    string    `json:"category"` // "column_added", "column_removed", "type_changed"
	ColumnName  string    `json:"column_name"`
	OldValue    string    `json:"old_value,omitempty"`
	NewValue    string    `json:"new_value,omitempty"`
	Description string    `json:"description"`
}

// DriftReport summarizes all differences found when refreshing a datasource
// against its backing table.
type DriftReport struct {
	DatasourceUID string      `json:"datasource_uid"`
	HasDrift      bool        `json:"has_drift"`
	HasBreaking   bool        `json:"has_breaking"`
	AdditiveCount int         `json:"additive_count"`
	BreakingCount int         `json:"breaking_count"`
	Items         []DriftItem `json:"items"`
	CheckedAt     time.Time   `json:"checked_at"`
}
