package model

import "time"

// AuditFields carries the created/changed metadata shared by every
// persisted metadata record. Actor fields are empty when a record was
// created outside an authenticated session (CLI, YAML seed).
type AuditFields struct {
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	CreatedBy string    `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy string    `json:"changed_by,omitempty" db:"updated_by"`
}

// Auditable is implemented by every record that tracks audit metadata.
// Handlers and the store stamp records through this interface so the
// bookkeeping stays uniform across record types.
type Auditable interface {
	StampCreated(by string, at time.Time)
	StampUpdated(by string, at time.Time)
}

// StampCreated records the creator and creation time, and initializes the
// updated fields to match.
func (a *AuditFields) StampCreated(by string, at time.Time) {
	a.CreatedAt = at
	a.CreatedBy = by
	a.UpdatedAt = at
	a.UpdatedBy = by
}

// StampUpdated records the last modifier and modification time.
func (a *AuditFields) StampUpdated(by string, at time.Time) {
	a.UpdatedAt = at
	a.UpdatedBy = by
}

// Exportable is implemented by records that declare which of their fields
// participate in import/export serialization.
type Exportable interface {
	ExportFields() []string
}
