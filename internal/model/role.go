package model

import "time"

// Role defines an RBAC role that groups a set of access rules together.
// API keys are bound to roles to determine which datasources and
// operations they can reach.
type Role struct {
	ID          int64        `json:"id" db:"id"`
	Name        string       `json:"name" db:"name"`
	Description string       `json:"description" db:"description"`
	IsActive    bool         `json:"is_active" db:"is_active"`
	Access      []RoleAccess `json:"access"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// RoleAccess defines a single access rule within a role, controlling which
// HTTP verbs are allowed on a datasource component. DatasourceUID and
// Component accept "*" as a wildcard. AllowRestricted grants visibility of
// restricted metrics on the matched datasources.
type RoleAccess struct {
	ID              int64  `json:"id" db:"id"`
	RoleID          int64  `json:"role_id" db:"role_id"`
	DatasourceUID   string `json:"datasource_uid" db:"datasource_uid"`
	Component       string `json:"component" db:"component"` // data, query, values, metadata, *
	VerbMask        int    `json:"verb_mask" db:"verb_mask"`
	AllowRestricted bool   `json:"allow_restricted" db:"allow_restricted"`
}

// Verb mask constants define which HTTP methods are allowed.
const (
	VerbGet    = 1
	VerbPost   = 2
	VerbPut    = 4
	VerbPatch  = 8
	VerbDelete = 16
	VerbAll    = VerbGet | VerbPost | VerbPut | VerbPatch | VerbDelete
)
