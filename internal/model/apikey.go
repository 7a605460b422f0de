package model

import "time"

// APIKey authenticates requests against a role. The plaintext key is shown
// once at creation and never stored; only a SHA-256 hash and a display
// prefix ("prism_" plus the first 8 hex chars) are persisted.
type APIKey struct {
	ID        int64      `json:"id" db:"id"`
	KeyHash   string     `json:"-" db:"key_hash"` // SHA-256 hash, never expose
	KeyPrefix string     `json:"key_prefix" db:"key_prefix"`
	Label     string     `json:"label" db:"label"`
	RoleID    int64      `json:"role_id" db:"role_id"`
	IsActive  bool       `json:"is_active" db:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty" db:"last_used"`
}

// IsExpired reports whether the key carries an expiry in the past. Keys
// without an expiry never expire.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}
