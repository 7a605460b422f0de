package model

import "strings"

// Column describes one column of a datasource: its physical type plus the
// capability flags that drive what the explore UI offers for it.
type Column struct {
	ID           int64  `json:"id" db:"id"`
	DatasourceID int64  `json:"datasource_id" db:"datasource_id"`
	Name         string `json:"column_name" db:"column_name"`
	VerboseName  string `json:"verbose_name" db:"verbose_name"`
	IsActive     bool   `json:"is_active" db:"is_active"`
	Type         string `json:"type" db:"type"`
	Groupby      bool   `json:"groupby" db:"groupby"`
	CountDistinct bool  `json:"count_distinct" db:"count_distinct"`
	Sum          bool   `json:"sum" db:"sum"`
	Avg          bool   `json:"avg" db:"avg"`
	Max          bool   `json:"max" db:"max"`
	Min          bool   `json:"min" db:"min"`
	Filterable   bool   `json:"filterable" db:"filterable"`
	Description  string `json:"description" db:"description"`

	AuditFields
}

// ExportFields lists the column fields that participate in import/export.
func (c *Column) ExportFields() []string {
	return []string{
		"column_name", "verbose_name", "is_active", "type", "groupby",
		"count_distinct", "sum", "avg", "max", "min", "filterable",
		"description",
	}
}

// Type vocabularies for the derived classifiers. Classification is by
// case-insensitive substring match, not exact equality: "BIGINT" and
// "MEDIUMINT" both contain "INT" and classify as numeric. Connectors rely
// on this catching dialect variants, so keep it substring-based.
var (
	numTypes  = []string{"DOUBLE", "FLOAT", "INT", "BIGINT", "LONG", "REAL", "NUMERIC"}
	dateTypes = []string{"DATE", "TIME", "DATETIME"}
	strTypes  = []string{"VARCHAR", "STRING", "CHAR"}
)

func typeMatches(typ string, vocab []string) bool {
	if typ == "" {
		return false
	}
	upper := strings.ToUpper(typ)
	for _, t := range vocab {
		if strings.Contains(upper, t) {
			return true
		}
	}
	return false
}

// IsNum reports whether the column's type string looks numeric. A type may
// satisfy more than one classifier (e.g. "CHAR_DATE" is both string-like
// and temporal); that ambiguity is accepted.
func (c *Column) IsNum() bool { return typeMatches(c.Type, numTypes) }

// IsTime reports whether the column's type string looks temporal.
func (c *Column) IsTime() bool { return typeMatches(c.Type, dateTypes) }

// IsString reports whether the column's type string looks string-like.
func (c *Column) IsString() bool { return typeMatches(c.Type, strTypes) }

// Label returns the display label for the column.
func (c *Column) Label() string {
	if c.VerboseName != "" {
		return c.VerboseName
	}
	return c.Name
}
