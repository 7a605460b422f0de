package model

// Metric describes a precomputed or derived aggregate definable on a
// datasource. The SQL expression is what connectors splice into the SELECT
// list when the metric is requested in a query object.
type Metric struct {
	ID           int64  `json:"id" db:"id"`
	DatasourceID int64  `json:"datasource_id" db:"datasource_id"`
	MetricName   string `json:"metric_name" db:"metric_name"`
	VerboseName  string `json:"verbose_name" db:"verbose_name"`
	MetricType   string `json:"metric_type" db:"metric_type"` // count, sum, avg, min, max, count_distinct
	Expression   string `json:"expression" db:"expression"`
	Description  string `json:"description" db:"description"`
	IsRestricted bool   `json:"is_restricted" db:"is_restricted"`
	D3Format     string `json:"d3format" db:"d3format"`

	AuditFields
}

// ExportFields lists the metric fields that participate in import/export.
func (m *Metric) ExportFields() []string {
	return []string{
		"metric_name", "verbose_name", "metric_type", "expression",
		"description", "is_restricted", "d3format",
	}
}

// Label returns the display label for the metric: the verbose name, or the
// metric name when no verbose name is set.
func (m *Metric) Label() string {
	if m.VerboseName != "" {
		return m.VerboseName
	}
	return m.MetricName
}
