package openapi

import "strings"

// TypeMapping is the OpenAPI type/format pair a warehouse column is
// documented with in the generated spec.
type TypeMapping struct {
	Type   string // string, integer, number, boolean, object, array
	Format string // int32, int64, float, double, date, date-time, uuid, byte
}

// typeFormats holds exact matches for normalized warehouse types. Families
// that are safe to detect by substring (character, timestamp, binary) are
// handled by inferType instead, so dialect variants like Snowflake's
// TIMESTAMP_NTZ or SQL Server's datetime2 do not each need a row here.
var typeFormats = map[string]TypeMapping{
	// Integers. Exact entries only: a bare substring match on "int" would
	// misclassify interval and point.
	"int":      {"integer", "int32"},
	"int2":     {"integer", "int32"},
	"int4":     {"integer", "int32"},
	"int8":     {"integer", "int64"},
	"integer":  {"integer", "int32"},
	"bigint":   {"integer", "int64"},
	"smallint": {"integer", "int32"},
	"tinyint":  {"integer", "int32"},
	"oid":      {"integer", "int64"},

	// Floats and fixed-point
	"float":            {"number", "float"},
	"float4":           {"number", "float"},
	"float8":           {"number", "double"},
	"double":           {"number", "double"},
	"double precision": {"number", "double"},
	"decimal":          {"number", "double"},
	"numeric":          {"number", "double"},
	"real":             {"number", "float"},
	"money":            {"number", "double"},
	"number":           {"number", "double"},

	// Dates and times
	"date":   {"string", "date"},
	"time":   {"string", "time"},
	"timetz": {"string", "time"},
	"time with time zone":    {"string", "time"},
	"time without time zone": {"string", "time"},

	// Booleans
	"boolean": {"boolean", ""},
	"bool":    {"boolean", ""},
	"bit":     {"boolean", ""},

	// Identifiers and binary
	"uuid":             {"string", "uuid"},
	"uniqueidentifier": {"string", "uuid"},
	"bytea":            {"string", "byte"},
	"image":            {"string", "byte"},

	// Semi-structured
	"json":    {"object", ""},
	"jsonb":   {"object", ""},
	"variant": {"object", ""},
	"object":  {"object", ""},
	"array":   {"array", ""},
}

// inferType classifies normalized types the exact table misses, by family.
// Order matters: timestamp families are checked before the character
// fallthrough so "timestamp without time zone" is not caught by a broader
// rule.
func inferType(normalized string) (TypeMapping, bool) {
	switch {
	case strings.Contains(normalized, "timestamp"),
		strings.Contains(normalized, "datetime"):
		return TypeMapping{"string", "date-time"}, true
	case strings.Contains(normalized, "serial"):
		if strings.HasPrefix(normalized, "big") {
			return TypeMapping{"integer", "int64"}, true
		}
		return TypeMapping{"integer", "int32"}, true
	case strings.Contains(normalized, "binary"),
		strings.Contains(normalized, "blob"):
		return TypeMapping{"string", "byte"}, true
	case strings.Contains(normalized, "char"),
		strings.Contains(normalized, "text"):
		return TypeMapping{"string", ""}, true
	}
	return TypeMapping{}, false
}

// MapDBType converts a warehouse column type to its OpenAPI mapping.
// Unknown types document as a plain string, which is always renderable.
func MapDBType(dbType string) TypeMapping {
	normalized := strings.ToLower(strings.TrimSpace(dbType))

	// "varchar(255)" -> "varchar", "NUMERIC(10,2)" -> "numeric"
	if idx := strings.IndexByte(normalized, '('); idx >= 0 {
		normalized = normalized[:idx]
	}

	// "int unsigned" -> "int", "text[]" -> "text"
	normalized = strings.TrimSuffix(normalized, " unsigned")
	normalized = strings.TrimSpace(normalized)
	normalized = strings.TrimSuffix(normalized, "[]")

	if m, ok := typeFormats[normalized]; ok {
		return m
	}
	if m, ok := inferType(normalized); ok {
		return m
	}
	return TypeMapping{"string", ""}
}
