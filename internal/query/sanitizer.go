// Package query provides the dialect-neutral building blocks connectors use
// to render a query object into SQL: identifier validation, metric and
// groupby clause assembly, parameterized filter rendering, and row-limit
// fragments for each dialect family.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRegex matches the identifier shape every supported warehouse
// accepts unquoted: a letter or underscore, then letters, digits, or
// underscores. Table and column names arrive from stored datasource
// metadata and from tool/query arguments, and both go through this.
var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sqlReservedWords are keywords rejected as identifiers even though the
// rendered SQL quotes them. Parameterization covers values; this covers
// the query structure itself.
var sqlReservedWords = buildWordSet(
	"SELECT", "INSERT", "UPDATE", "DELETE",
	"DROP", "CREATE", "ALTER", "TRUNCATE",
	"EXEC", "EXECUTE", "UNION", "INTO",
	"FROM", "WHERE", "TABLE", "DATABASE",
	"GRANT", "REVOKE", "INDEX", "VIEW",
	"PROCEDURE", "FUNCTION", "TRIGGER", "SCHEMA",
)

func buildWordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// maxIdentifierLen is the shortest identifier limit across the supported
// warehouses (Oracle pre-12.2 is 128 bytes).
const maxIdentifierLen = 128

// ValidateIdentifier rejects empty names, names over the length cap, names
// outside the unquoted-identifier shape, and SQL reserved words.
func ValidateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("identifier too long (max %d chars): %q", maxIdentifierLen, name)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must match [a-zA-Z_][a-zA-Z0-9_]*", name)
	}
	if sqlReservedWords[strings.ToUpper(name)] {
		return fmt.Errorf("identifier %q is a SQL reserved word", name)
	}
	return nil
}

// ValidateIdentifiers returns the first invalid name, if any.
func ValidateIdentifiers(names []string) error {
	for _, name := range names {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}

// SanitizeStringValue strips null bytes and caps the length of a filter
// value before it is bound as a parameter. maxLen <= 0 means the 64KB
// default.
func SanitizeStringValue(val string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = 65535
	}
	val = strings.ReplaceAll(val, "\x00", "")
	if len(val) > maxLen {
		return "", fmt.Errorf("string value too long (max %d chars)", maxLen)
	}
	return val, nil
}
