package query

import (
	"fmt"
	"strings"
	"time"
)

// InlineSQL substitutes bind parameters back into a statement as SQL
// literals, producing the human-readable rendering shown in the explore UI.
// The statement must have been built with the same placeholder function.
// Never execute the result; it exists only for display.
func InlineSQL(sqlText string, args []interface{}, ph PlaceholderFunc) string {
	// ?-style placeholders carry no index, so substitute left to right.
	if ph(1) == "?" {
		var b strings.Builder
		argIdx := 0
		for _, r := range sqlText {
			if r == '?' && argIdx < len(args) {
				b.WriteString(Literal(args[argIdx]))
				argIdx++
				continue
			}
			b.WriteRune(r)
		}
		return b.String()
	}

	// Indexed placeholders: replace highest index first so "$1" does not
	// clobber the prefix of "$10".
	out := sqlText
	for i := len(args); i >= 1; i-- {
		out = strings.ReplaceAll(out, ph(i), Literal(args[i-1]))
	}
	return out
}

// Literal renders a bind value as a SQL literal for display.
func Literal(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case time.Time:
		return "'" + val.UTC().Format("2006-01-02 15:04:05") + "'"
	case fmt.Stringer:
		return "'" + strings.ReplaceAll(val.String(), "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", val)
	}
}
