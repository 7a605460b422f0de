package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/model"
)

// writeJSON serializes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope. The optional ctx map adds
// context fields (offending column, datasource UID) next to the message.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v and closes the body.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, falling back to defaultVal
// when missing or unparseable.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func queryString(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// queryBool extracts a boolean query parameter; only "true" and "1" count.
func queryBool(r *http.Request, key string) bool {
	val := r.URL.Query().Get(key)
	return val == "true" || val == "1"
}

// stringsToResources wraps a list of strings as single-key objects:
// [{"key": "value1"}, {"key": "value2"}, ...]. Table and schema listings
// use this shape so clients get objects they can extend.
func stringsToResources(key string, values []string) []map[string]interface{} {
	out := make([]map[string]interface{}, len(values))
	for i, v := range values {
		out[i] = map[string]interface{}{key: v}
	}
	return out
}

// containsAny reports whether s contains any of the substrings.
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// classifyDBError maps store and warehouse errors to HTTP status codes.
// The config store's ErrNotFound is checked first; everything else is
// classified by driver message text, since each driver wraps constraint
// violations in its own error type.
func classifyDBError(err error, fallbackMsg string) (int, string) {
	if errors.Is(err, config.ErrNotFound) {
		return http.StatusNotFound, fallbackMsg + ": not found"
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, "unique constraint", "duplicate key", "duplicate entry", "violation of unique"):
		return http.StatusConflict, fallbackMsg + ": " + msg

	case containsAny(lower, "not null constraint", "cannot insert null", "null value in column", "column cannot be null"):
		return http.StatusBadRequest, fallbackMsg + ": " + msg

	case containsAny(lower, "no such table", "invalid object name", "doesn't exist") ||
		(strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist")):
		return http.StatusNotFound, fallbackMsg + ": " + msg

	case containsAny(lower, "foreign key", "fk constraint"):
		return http.StatusBadRequest, fallbackMsg + ": " + msg

	case strings.Contains(lower, "check constraint"):
		return http.StatusBadRequest, fallbackMsg + ": " + msg

	default:
		return http.StatusInternalServerError, fallbackMsg + ": " + msg
	}
}

// clampInt constrains val to [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
