package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prismbi/prism/internal/config"
)

// ---------------------------------------------------------------------------
// queryInt tests
// ---------------------------------------------------------------------------

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		key        string
		defaultVal int
		want       int
	}{
		{"returns default for missing param", "/test", "limit", 25, 25},
		{"parses integer param", "/test?limit=100", "limit", 25, 100},
		{"returns default for non-integer", "/test?limit=abc", "limit", 25, 25},
		{"parses zero", "/test?offset=0", "offset", 10, 0},
		{"parses negative", "/test?offset=-5", "offset", 0, -5},
		{"returns default for empty value", "/test?limit=", "limit", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			got := queryInt(r, tt.key, tt.defaultVal)
			if got != tt.want {
				t.Errorf("queryInt(%q, %d) = %d, want %d", tt.key, tt.defaultVal, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// queryBool tests
// ---------------------------------------------------------------------------

func TestQueryBool(t *testing.T) {
	tests := []struct {
		name string
		url  string
		key  string
		want bool
	}{
		{"true for 'true'", "/test?include_count=true", "include_count", true},
		{"true for '1'", "/test?include_count=1", "include_count", true},
		{"false for 'false'", "/test?include_count=false", "include_count", false},
		{"false for missing", "/test", "include_count", false},
		{"false for '0'", "/test?include_count=0", "include_count", false},
		{"false for empty", "/test?include_count=", "include_count", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			got := queryBool(r, tt.key)
			if got != tt.want {
				t.Errorf("queryBool(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// queryString tests
// ---------------------------------------------------------------------------

func TestQueryString(t *testing.T) {
	tests := []struct {
		name string
		url  string
		key  string
		want string
	}{
		{"returns value", "/test?filter=age>21", "filter", "age>21"},
		{"returns empty for missing", "/test", "filter", ""},
		{"returns empty string for empty", "/test?filter=", "filter", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			got := queryString(r, tt.key)
			if got != tt.want {
				t.Errorf("queryString(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// clampInt tests
// ---------------------------------------------------------------------------

func TestClampInt(t *testing.T) {
	tests := []struct {
		name       string
		val        int
		min        int
		max        int
		want       int
	}{
		{"within range", 50, 0, 100, 50},
		{"at min", 0, 0, 100, 0},
		{"at max", 100, 0, 100, 100},
		{"below min clamps to min", -5, 0, 100, 0},
		{"above max clamps to max", 500, 0, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampInt(tt.val, tt.min, tt.max)
			if got != tt.want {
				t.Errorf("clampInt(%d, %d, %d) = %d, want %d", tt.val, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// stringsToResources tests
// ---------------------------------------------------------------------------

func TestStringsToResources(t *testing.T) {
	t.Run("converts strings to resource maps", func(t *testing.T) {
		result := stringsToResources("name", []string{"users", "orders", "products"})
		if len(result) != 3 {
			t.Fatalf("expected 3 resources, got %d", len(result))
		}
		for i, expected := range []string{"users", "orders", "products"} {
			if result[i]["name"] != expected {
				t.Errorf("resource[%d][name] = %v, want %s", i, result[i]["name"], expected)
			}
		}
	})

	t.Run("empty input", func(t *testing.T) {
		result := stringsToResources("name", nil)
		if len(result) != 0 {
			t.Errorf("expected 0 resources, got %d", len(result))
		}
	})
}

// ---------------------------------------------------------------------------
// classifyDBError tests
// ---------------------------------------------------------------------------

func TestClassifyDBError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"store not found sentinel", fmt.Errorf("update datasource: %w", config.ErrNotFound), http.StatusNotFound},
		{"unique violation", errors.New("UNIQUE constraint failed: datasources.name"), http.StatusConflict},
		{"mysql duplicate entry", errors.New("Error 1062: Duplicate entry 'events' for key 'name'"), http.StatusConflict},
		{"not null violation", errors.New("NOT NULL constraint failed: datasources.dsn"), http.StatusBadRequest},
		{"foreign key violation", errors.New("FOREIGN KEY constraint failed"), http.StatusBadRequest},
		{"missing table", errors.New("no such table: events"), http.StatusNotFound},
		{"postgres missing relation", errors.New(`pq: relation "events" does not exist`), http.StatusNotFound},
		{"anything else", errors.New("disk I/O error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := classifyDBError(tt.err, "fallback")
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if msg == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// writeError tests
// ---------------------------------------------------------------------------

func TestWriteError(t *testing.T) {
	t.Run("writes JSON error response", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeError(w, http.StatusBadRequest, "Invalid input")

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body := w.Body.String()
		if !strings.Contains(body, `"code":400`) {
			t.Errorf("expected code 400 in body: %s", body)
		}
		if !strings.Contains(body, `"message":"Invalid input"`) {
			t.Errorf("expected message in body: %s", body)
		}
	})
}

// ---------------------------------------------------------------------------
// writeJSON tests
// ---------------------------------------------------------------------------

func TestWriteJSON(t *testing.T) {
	t.Run("writes JSON with correct content type", func(t *testing.T) {
		w := httptest.NewRecorder()
		writeJSON(w, http.StatusOK, map[string]string{"hello": "world"})

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		body := w.Body.String()
		if !strings.Contains(body, `"hello":"world"`) {
			t.Errorf("expected JSON body, got: %s", body)
		}
	})
}

