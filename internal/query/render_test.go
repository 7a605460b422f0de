package query

import (
	"testing"
	"time"
)

func TestLiteral(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		in   interface{}
		want string
	}{
		{nil, "NULL"},
		{true, "TRUE"},
		{false, "FALSE"},
		{"plain", "'plain'"},
		{"O'Brien", "'O''Brien'"},
		{42, "42"},
		{3.5, "3.5"},
		{ts, "'2026-03-01 12:30:00'"},
	}
	for _, tt := range tests {
		if got := Literal(tt.in); got != tt.want {
			t.Errorf("Literal(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInlineSQLQuestion(t *testing.T) {
	got := InlineSQL("SELECT * FROM t WHERE a = ? AND b IN (?, ?)", []interface{}{"x", 1, 2}, QuestionPlaceholder)
	want := "SELECT * FROM t WHERE a = 'x' AND b IN (1, 2)"
	if got != want {
		t.Errorf("InlineSQL = %q, want %q", got, want)
	}
}

func TestInlineSQLDollarHandlesDoubleDigits(t *testing.T) {
	args := make([]interface{}, 11)
	for i := range args {
		args[i] = i
	}
	got := InlineSQL("a = $1 AND k = $11", args, DollarPlaceholder)
	if got != "a = 0 AND k = 10" {
		t.Errorf("InlineSQL = %q", got)
	}
}
