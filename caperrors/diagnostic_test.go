package caperrors

import (
	"strings"
	"testing"
)

func TestDiagnosticTruncatesLongStrings(t *testing.T) {
	s := strings.Repeat("a", maxDiagnosticString+50)
	got := Diagnostic(s)
	if strings.Contains(got, strings.Repeat("a", maxDiagnosticString+1)) {
		t.Fatalf("expected string to be truncated, got length %d", len(got))
	}
	if !strings.Contains(got, "bytes total") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
}

func TestDiagnosticTruncatesLongBytes(t *testing.T) {
	b := make([]byte, maxDiagnosticBytes+10)
	got := Diagnostic(b)
	if !strings.Contains(got, "bytes total") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
}

func TestDiagnosticSummarizesLargeContainers(t *testing.T) {
	items := make([]any, maxDiagnosticItems+5)
	for i := range items {
		items[i] = i
	}
	got := Diagnostic(items)
	if !strings.Contains(got, "items total") {
		t.Fatalf("expected item-count summary, got %q", got)
	}
}

func TestDiagnosticSummarizesLargeMaps(t *testing.T) {
	m := make(map[string]any, maxDiagnosticItems+5)
	for i := 0; i < maxDiagnosticItems+5; i++ {
		m[string(rune('a'+i))] = i
	}
	got := Diagnostic(m)
	if !strings.Contains(got, "keys total") {
		t.Fatalf("expected key-count summary, got %q", got)
	}
}

func TestDiagnosticNeverPanics(t *testing.T) {
	type weird struct {
		ch chan int
		fn func()
	}
	// A channel and a function value have no meaningful textual form;
	// Diagnostic must still return without panicking.
	got := Diagnostic(weird{ch: make(chan int), fn: func() {}})
	if got == "" {
		t.Fatalf("expected a non-empty fallback diagnostic string")
	}
}

func TestDiagnosticHandlesNilAndScalars(t *testing.T) {
	if Diagnostic(nil) != "null" {
		t.Fatalf("expected null for nil")
	}
	if Diagnostic(true) != "true" {
		t.Fatalf("expected true for bool")
	}
	if Diagnostic(int64(42)) != "42" {
		t.Fatalf("expected 42 for int64")
	}
}
