package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	msg := "Error: key=sk_test_123456 and token=abc_xyz_789"
	got := Redact(msg)

	if strings.Contains(got, "sk_test_123456") || strings.Contains(got, "abc_xyz_789") {
		t.Fatalf("secrets leaked: %q", got)
	}
	if !strings.Contains(got, "key=***") || !strings.Contains(got, "token=***") {
		t.Errorf("expected masked markers, got %q", got)
	}
}

func TestRedact_APIKeyAndCX(t *testing.T) {
	got := Redact("Failed with api_key=AKIA_REDACTED")
	if strings.Contains(got, "AKIA_REDACTED") || !strings.Contains(got, "api_key=***") {
		t.Errorf("unexpected redaction: %q", got)
	}

	url := `Get "https://www.googleapis.com/customsearch/v1?cx=abc123&key=SECRET&q=plumber": dial tcp: timeout`
	got = Redact(url)
	if strings.Contains(got, "SECRET") || strings.Contains(got, "abc123") {
		t.Errorf("query string secrets leaked: %q", got)
	}
	if !strings.Contains(got, "q=plumber") {
		t.Errorf("non-secret params should survive: %q", got)
	}
}

func TestRedactErr_Truncates(t *testing.T) {
	long := errors.New(strings.Repeat("x", 300))
	if got := RedactErr(long); len(got) != 120 {
		t.Errorf("expected 120 chars, got %d", len(got))
	}
	if RedactErr(nil) != "" {
		t.Errorf("expected empty string for nil error")
	}
}

func TestNew_JSONShapeAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Info("google network error",
		"provider", "google_cse",
		"error", errors.New("request failed: key=topsecret"),
	)
	logger.Debug("hidden at info level")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec["message"] != "google network error" {
		t.Errorf("unexpected message: %v", rec["message"])
	}
	if _, ok := rec["timestamp"]; !ok {
		t.Errorf("expected timestamp key")
	}
	if rec["level"] != "INFO" {
		t.Errorf("unexpected level: %v", rec["level"])
	}
	if strings.Contains(lines[0], "topsecret") {
		t.Errorf("secret leaked into log: %s", lines[0])
	}
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, true).With("token", "token=abc").Debug("visible")

	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug record, got %q", buf.String())
	}
	if strings.Contains(buf.String(), "abc") {
		t.Errorf("expected WithAttrs values to be redacted: %q", buf.String())
	}
}

func TestRedact_WordBoundary(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"turkey: recipes", "turkey: recipes"},
		{"hockey=stats", "hockey=stats"},
		{"access_token=abc123", "access_token=***"},
		{"x-api-key: zzz", "x-api-key: ***"},
		{"KEY=upper", "KEY=***"},
	}
	for _, tt := range tests {
		if got := Redact(tt.in); got != tt.want {
			t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNew_KeywordNotRedacted(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, false).Info("google results", "keyword", "donkey: token=rides", "error_code", "token=abc")

	out := buf.String()
	if !strings.Contains(out, `"keyword":"donkey: token=rides"`) {
		t.Errorf("expected keyword logged verbatim, got %s", out)
	}
	if strings.Contains(out, "token=abc") {
		t.Errorf("expected other attributes to stay redacted, got %s", out)
	}
}
