package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/scout/internal/config"
	"github.com/FranksOps/scout/internal/pipeline"
	"github.com/FranksOps/scout/internal/storage"
	"github.com/FranksOps/scout/internal/storage/jsonbackend"
)

func noEnv(string) string { return "" }

func credsEnv(key string) string {
	switch key {
	case "GOOGLE_API_KEY":
		return "sk_test_123456"
	case "GOOGLE_CSE_ID":
		return "cx-abc"
	}
	return ""
}

func execute(t *testing.T, getenv func(string) string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd(env{getenv: getenv})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scout.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const baseConfig = `keywords: ["plumber austin", "roofer austin"]
providers:
  google_cse:
    enabled: true
  duckduckgo:
    enabled: true
`

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("boom"), ExitFailure},
		{&config.Error{Msg: "bad"}, ExitConfig},
		{&pipeline.OutputError{Path: "/x", Err: errors.New("denied")}, ExitOutput},
		{&ExitError{Code: ExitNoProviders, Err: errors.New("none")}, ExitNoProviders},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestProviderNames(t *testing.T) {
	if got, _ := providerNames("google"); len(got) != 1 || got[0] != config.GoogleCSE {
		t.Errorf("google mapped to %v", got)
	}
	if got, _ := providerNames("all"); len(got) != 2 {
		t.Errorf("all mapped to %v", got)
	}
	if _, err := providerNames("bing"); err == nil {
		t.Errorf("expected error for unknown provider")
	}
}

func TestDiscover_MissingConfig(t *testing.T) {
	_, _, err := execute(t, noEnv, "discover",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--output", filepath.Join(t.TempDir(), "domains.txt"))
	if code := ExitCode(err); code != ExitConfig {
		t.Fatalf("expected exit %d, got %d (%v)", ExitConfig, code, err)
	}
}

func TestDiscover_EmptyKeywords(t *testing.T) {
	cfg := writeConfig(t, "keywords: []\n")
	_, stderr, err := execute(t, noEnv, "discover", "--config", cfg, "--output", filepath.Join(t.TempDir(), "d.txt"))
	if code := ExitCode(err); code != ExitConfig {
		t.Fatalf("expected exit %d, got %d (%v)", ExitConfig, code, err)
	}
	if !strings.Contains(stderr, "config load failed") {
		t.Errorf("expected config failure log, got %q", stderr)
	}
}

func TestDiscover_UnknownProviderFlag(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	_, _, err := execute(t, noEnv, "discover", "--config", cfg, "--provider", "bing", "--dry-run")
	if code := ExitCode(err); code != ExitConfig {
		t.Fatalf("expected exit %d, got %d (%v)", ExitConfig, code, err)
	}
}

func TestDiscover_NoProviders(t *testing.T) {
	cfg := writeConfig(t, `keywords: ["plumber austin"]
providers:
  google_cse:
    enabled: false
  duckduckgo:
    enabled: false
`)
	_, _, err := execute(t, noEnv, "discover", "--config", cfg, "--output", filepath.Join(t.TempDir(), "d.txt"))
	if code := ExitCode(err); code != ExitNoProviders {
		t.Fatalf("expected exit %d, got %d (%v)", ExitNoProviders, code, err)
	}
}

func TestDiscover_SelectedProviderDisabled(t *testing.T) {
	cfg := writeConfig(t, `keywords: ["plumber austin"]
providers:
  google_cse:
    enabled: false
`)
	_, _, err := execute(t, noEnv, "discover", "--config", cfg, "--provider", "google", "--dry-run")
	if code := ExitCode(err); code != ExitNoProviders {
		t.Fatalf("expected exit %d, got %d (%v)", ExitNoProviders, code, err)
	}
}

func TestDiscover_OutputNotWritable(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	_, _, err := execute(t, noEnv, "discover", "--config", cfg, "--provider", "google", "--output", t.TempDir())
	if code := ExitCode(err); code != ExitOutput {
		t.Fatalf("expected exit %d, got %d (%v)", ExitOutput, code, err)
	}
}

func TestDiscover_DryRunMissingCredentials(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	_, stderr, err := execute(t, noEnv, "discover", "--config", cfg, "--provider", "google", "--dry-run")
	if code := ExitCode(err); code != ExitUnusable {
		t.Fatalf("expected exit %d, got %d (%v)", ExitUnusable, code, err)
	}
	if !strings.Contains(stderr, "provider unusable") || !strings.Contains(stderr, "GOOGLE_API_KEY") {
		t.Errorf("expected missing credential log, got %q", stderr)
	}
}

func TestDiscover_DryRunOK(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	_, stderr, err := execute(t, credsEnv, "discover", "--config", cfg, "--dry-run")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !strings.Contains(stderr, `"message":"config valid"`) || !strings.Contains(stderr, `"providers":2`) {
		t.Errorf("expected config valid log, got %q", stderr)
	}
	if strings.Contains(stderr, "sk_test_123456") {
		t.Errorf("credential leaked into logs")
	}
}

func TestDiscover_RunWithoutCredentialsAndHistory(t *testing.T) {
	dir := t.TempDir()
	history := filepath.Join(dir, "runs.ndjson")
	cfg := writeConfig(t, baseConfig+`storage:
  backend: json
  dsn: `+history+"\n")
	out := filepath.Join(dir, "out", "domains.txt")
	rep := filepath.Join(dir, "report.txt")

	stdout, stderr, err := execute(t, noEnv, "discover",
		"--config", cfg,
		"--provider", "google",
		"--output", out,
		"--report", rep,
		"--report-format", "text")
	if err != nil {
		t.Fatalf("discover failed: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "wrote 0 domains") {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if !strings.Contains(stderr, "discovery summary") {
		t.Errorf("expected summary log, got %q", stderr)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("expected empty domain file, got %q", data)
	}

	text, err := os.ReadFile(rep)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(text), "google_cse: 2 queries, 0 domains") {
		t.Errorf("unexpected report:\n%s", text)
	}

	listing, _, err := execute(t, noEnv, "history", "--config", cfg)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(listing, "RUN ID") || strings.Count(listing, "\n") != 2 {
		t.Errorf("expected header and one run, got %q", listing)
	}

	raw, _, err := execute(t, noEnv, "history", "--config", cfg, "--format", "json")
	if err != nil {
		t.Fatalf("history json failed: %v", err)
	}
	var rec storage.RunRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("decode history: %v (%q)", err, raw)
	}
	if rec.ProviderUsage[config.GoogleCSE].QueriesMade != 2 || len(rec.Keywords) != 2 || rec.OutputPath != out {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestHistory_NotConfigured(t *testing.T) {
	cfg := writeConfig(t, baseConfig)
	_, _, err := execute(t, noEnv, "history", "--config", cfg)
	if !errors.Is(err, errNoHistory) {
		t.Fatalf("expected errNoHistory, got %v", err)
	}
	if code := ExitCode(err); code != ExitFailure {
		t.Errorf("expected exit %d, got %d", ExitFailure, code)
	}
}

func TestOpenHistory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, backend := range []string{"json", "csv", "sqlite"} {
		b, err := openHistory(ctx, config.StorageConfig{Backend: backend, DSN: filepath.Join(dir, "runs."+backend)})
		if err != nil || b == nil {
			t.Fatalf("%s: open failed: %v", backend, err)
		}
		_ = b.Close()
	}

	if b, err := openHistory(ctx, config.StorageConfig{Backend: "none"}); b != nil || err != nil {
		t.Errorf("expected no backend for none, got %v %v", b, err)
	}
	if _, err := openHistory(ctx, config.StorageConfig{Backend: "mongo"}); err == nil {
		t.Errorf("expected error for unsupported backend")
	}
}

func TestHistory_DomainFilterNormalized(t *testing.T) {
	dir := t.TempDir()
	history := filepath.Join(dir, "runs.ndjson")
	cfg := writeConfig(t, baseConfig+`storage:
  backend: json
  dsn: `+history+"\n")

	b, err := jsonbackend.New(history)
	if err != nil {
		t.Fatal(err)
	}
	run := &storage.RunRecord{ID: "run-1", Domains: []string{"example.com"}, CollectedAt: time.Now().UTC()}
	if err := b.Save(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	_ = b.Close()

	raw, _, err := execute(t, noEnv, "history", "--config", cfg, "--domain", "https://WWW.Example.com/about", "--format", "json")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var rec storage.RunRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.ID != "run-1" {
		t.Fatalf("expected run-1 for a www-prefixed domain, got %q (%v)", raw, err)
	}

	raw, _, err = execute(t, noEnv, "history", "--config", cfg, "--domain", "other.com", "--format", "json")
	if err != nil || raw != "" {
		t.Errorf("expected no runs for other.com, got %q %v", raw, err)
	}
}
