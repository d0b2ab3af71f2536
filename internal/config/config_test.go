package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := `
source:
  startUrl: https://arxiv.org/list/cs.CV/recent?show=50
  maxPages: 3
fetch:
  requestInterval: 2s
crawl:
  resume: false
llm:
  model: gpt-4.1-mini
report:
  recentDays: 5
scheduler:
  interval: 6h
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(llmAPIKeyEnv, "")
	t.Setenv(llmModelEnv, "")

	cfg := Load(path)

	if cfg.Source.StartURL != "https://arxiv.org/list/cs.CV/recent?show=50" {
		t.Fatalf("unexpected start url: %s", cfg.Source.StartURL)
	}
	if cfg.Source.PageLimit() != 3 {
		t.Fatalf("expected maxPages 3, got %d", cfg.Source.PageLimit())
	}
	if cfg.Source.Scanner != "arxiv" {
		t.Fatalf("scanner default lost: %q", cfg.Source.Scanner)
	}
	if cfg.Fetch.RequestInterval != 2*time.Second {
		t.Fatalf("unexpected interval: %v", cfg.Fetch.RequestInterval)
	}
	if cfg.Fetch.Timeout != 20*time.Second {
		t.Fatalf("timeout default lost: %v", cfg.Fetch.Timeout)
	}
	if cfg.Crawl.ResumeEnabled() {
		t.Fatalf("resume should be disabled by file")
	}
	if cfg.LLM.Model != "gpt-4.1-mini" {
		t.Fatalf("unexpected model: %s", cfg.LLM.Model)
	}
	if cfg.Report.RecentDays != 5 || cfg.Report.Path != "README.md" {
		t.Fatalf("unexpected report config: %+v", cfg.Report)
	}
	if cfg.Scheduler.Interval != 6*time.Hour {
		t.Fatalf("unexpected scheduler interval: %v", cfg.Scheduler.Interval)
	}
}

func TestLoadMaxPagesZeroMeansUnbounded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("source:\n  maxPages: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if got := Load(path).Source.PageLimit(); got != 0 {
		t.Fatalf("expected unbounded crawl from maxPages: 0, got %d", got)
	}

	other := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(other, []byte("llm:\n  model: gpt-4.1-mini\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if got := Load(other).Source.PageLimit(); got != 1 {
		t.Fatalf("expected default page limit 1 when maxPages is absent, got %d", got)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(llmAPIKeyEnv, "sk-live-123")
	t.Setenv(ledgerDSNEnv, "file:ledger.db")
	t.Setenv(telegramTokenEnv, "token")
	t.Setenv(telegramChatEnv, "42")

	cfg := Load("")

	if cfg.LLM.APIKey != "sk-live-123" {
		t.Fatalf("api key not applied")
	}
	if !cfg.Ledger.Enabled() || cfg.Ledger.Driver != "sqlite" {
		t.Fatalf("unexpected ledger config: %+v", cfg.Ledger)
	}
	if !cfg.Notifications.Telegram.Enabled() {
		t.Fatalf("telegram should be enabled")
	}
	if !cfg.Crawl.ResumeEnabled() {
		t.Fatalf("resume should default to enabled")
	}
}

func TestLoadFallsBackOnUnreadableFile(t *testing.T) {
	t.Setenv(llmAPIKeyEnv, "")

	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Source.StartURL != defaultConfig().Source.StartURL {
		t.Fatalf("expected defaults, got %s", cfg.Source.StartURL)
	}
	if cfg.Scheduler.Location() == nil {
		t.Fatalf("location must be bound")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key     string
		wantErr bool
	}{
		{key: "", wantErr: true},
		{key: "sk-xxxxxxxx", wantErr: true},
		{key: "sk-real-key-abc", wantErr: false},
	}
	for _, tc := range cases {
		cfg := defaultConfig()
		cfg.LLM.APIKey = tc.key
		err := cfg.Validate()
		if tc.wantErr && !errors.Is(err, ErrMissingAPIKey) {
			t.Fatalf("key %q: expected ErrMissingAPIKey, got %v", tc.key, err)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("key %q: unexpected error %v", tc.key, err)
		}
	}
}
