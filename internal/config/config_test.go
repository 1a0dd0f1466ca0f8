package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// clearEnv blanks every variable Load reads so the host environment does not
// leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET", "REDDIT_USER_AGENT",
		"KEYWORDS", "INCLUDE_SUBS", "EXCLUDE_SUBS", "ALLOW_NSFW",
		"DISCORD_WEBHOOK", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID",
		"DATABASE_PATH", "LOG_LEVEL", "CONTROL_ADDR", "API_ADDR",
		"API_BASIC_USER", "API_BASIC_PASS", "POLL_INTERVAL", "REFRESH_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if diff := cmp.Diff([]string{"machine learning", "mlops"}, cfg.Keywords); diff != "" {
		t.Errorf("default keywords mismatch (-want +got):\n%s", diff)
	}
	if cfg.DatabasePath != "./data/watcher.db" {
		t.Errorf("unexpected database path %q", cfg.DatabasePath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("unexpected log level %q", cfg.LogLevel)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("unexpected poll interval %v", cfg.PollInterval)
	}
	if cfg.RefreshInterval != time.Minute {
		t.Errorf("unexpected refresh interval %v", cfg.RefreshInterval)
	}
	if cfg.AllowNSFW {
		t.Error("nsfw must be blocked by default")
	}
	if err := cfg.RequireRedditCredentials(); err == nil {
		t.Error("expected missing credentials to be reported")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDDIT_CLIENT_ID", "id")
	t.Setenv("REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("KEYWORDS", " golang , mlops ,, kubernetes ")
	t.Setenv("INCLUDE_SUBS", "golang,devops")
	t.Setenv("ALLOW_NSFW", "1")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("REFRESH_INTERVAL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := cfg.RequireRedditCredentials(); err != nil {
		t.Errorf("require credentials: %v", err)
	}
	if diff := cmp.Diff([]string{"golang", "mlops", "kubernetes"}, cfg.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
	if !cfg.AllowNSFW {
		t.Error("expected nsfw allowed")
	}
	if cfg.TelegramChatID != -100123 {
		t.Errorf("unexpected chat id %d", cfg.TelegramChatID)
	}
	if cfg.PollInterval != 30*time.Second || cfg.RefreshInterval != 5*time.Minute {
		t.Errorf("unexpected intervals %v / %v", cfg.PollInterval, cfg.RefreshInterval)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad chat id", key: "TELEGRAM_CHAT_ID", value: "not-a-number"},
		{name: "bad poll interval", key: "POLL_INTERVAL", value: "soon"},
		{name: "bad refresh interval", key: "REFRESH_INTERVAL", value: "5 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatal("expected load error")
			}
		})
	}
}

func TestSubredditTarget(t *testing.T) {
	cfg := &Config{}
	if got := cfg.SubredditTarget(); got != "all" {
		t.Errorf("expected all, got %q", got)
	}

	cfg.IncludeSubs = []string{"golang", "devops"}
	if got := cfg.SubredditTarget(); got != "golang+devops" {
		t.Errorf("expected golang+devops, got %q", got)
	}
}

func TestIsExcluded(t *testing.T) {
	cfg := &Config{ExcludeSubs: []string{"Spam", "ads"}}

	if !cfg.IsExcluded("spam") || !cfg.IsExcluded("ADS") {
		t.Error("exclusion must be case-insensitive")
	}
	if cfg.IsExcluded("golang") {
		t.Error("unexpected exclusion")
	}
}
