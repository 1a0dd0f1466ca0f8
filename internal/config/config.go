// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration shared by all binaries.
type Config struct {
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	Keywords    []string
	IncludeSubs []string
	ExcludeSubs []string
	AllowNSFW   bool

	DiscordWebhook string

	TelegramBotToken string
	TelegramChatID   int64

	DatabasePath string
	LogLevel     string

	ControlAddr string
	APIAddr     string
	APIUser     string
	APIPass     string

	PollInterval    time.Duration
	RefreshInterval time.Duration
}

// Load reads configuration from the environment, loading a .env file first
// if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		RedditUserAgent:    envOrDefault("REDDIT_USER_AGENT", "KeywordWatcher/1.0"),
		Keywords:           splitList(envOrDefault("KEYWORDS", "machine learning,mlops")),
		IncludeSubs:        splitList(os.Getenv("INCLUDE_SUBS")),
		ExcludeSubs:        splitList(os.Getenv("EXCLUDE_SUBS")),
		AllowNSFW:          os.Getenv("ALLOW_NSFW") == "1",
		DiscordWebhook:     os.Getenv("DISCORD_WEBHOOK"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabasePath:       envOrDefault("DATABASE_PATH", "./data/watcher.db"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		ControlAddr:        envOrDefault("CONTROL_ADDR", "127.0.0.1:8787"),
		APIAddr:            envOrDefault("API_ADDR", ":8080"),
		APIUser:            strings.TrimSpace(os.Getenv("API_BASIC_USER")),
		APIPass:            strings.TrimSpace(os.Getenv("API_BASIC_PASS")),
		PollInterval:       10 * time.Second,
		RefreshInterval:    time.Minute,
	}

	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChatID = id
	}

	if raw := os.Getenv("POLL_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_INTERVAL %q: %w", raw, err)
		}
		cfg.PollInterval = d
	}

	if raw := os.Getenv("REFRESH_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_INTERVAL %q: %w", raw, err)
		}
		cfg.RefreshInterval = d
	}

	return cfg, nil
}

// RequireRedditCredentials reports an error when the Reddit API credentials
// are missing. The watcher treats this as fatal at startup.
func (c *Config) RequireRedditCredentials() error {
	if c.RedditClientID == "" || c.RedditClientSecret == "" {
		return fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required")
	}
	return nil
}

// SubredditTarget returns the "+"-joined include list, or "all" when no
// subreddits are configured.
func (c *Config) SubredditTarget() string {
	if len(c.IncludeSubs) == 0 {
		return "all"
	}
	return strings.Join(c.IncludeSubs, "+")
}

// IsExcluded checks whether a subreddit is in the exclusion set,
// case-insensitively.
func (c *Config) IsExcluded(subreddit string) bool {
	for _, s := range c.ExcludeSubs {
		if strings.EqualFold(s, subreddit) {
			return true
		}
	}
	return false
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
