// Package relay defines the delivery contract for match notifications and
// its sink implementations.
package relay

import (
	"context"
	"log/slog"
	"strings"

	"reddit_watcher/internal/model"
)

// Payload is the structured match record handed to a sink. MatchID refers
// to the persisted match row; all other fields describe the Reddit content.
type Payload struct {
	MatchID   int64
	Kind      model.ContentKind
	Title     string
	Body      string
	URL       string
	Subreddit string
	SourceID  string
	Keywords  []string
}

// Sink delivers match notifications. Implementations must bound their own
// blocking: a slow or failing downstream returns an error instead of
// stalling the caller, and the caller never retries.
type Sink interface {
	Deliver(ctx context.Context, p Payload) error
}

// FormatMessage renders a payload as the notification message body.
func FormatMessage(p Payload) string {
	text := p.Title
	if text == "" {
		text = p.Body
	}
	if len(text) > 200 {
		text = text[:200] + "..."
	}

	var b strings.Builder
	b.WriteString("[" + strings.ToUpper(string(p.Kind)) + "] r/" + p.Subreddit)
	if len(p.Keywords) > 0 {
		b.WriteString(" | " + strings.Join(p.Keywords, ", "))
	}
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(p.URL)
	return b.String()
}

// LogSink writes notifications to the log only. It is the fallback path of
// the other sinks and the default when no downstream is configured.
type LogSink struct {
	Log *slog.Logger
}

// Deliver logs the match and always succeeds.
func (s LogSink) Deliver(_ context.Context, p Payload) error {
	s.Log.Info("match",
		"kind", p.Kind,
		"subreddit", p.Subreddit,
		"reddit_id", p.SourceID,
		"keywords", strings.Join(p.Keywords, ","),
		"url", p.URL,
	)
	return nil
}
