// Package model defines the domain types used across the application.
package model

import "time"

// ContentKind distinguishes the two Reddit content streams.
type ContentKind string

// Supported content kinds.
const (
	KindPost    ContentKind = "post"
	KindComment ContentKind = "comment"
)

// Keyword is a tracked keyword. Text is matched case-insensitively and is
// unique across the store.
type Keyword struct {
	ID        int64     `json:"id"`
	Text      string    `json:"keyword"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is a persisted record of one Reddit post or comment that hit the
// active keyword set. SourceID is the Reddit-assigned id and is unique.
type Match struct {
	ID        int64       `json:"id"`
	SourceID  string      `json:"reddit_id"`
	URL       string      `json:"reddit_url"`
	Subreddit string      `json:"subreddit"`
	Kind      ContentKind `json:"kind"`
	Title     string      `json:"title,omitempty"`
	Body      string      `json:"body,omitempty"`
	CreatedAt time.Time   `json:"created_at"`

	// Keywords holds the linked keyword texts when populated by a listing
	// query; it is never written back through this struct.
	Keywords []string `json:"keywords,omitempty"`
}

// OutboundMessage records the notification-channel message created for a
// match, so that later replies can be correlated back to it.
type OutboundMessage struct {
	ID        int64     `json:"id"`
	MatchID   int64     `json:"match_id"`
	ChannelID int64     `json:"channel_id"`
	MessageID int64     `json:"message_id"`
	GuildID   *int64    `json:"guild_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Reply is a downstream reply to a previously posted match notification.
type Reply struct {
	ID              int64     `json:"id"`
	MatchID         int64     `json:"match_id"`
	ParentMessageID int64     `json:"parent_message_id"`
	ChannelID       int64     `json:"channel_id"`
	ReplyMessageID  int64     `json:"reply_message_id"`
	AuthorID        int64     `json:"author_id"`
	AuthorName      string    `json:"author_name"`
	Content         string    `json:"content"`
	URL             string    `json:"url"`
	CreatedAt       time.Time `json:"created_at"`
}

// KeywordStat aggregates per-keyword activity for the dashboard.
type KeywordStat struct {
	Keyword
	MatchCount   int `json:"matches_count"`
	PostCount    int `json:"posts_count"`
	CommentCount int `json:"comments_count"`
	ReplyCount   int `json:"replies_count"`
}
