// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"reddit_watcher/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// MatchFilter narrows a match listing query. Zero values mean "no filter".
type MatchFilter struct {
	KeywordID int64
	Keyword   string
	Subreddit string
	Kind      model.ContentKind
	FromTS    int64
	ToTS      int64
	Page      int
	Size      int
}

// Storage is the interface for all persistence operations.
type Storage interface {
	GetOrCreateKeyword(ctx context.Context, text string) (int64, error)
	ListKeywords(ctx context.Context, query string) ([]model.Keyword, error)
	DeleteKeyword(ctx context.Context, id int64) error
	KeywordStats(ctx context.Context) ([]model.KeywordStat, error)

	// SaveMatch upserts a match by its SourceID, links the given keywords to
	// it, and commits both as a single transaction. The match ID is populated
	// with the existing row's id when the source was already recorded.
	SaveMatch(ctx context.Context, m *model.Match, keywords []string) error
	ListMatches(ctx context.Context, f MatchFilter) ([]model.Match, error)

	MarkSeen(ctx context.Context, id string, kind model.ContentKind) error
	IsSeen(ctx context.Context, id string) (bool, error)

	RecordMessage(ctx context.Context, msg *model.OutboundMessage) error
	FindMatchByMessageID(ctx context.Context, messageID int64) (int64, error)
	RecordReply(ctx context.Context, r *model.Reply) error
	ListReplies(ctx context.Context, matchID int64) ([]model.Reply, error)

	Close() error
}
