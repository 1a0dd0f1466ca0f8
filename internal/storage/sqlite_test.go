package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reddit_watcher/internal/model"
)

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetOrCreateKeyword(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	id, err := s.GetOrCreateKeyword(ctx, "mlops")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	// Same keyword, different case: same row.
	again, err := s.GetOrCreateKeyword(ctx, "MLOps")
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if diff := cmp.Diff(id, again); diff != "" {
		t.Errorf("keyword id mismatch (-want +got):\n%s", diff)
	}

	keywords, err := s.ListKeywords(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keywords) != 1 {
		t.Fatalf("expected 1 keyword, got %d", len(keywords))
	}
}

func TestListKeywordsQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	for _, kw := range []string{"mlops", "machine learning", "golang"} {
		if _, err := s.GetOrCreateKeyword(ctx, kw); err != nil {
			t.Fatalf("create %q: %v", kw, err)
		}
	}

	got, err := s.ListKeywords(ctx, "ml")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var texts []string
	for _, k := range got {
		texts = append(texts, k.Text)
	}
	if diff := cmp.Diff([]string{"mlops"}, texts); diff != "" {
		t.Errorf("filtered keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveMatchIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	m := model.Match{
		SourceID:  "abc123",
		URL:       "https://www.reddit.com/r/test/abc123",
		Subreddit: "test",
		Kind:      model.KindPost,
		Title:     "New MLOps tool",
	}
	if err := s.SaveMatch(ctx, &m, []string{"mlops"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("expected non-zero match id")
	}

	second := model.Match{
		SourceID:  "abc123",
		URL:       m.URL,
		Subreddit: m.Subreddit,
		Kind:      model.KindPost,
		Title:     m.Title,
	}
	if err := s.SaveMatch(ctx, &second, []string{"mlops"}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if diff := cmp.Diff(m.ID, second.ID); diff != "" {
		t.Errorf("match id mismatch (-want +got):\n%s", diff)
	}

	matches, err := s.ListMatches(ctx, MatchFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if diff := cmp.Diff([]string{"mlops"}, matches[0].Keywords); diff != "" {
		t.Errorf("linked keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveMatchLinksMultipleKeywords(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	m := model.Match{
		SourceID:  "def456",
		URL:       "https://www.reddit.com/r/test/def456",
		Subreddit: "test",
		Kind:      model.KindComment,
		Body:      "mlops with kubernetes",
	}
	if err := s.SaveMatch(ctx, &m, []string{"mlops", "kubernetes"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	matches, err := s.ListMatches(ctx, MatchFilter{Keyword: "kubernetes"})
	if err != nil {
		t.Fatalf("list by keyword: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if len(matches[0].Keywords) != 2 {
		t.Errorf("expected 2 linked keywords, got %v", matches[0].Keywords)
	}
}

func TestDeleteKeywordCascadesLinksOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	m := model.Match{
		SourceID:  "ghi789",
		URL:       "https://www.reddit.com/r/test/ghi789",
		Subreddit: "test",
		Kind:      model.KindPost,
		Title:     "mlops post",
	}
	if err := s.SaveMatch(ctx, &m, []string{"mlops"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	keywords, err := s.ListKeywords(ctx, "")
	if err != nil {
		t.Fatalf("list keywords: %v", err)
	}
	if err := s.DeleteKeyword(ctx, keywords[0].ID); err != nil {
		t.Fatalf("delete keyword: %v", err)
	}

	// The match survives, without the link.
	matches, err := s.ListMatches(ctx, MatchFilter{})
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected match to survive keyword deletion, got %d matches", len(matches))
	}
	if matches[0].Keywords != nil {
		t.Errorf("expected no linked keywords, got %v", matches[0].Keywords)
	}

	// Deleting again reports not found.
	err = s.DeleteKeyword(ctx, keywords[0].ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListMatchesFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	post := model.Match{SourceID: "p1", URL: "u1", Subreddit: "golang", Kind: model.KindPost, Title: "go post"}
	if err := s.SaveMatch(ctx, &post, []string{"golang"}); err != nil {
		t.Fatalf("save post: %v", err)
	}
	comment := model.Match{SourceID: "c1", URL: "u2", Subreddit: "devops", Kind: model.KindComment, Body: "mlops comment"}
	if err := s.SaveMatch(ctx, &comment, []string{"mlops"}); err != nil {
		t.Fatalf("save comment: %v", err)
	}

	tests := []struct {
		name    string
		filter  MatchFilter
		wantIDs []string
	}{
		{name: "all", filter: MatchFilter{}, wantIDs: []string{"p1", "c1"}},
		{name: "by kind", filter: MatchFilter{Kind: model.KindComment}, wantIDs: []string{"c1"}},
		{name: "by subreddit", filter: MatchFilter{Subreddit: "golang"}, wantIDs: []string{"p1"}},
		{name: "by keyword", filter: MatchFilter{Keyword: "mlops"}, wantIDs: []string{"c1"}},
		{name: "no results", filter: MatchFilter{Subreddit: "rust"}, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListMatches(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			var ids []string
			for _, m := range got {
				ids = append(ids, m.SourceID)
			}
			// Both rows can share a created_at second, so compare as a set.
			if len(ids) != len(tt.wantIDs) {
				t.Fatalf("expected %d matches, got %v", len(tt.wantIDs), ids)
			}
			seen := make(map[string]bool, len(ids))
			for _, id := range ids {
				seen[id] = true
			}
			for _, want := range tt.wantIDs {
				if !seen[want] {
					t.Errorf("expected match %q in %v", want, ids)
				}
			}
		})
	}
}

func TestSeenMonotonic(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	seen, err := s.IsSeen(ctx, "abc123")
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if seen {
		t.Fatal("expected id to be unseen")
	}

	if err := s.MarkSeen(ctx, "abc123", model.KindPost); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	// Duplicate insert is a no-op.
	if err := s.MarkSeen(ctx, "abc123", model.KindPost); err != nil {
		t.Fatalf("mark seen duplicate: %v", err)
	}

	seen, err = s.IsSeen(ctx, "abc123")
	if err != nil {
		t.Fatalf("is seen after mark: %v", err)
	}
	if !seen {
		t.Fatal("expected id to be seen")
	}
}

func TestMessagesAndReplies(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	m := model.Match{SourceID: "abc123", URL: "u", Subreddit: "test", Kind: model.KindPost, Title: "t"}
	if err := s.SaveMatch(ctx, &m, []string{"mlops"}); err != nil {
		t.Fatalf("save match: %v", err)
	}

	msg := model.OutboundMessage{MatchID: m.ID, ChannelID: 42, MessageID: 1001}
	if err := s.RecordMessage(ctx, &msg); err != nil {
		t.Fatalf("record message: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("expected non-zero message id")
	}

	matchID, err := s.FindMatchByMessageID(ctx, 1001)
	if err != nil {
		t.Fatalf("find match: %v", err)
	}
	if diff := cmp.Diff(m.ID, matchID); diff != "" {
		t.Errorf("match id mismatch (-want +got):\n%s", diff)
	}

	_, err = s.FindMatchByMessageID(ctx, 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown message, got %v", err)
	}

	reply := model.Reply{
		MatchID:         m.ID,
		ParentMessageID: 1001,
		ChannelID:       42,
		ReplyMessageID:  1002,
		AuthorID:        7,
		AuthorName:      "alice",
		Content:         "interesting",
		URL:             "https://t.me/c/42/1002",
	}
	if err := s.RecordReply(ctx, &reply); err != nil {
		t.Fatalf("record reply: %v", err)
	}

	replies, err := s.ListReplies(ctx, m.ID)
	if err != nil {
		t.Fatalf("list replies: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(replies))
	}
	if diff := cmp.Diff("alice", replies[0].AuthorName); diff != "" {
		t.Errorf("author mismatch (-want +got):\n%s", diff)
	}

	// Duplicate downstream message ids violate uniqueness.
	dup := model.OutboundMessage{MatchID: m.ID, ChannelID: 42, MessageID: 1001}
	if err := s.RecordMessage(ctx, &dup); err == nil {
		t.Error("expected duplicate message_id to fail")
	}
}

func TestKeywordStats(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	post := model.Match{SourceID: "p1", URL: "u1", Subreddit: "test", Kind: model.KindPost, Title: "mlops post"}
	if err := s.SaveMatch(ctx, &post, []string{"mlops"}); err != nil {
		t.Fatalf("save post: %v", err)
	}
	comment := model.Match{SourceID: "c1", URL: "u2", Subreddit: "test", Kind: model.KindComment, Body: "mlops comment"}
	if err := s.SaveMatch(ctx, &comment, []string{"mlops"}); err != nil {
		t.Fatalf("save comment: %v", err)
	}

	msg := model.OutboundMessage{MatchID: post.ID, ChannelID: 1, MessageID: 500}
	if err := s.RecordMessage(ctx, &msg); err != nil {
		t.Fatalf("record message: %v", err)
	}
	reply := model.Reply{MatchID: post.ID, ParentMessageID: 500, ChannelID: 1, ReplyMessageID: 501, AuthorID: 1, AuthorName: "bob"}
	if err := s.RecordReply(ctx, &reply); err != nil {
		t.Fatalf("record reply: %v", err)
	}

	stats, err := s.KeywordStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 stat row, got %d", len(stats))
	}
	st := stats[0]
	if st.Text != "mlops" || st.MatchCount != 2 || st.PostCount != 1 || st.CommentCount != 1 || st.ReplyCount != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

// Ensure the Storage interface is satisfied.
var _ Storage = (*SQLite)(nil)
