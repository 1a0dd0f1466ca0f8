package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"reddit_watcher/internal/model"
	"reddit_watcher/migrations"
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetOrCreateKeyword inserts the keyword if absent and returns the id of the
// existing or new row. Lookup is case-insensitive.
func (s *SQLite) GetOrCreateKeyword(ctx context.Context, text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, fmt.Errorf("keyword is empty")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := getOrCreateKeyword(ctx, tx, text)
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func getOrCreateKeyword(ctx context.Context, tx *sql.Tx, text string) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO keywords (keyword, created_at) VALUES (?, ?)`,
		text, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert keyword: %w", err)
	}
	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM keywords WHERE keyword = ?`, text).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select keyword: %w", err)
	}
	return id, nil
}

// ListKeywords returns keywords, newest first, optionally filtered by a
// substring query.
func (s *SQLite) ListKeywords(ctx context.Context, query string) ([]model.Keyword, error) {
	sqlStr := `SELECT id, keyword, created_at FROM keywords ORDER BY id DESC`
	args := []any{}
	if query != "" {
		sqlStr = `SELECT id, keyword, created_at FROM keywords WHERE keyword LIKE ? ORDER BY id DESC`
		args = append(args, "%"+query+"%")
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keywords []model.Keyword
	for rows.Next() {
		var k model.Keyword
		var created int64
		if err := rows.Scan(&k.ID, &k.Text, &created); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		k.CreatedAt = time.Unix(created, 0).UTC()
		keywords = append(keywords, k)
	}
	return keywords, rows.Err()
}

// DeleteKeyword removes a keyword and its match links. The matches it was
// linked to remain in place.
func (s *SQLite) DeleteKeyword(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM match_keywords WHERE keyword_id = ?`, id); err != nil {
		return fmt.Errorf("delete match links: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// KeywordStats returns per-keyword match, post, comment, and reply counts.
func (s *SQLite) KeywordStats(ctx context.Context) ([]model.KeywordStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT k.id, k.keyword, k.created_at,
		       COUNT(mk.match_id) AS matches_count,
		       COALESCE(SUM(CASE WHEN m.kind = 'post' THEN 1 ELSE 0 END), 0) AS posts_count,
		       COALESCE(SUM(CASE WHEN m.kind = 'comment' THEN 1 ELSE 0 END), 0) AS comments_count,
		       COALESCE((SELECT COUNT(*) FROM replies r
		                 JOIN match_keywords mk2 ON mk2.match_id = r.match_id
		                 WHERE mk2.keyword_id = k.id), 0) AS replies_count
		FROM keywords k
		LEFT JOIN match_keywords mk ON mk.keyword_id = k.id
		LEFT JOIN matches m ON m.id = mk.match_id
		GROUP BY k.id
		ORDER BY k.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query keyword stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []model.KeywordStat
	for rows.Next() {
		var st model.KeywordStat
		var created int64
		err := rows.Scan(&st.ID, &st.Text, &created,
			&st.MatchCount, &st.PostCount, &st.CommentCount, &st.ReplyCount)
		if err != nil {
			return nil, fmt.Errorf("scan keyword stat: %w", err)
		}
		st.CreatedAt = time.Unix(created, 0).UTC()
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// SaveMatch upserts the match by reddit id and links the keywords to it,
// committing both as one transaction. Re-saving the same reddit id resolves
// to the existing row and duplicate links are no-ops.
func (s *SQLite) SaveMatch(ctx context.Context, m *model.Match, keywords []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO matches (reddit_id, reddit_url, subreddit, kind, title, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.SourceID, m.URL, m.Subreddit, string(m.Kind), nullable(m.Title), nullable(m.Body), now,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	var created int64
	err = tx.QueryRowContext(ctx,
		`SELECT id, created_at FROM matches WHERE reddit_id = ?`, m.SourceID,
	).Scan(&m.ID, &created)
	if err != nil {
		return fmt.Errorf("select match: %w", err)
	}
	m.CreatedAt = time.Unix(created, 0).UTC()

	for _, kw := range keywords {
		kid, err := getOrCreateKeyword(ctx, tx, kw)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO match_keywords (match_id, keyword_id) VALUES (?, ?)`,
			m.ID, kid,
		)
		if err != nil {
			return fmt.Errorf("link keyword: %w", err)
		}
	}
	return tx.Commit()
}

// ListMatches returns matches newest first with their linked keywords,
// narrowed by the given filter.
func (s *SQLite) ListMatches(ctx context.Context, f MatchFilter) ([]model.Match, error) {
	var where []string
	var args []any

	if f.KeywordID != 0 {
		where = append(where, `m.id IN (SELECT match_id FROM match_keywords WHERE keyword_id = ?)`)
		args = append(args, f.KeywordID)
	} else if f.Keyword != "" {
		where = append(where, `m.id IN (SELECT mk2.match_id FROM match_keywords mk2
			JOIN keywords k2 ON k2.id = mk2.keyword_id WHERE k2.keyword = ?)`)
		args = append(args, f.Keyword)
	}
	if f.Subreddit != "" {
		where = append(where, `m.subreddit = ?`)
		args = append(args, f.Subreddit)
	}
	if f.Kind != "" {
		where = append(where, `m.kind = ?`)
		args = append(args, string(f.Kind))
	}
	if f.FromTS != 0 {
		where = append(where, `m.created_at >= ?`)
		args = append(args, f.FromTS)
	}
	if f.ToTS != 0 {
		where = append(where, `m.created_at <= ?`)
		args = append(args, f.ToTS)
	}

	sqlStr := `SELECT m.id, m.reddit_id, m.reddit_url, m.subreddit, m.kind, m.title, m.body, m.created_at,
		COALESCE(GROUP_CONCAT(k.keyword), '') AS keywords
		FROM matches m
		LEFT JOIN match_keywords mk ON mk.match_id = m.id
		LEFT JOIN keywords k ON k.id = mk.keyword_id`
	if len(where) > 0 {
		sqlStr += "\nWHERE " + strings.Join(where, " AND ")
	}
	sqlStr += "\nGROUP BY m.id ORDER BY m.created_at DESC, m.id DESC"

	size := f.Size
	if size <= 0 {
		size = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	sqlStr += "\nLIMIT ? OFFSET ?"
	args = append(args, size, (page-1)*size)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []model.Match
	for rows.Next() {
		var m model.Match
		var kind, kwCSV string
		var title, body sql.NullString
		var created int64
		err := rows.Scan(&m.ID, &m.SourceID, &m.URL, &m.Subreddit, &kind, &title, &body, &created, &kwCSV)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Kind = model.ContentKind(kind)
		m.Title = title.String
		m.Body = body.String
		m.CreatedAt = time.Unix(created, 0).UTC()
		if kwCSV != "" {
			m.Keywords = strings.Split(kwCSV, ",")
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// MarkSeen records that a content id has been processed. Duplicate calls are
// no-ops.
func (s *SQLite) MarkSeen(ctx context.Context, id string, kind model.ContentKind) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen (id, kind, ts) VALUES (?, ?, ?)`,
		id, string(kind), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// IsSeen checks whether a content id has already been processed.
func (s *SQLite) IsSeen(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM seen WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return true, nil
}

// RecordMessage inserts an outbound notification message row and populates
// its ID and CreatedAt.
func (s *SQLite) RecordMessage(ctx context.Context, msg *model.OutboundMessage) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (match_id, channel_id, message_id, guild_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.MatchID, msg.ChannelID, msg.MessageID, msg.GuildID, now,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = time.Unix(now, 0).UTC()
	return nil
}

// FindMatchByMessageID resolves the match that a notification message was
// posted for. Returns ErrNotFound when the message is unknown.
func (s *SQLite) FindMatchByMessageID(ctx context.Context, messageID int64) (int64, error) {
	var matchID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT match_id FROM messages WHERE message_id = ?`, messageID,
	).Scan(&matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find match by message: %w", err)
	}
	return matchID, nil
}

// RecordReply inserts a reply row and populates its ID and CreatedAt.
func (s *SQLite) RecordReply(ctx context.Context, r *model.Reply) error {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO replies (match_id, parent_message_id, channel_id, reply_message_id,
		                      author_id, author_name, content, url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.MatchID, r.ParentMessageID, r.ChannelID, r.ReplyMessageID,
		r.AuthorID, r.AuthorName, r.Content, r.URL, now,
	)
	if err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = time.Unix(now, 0).UTC()
	return nil
}

// ListReplies returns the replies recorded for a match, newest first.
func (s *SQLite) ListReplies(ctx context.Context, matchID int64) ([]model.Reply, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, match_id, parent_message_id, channel_id, reply_message_id,
		        author_id, author_name, content, url, created_at
		 FROM replies WHERE match_id = ? ORDER BY created_at DESC, id DESC`, matchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var replies []model.Reply
	for rows.Next() {
		var r model.Reply
		var created int64
		err := rows.Scan(&r.ID, &r.MatchID, &r.ParentMessageID, &r.ChannelID, &r.ReplyMessageID,
			&r.AuthorID, &r.AuthorName, &r.Content, &r.URL, &created)
		if err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		replies = append(replies, r)
	}
	return replies, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
