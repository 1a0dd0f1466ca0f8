package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"reddit_watcher/internal/model"
	"reddit_watcher/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramSink posts match notifications to a Telegram chat and records the
// resulting message so replies can be correlated back to the match. Delivery
// is queue-backed: Deliver enqueues with a bounded wait and the Run loop
// does the actual sending, decoupling slow sends from ingestion.
type TelegramSink struct {
	api     telegramAPI
	chatID  int64
	store   storage.Storage
	log     *slog.Logger
	queue   chan Payload
	enqueue time.Duration
}

// NewTelegram creates a TelegramSink with the given bot token and chat.
func NewTelegram(token string, chatID int64, store storage.Storage, log *slog.Logger) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newTelegram(api, chatID, store, log), nil
}

func newTelegram(api telegramAPI, chatID int64, store storage.Storage, log *slog.Logger) *TelegramSink {
	return &TelegramSink{
		api:     api,
		chatID:  chatID,
		store:   store,
		log:     log,
		queue:   make(chan Payload, 64),
		enqueue: 2 * time.Second,
	}
}

// Deliver enqueues the payload for posting. It fails when the queue stays
// full for the enqueue timeout instead of blocking the worker.
func (t *TelegramSink) Deliver(ctx context.Context, p Payload) error {
	timer := time.NewTimer(t.enqueue)
	defer timer.Stop()

	select {
	case t.queue <- p:
		return nil
	case <-timer.C:
		t.log.Warn("telegram queue full, dropping notification", "reddit_id", p.SourceID)
		return fmt.Errorf("telegram queue full")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run posts queued notifications and watches incoming updates for replies to
// previously posted messages, blocking until ctx is cancelled.
func (t *TelegramSink) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.api.StopReceivingUpdates()
			return
		case p := <-t.queue:
			t.post(ctx, p)
		case update := <-updates:
			if update.Message != nil {
				t.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (t *TelegramSink) post(ctx context.Context, p Payload) {
	msg := tgbotapi.NewMessage(t.chatID, FormatMessage(p))
	msg.DisableWebPagePreview = true

	sent, err := t.api.Send(msg)
	if err != nil {
		t.log.Error("send notification", "reddit_id", p.SourceID, "error", err)
		return
	}

	rec := &model.OutboundMessage{
		MatchID:   p.MatchID,
		ChannelID: sent.Chat.ID,
		MessageID: int64(sent.MessageID),
	}
	if err := t.store.RecordMessage(ctx, rec); err != nil {
		t.log.Error("record message", "match_id", p.MatchID, "error", err)
	}
}

// handleMessage records replies to notifications this sink posted. Messages
// that are not replies, or reply to something we never posted, are ignored.
func (t *TelegramSink) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.ReplyToMessage == nil || m.Chat == nil || m.Chat.ID != t.chatID || m.From == nil {
		return
	}

	parentID := int64(m.ReplyToMessage.MessageID)
	matchID, err := t.store.FindMatchByMessageID(ctx, parentID)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		t.log.Error("resolve reply parent", "message_id", parentID, "error", err)
		return
	}

	name := m.From.UserName
	if name == "" {
		name = m.From.FirstName
	}
	var url string
	if m.Chat.UserName != "" {
		url = fmt.Sprintf("https://t.me/%s/%d", m.Chat.UserName, m.MessageID)
	}

	reply := &model.Reply{
		MatchID:         matchID,
		ParentMessageID: parentID,
		ChannelID:       m.Chat.ID,
		ReplyMessageID:  int64(m.MessageID),
		AuthorID:        m.From.ID,
		AuthorName:      name,
		Content:         m.Text,
		URL:             url,
	}
	if err := t.store.RecordReply(ctx, reply); err != nil {
		t.log.Error("record reply", "match_id", matchID, "error", err)
	}
}
