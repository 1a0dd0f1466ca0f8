// Package watcher runs the stream workers and the keyword refresh loop.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"reddit_watcher/internal/matcher"
	"reddit_watcher/internal/model"
	"reddit_watcher/internal/reddit"
	"reddit_watcher/internal/relay"
	"reddit_watcher/internal/storage"
)

// ItemSource produces batches of new upstream items. A call blocks until
// the next poll completes or ctx is cancelled.
type ItemSource interface {
	Next(ctx context.Context) ([]reddit.Item, error)
}

// Policy holds the content filtering rules applied before keyword matching.
type Policy struct {
	ExcludedSubs map[string]struct{}
	AllowNSFW    bool
}

// NewPolicy builds a Policy from the raw exclusion list.
func NewPolicy(excludeSubs []string, allowNSFW bool) Policy {
	excluded := make(map[string]struct{}, len(excludeSubs))
	for _, s := range excludeSubs {
		excluded[strings.ToLower(s)] = struct{}{}
	}
	return Policy{ExcludedSubs: excluded, AllowNSFW: allowNSFW}
}

// drops reports whether policy filtering removes the item before any
// keyword or dedup processing.
func (p Policy) drops(it reddit.Item) bool {
	if _, excluded := p.ExcludedSubs[strings.ToLower(it.Subreddit)]; excluded {
		return true
	}
	return it.Over18 && !p.AllowNSFW
}

// Worker consumes one live content stream, applies filters, deduplicates,
// persists matches, and relays them to the sink.
type Worker struct {
	kind     model.ContentKind
	source   ItemSource
	registry *matcher.Registry
	store    storage.Storage
	sink     relay.Sink
	policy   Policy
	log      *slog.Logger
	backoff  *backoff
}

// NewWorker creates a Worker for one content kind.
func NewWorker(kind model.ContentKind, source ItemSource, registry *matcher.Registry,
	store storage.Storage, sink relay.Sink, policy Policy, log *slog.Logger) *Worker {
	return &Worker{
		kind:     kind,
		source:   source,
		registry: registry,
		store:    store,
		sink:     sink,
		policy:   policy,
		log:      log.With("stream", kind),
		backoff:  newBackoff(),
	}
}

// Run consumes the stream until ctx is cancelled. Transient upstream errors
// trigger backoff and reconnect; an authentication error is fatal and
// returned to the caller.
func (w *Worker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		items, err := w.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, reddit.ErrUnauthorized) {
				w.log.Error("stream authentication failed", "error", err)
				return err
			}
			delay := w.backoff.next()
			w.log.Warn("stream error, backing off", "error", err, "delay", delay)
			if !sleep(ctx, delay) {
				return nil
			}
			continue
		}
		w.backoff.reset()

		for _, it := range items {
			if ctx.Err() != nil {
				return nil
			}
			w.processItem(ctx, it)
		}
	}
}

func (w *Worker) processItem(ctx context.Context, it reddit.Item) {
	if w.policy.drops(it) {
		return
	}

	text := it.Body
	if w.kind == model.KindPost {
		text = it.Title + "\n" + it.Body
	}

	hits := w.registry.MatchHits(text)
	if len(hits) == 0 {
		return
	}

	seen, err := w.store.IsSeen(ctx, it.ID)
	if err != nil {
		w.log.Error("check seen", "reddit_id", it.ID, "error", err)
		return
	}
	if seen {
		return
	}
	if err := w.store.MarkSeen(ctx, it.ID, w.kind); err != nil {
		w.log.Error("mark seen", "reddit_id", it.ID, "error", err)
		return
	}

	match := &model.Match{
		SourceID:  it.ID,
		URL:       it.URL(),
		Subreddit: it.Subreddit,
		Kind:      w.kind,
		Title:     it.Title,
		Body:      it.Body,
	}
	if w.kind == model.KindComment {
		match.Title = ""
	}
	if err := w.store.SaveMatch(ctx, match, hits); err != nil {
		// Already marked seen: the item is skipped for relay and will not be
		// reprocessed.
		w.log.Error("persist match", "reddit_id", it.ID, "error", err)
		return
	}

	payload := relay.Payload{
		MatchID:   match.ID,
		Kind:      w.kind,
		Title:     match.Title,
		Body:      match.Body,
		URL:       match.URL,
		Subreddit: match.Subreddit,
		SourceID:  match.SourceID,
		Keywords:  hits,
	}
	if err := w.sink.Deliver(ctx, payload); err != nil {
		// Delivery failure is swallowed; the match stays processed.
		w.log.Warn("relay delivery failed", "reddit_id", it.ID, "error", err)
	}
}

// sleep waits for d or until ctx is cancelled, reporting whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

