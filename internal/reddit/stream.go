package reddit

import (
	"context"
	"time"

	"reddit_watcher/internal/model"
)

// ringCapacity bounds the recently-returned id set. It comfortably covers
// the 100-item listing window so overlap between polls is filtered out.
const ringCapacity = 300

// Stream turns repeated listing polls into a sequence of new items for one
// content kind. The upstream listing is at-least-once: items may reappear
// across polls and restarts, so consumers are expected to deduplicate.
type Stream struct {
	client   *Client
	kind     model.ContentKind
	target   string
	interval time.Duration

	recent  map[string]struct{}
	order   []string
	started bool
}

// NewStream creates a Stream over the given subreddit target. The first
// poll only primes the recently-seen set, mirroring a skip-existing
// subscription: items already in the listing at startup are not delivered.
func NewStream(client *Client, kind model.ContentKind, target string, interval time.Duration) *Stream {
	return &Stream{
		client:   client,
		kind:     kind,
		target:   target,
		interval: interval,
		recent:   make(map[string]struct{}, ringCapacity),
	}
}

// Next blocks for the poll interval, fetches the listing, and returns items
// not yet delivered, oldest first. An empty slice means the poll succeeded
// but produced nothing new.
func (s *Stream) Next(ctx context.Context) ([]Item, error) {
	if s.started {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.interval):
		}
	}

	items, err := s.client.Listing(ctx, s.kind, s.target, 100)
	if err != nil {
		return nil, err
	}

	var fresh []Item
	// Listings are newest first; walk backwards so output is oldest first.
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if _, seen := s.recent[it.FullName]; seen {
			continue
		}
		s.remember(it.FullName)
		if s.started {
			fresh = append(fresh, it)
		}
	}
	s.started = true
	return fresh, nil
}

func (s *Stream) remember(fullName string) {
	if len(s.order) >= ringCapacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.recent, oldest)
	}
	s.recent[fullName] = struct{}{}
	s.order = append(s.order, fullName)
}
