package app

import (
	"errors"
	"sync"

	"quiz-results-service/internal/domain"
)

// ErrNoBroker is returned when live subscriptions are requested but the
// service was built without a broker.
var ErrNoBroker = errors.New("ranking broker not configured")

// RankingBroker fans leaderboard snapshots out to live subscribers.
type RankingBroker struct {
	mu          sync.Mutex
	subscribers map[chan []domain.RankingEntry]struct{}
}

func NewRankingBroker() *RankingBroker {
	return &RankingBroker{
		subscribers: make(map[chan []domain.RankingEntry]struct{}),
	}
}

// Subscribe registers a listener and queues the initial snapshot. The
// caller must invoke the returned cancel function to avoid leaks.
func (b *RankingBroker) Subscribe(initial []domain.RankingEntry) (<-chan []domain.RankingEntry, func()) {
	ch := make(chan []domain.RankingEntry, 8)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	ch <- initial

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// HasSubscribers lets writers skip building a snapshot nobody is watching.
func (b *RankingBroker) HasSubscribers() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers) > 0
}

// Publish delivers a snapshot to every subscriber. Slow consumers have
// their stale frame dropped so a single blocked client cannot stall the
// broadcast.
func (b *RankingBroker) Publish(entries []domain.RankingEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- entries:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- entries
		}
	}
}
