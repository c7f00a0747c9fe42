package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Bus fans messages out to in-process subscribers. A subscriber whose buffer is full misses
// the message; the outbox remains the source of truth.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	auctionID uuid.UUID
	ch        chan Message
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Subscribe receives messages for auctionID, or for every auction when auctionID is uuid.Nil.
// The returned func unsubscribes and closes the channel.
func (b *Bus) Subscribe(auctionID uuid.UUID, buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscription{auctionID: auctionID, ch: make(chan Message, buffer)}
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

func (b *Bus) Publish(ctx context.Context, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.auctionID != uuid.Nil && sub.auctionID != msg.AuctionID {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			log.Warn().Str("auction_id", msg.AuctionID.String()).Int64("sequence", msg.Sequence).Msg("event bus: subscriber full, dropping")
		}
	}
	return nil
}
