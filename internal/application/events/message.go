// Package events relays committed AuctionEvents outbox rows to subscribers. Delivery is
// at-least-once and in sequence order per auction; consumers dedupe on (auction_id, sequence).
package events

import (
	"context"
	"encoding/json"
	"time"

	"auction-backend/internal/domain"

	"github.com/google/uuid"
)

type Message struct {
	EventID   uuid.UUID       `json:"event_id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	Sequence  int64           `json:"sequence"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Sink is one delivery target. Publish must not retain msg.Data after returning.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
}

func FromEvent(e domain.AuctionEvent) Message {
	return Message{
		EventID:   e.EventID,
		AuctionID: e.AuctionID,
		Sequence:  e.Sequence,
		Type:      e.EventType,
		Data:      json.RawMessage(e.EventData),
		CreatedAt: e.CreatedAt,
	}
}
