package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisChannelPrefix is followed by the auction id.
const RedisChannelPrefix = "auction_events:"

// RedisSink publishes each message on the auction's Pub/Sub channel.
type RedisSink struct {
	Client *redis.Client
}

func RedisChannel(auctionID uuid.UUID) string {
	return RedisChannelPrefix + auctionID.String()
}

func (s *RedisSink) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.Client.Publish(ctx, RedisChannel(msg.AuctionID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
