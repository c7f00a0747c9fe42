package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSubjectPrefix is followed by the auction id; subscribe to "auction.events.*" for all.
const NATSSubjectPrefix = "auction.events."

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	Publish(subj string, data []byte) error
}

type NATSSink struct {
	Conn Publisher
}

// ConnectNATS dials the server with reconnects enabled.
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("auction-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (s *NATSSink) Publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.Conn.Publish(NATSSubjectPrefix+msg.AuctionID.String(), payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
