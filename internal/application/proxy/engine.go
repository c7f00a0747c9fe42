// Package proxy simulates competitive ascending bidding between standing maximum bids.
// It is pure: callers load state, call Resolve, and apply the returned steps themselves.
package proxy

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultIncrement = 1
	DefaultMaxSteps  = 64
)

// ErrStepLimit means resolution did not settle within Config.MaxSteps rounds. Prices strictly
// increase every round, so hitting it points at corrupt input rather than a long contest.
var ErrStepLimit = errors.New("proxy: step limit exceeded")

type Config struct {
	Increment int64
	MaxSteps  int
}

func (c Config) normalized() Config {
	if c.Increment <= 0 {
		c.Increment = DefaultIncrement
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	return c
}

// State is the standing high bid. LeaderID is uuid.Nil before the first bid.
type State struct {
	CurrentBid int64
	LeaderID   uuid.UUID
}

// Proxy is an active standing maximum.
type Proxy struct {
	BidderID     uuid.UUID
	MaxAmount    int64
	RegisteredAt time.Time
}

// Step is one automatic bid to place, in order.
type Step struct {
	BidderID uuid.UUID
	Amount   int64
}

// Resolve returns the automatic bids the proxies produce against state, in the order they
// must be placed. An empty result means no proxy can outbid the leader.
//
// Each round the leader is challenged by the strongest other proxy (highest maximum, then
// earliest registration). The stronger of the two takes the lead at one increment above the
// weaker one's cap, never above its own. A leader without a proxy is capped at the current bid.
func Resolve(state State, proxies []Proxy, cfg Config) ([]Step, error) {
	cfg = cfg.normalized()
	ranked := rank(proxies)

	var steps []Step
	cur := state
	for round := 0; ; round++ {
		challenger := strongestChallenger(ranked, cur)
		if challenger == nil {
			return steps, nil
		}
		if round >= cfg.MaxSteps {
			return steps, ErrStepLimit
		}

		leader := find(ranked, cur.LeaderID)
		leaderCap := cur.CurrentBid
		if leader != nil && leader.MaxAmount > leaderCap {
			leaderCap = leader.MaxAmount
		}

		var next Step
		if leader != nil && stronger(Proxy{BidderID: leader.BidderID, MaxAmount: leaderCap, RegisteredAt: leader.RegisteredAt}, *challenger) {
			next = Step{BidderID: cur.LeaderID, Amount: min64(leaderCap, challenger.MaxAmount+cfg.Increment)}
		} else {
			next = Step{BidderID: challenger.BidderID, Amount: min64(challenger.MaxAmount, leaderCap+cfg.Increment)}
		}
		steps = append(steps, next)
		cur = State{CurrentBid: next.Amount, LeaderID: next.BidderID}
	}
}

// Final returns the leader and price after applying steps to state.
func Final(state State, steps []Step) State {
	if len(steps) == 0 {
		return state
	}
	last := steps[len(steps)-1]
	return State{CurrentBid: last.Amount, LeaderID: last.BidderID}
}

// rank orders proxies strongest first. Equal maximums go to the earlier registration and,
// failing that, the lower bidder id so the order is total.
func rank(proxies []Proxy) []Proxy {
	out := make([]Proxy, len(proxies))
	copy(out, proxies)
	sort.SliceStable(out, func(i, j int) bool {
		return stronger(out[i], out[j])
	})
	return out
}

func stronger(a, b Proxy) bool {
	if a.MaxAmount != b.MaxAmount {
		return a.MaxAmount > b.MaxAmount
	}
	if !a.RegisteredAt.Equal(b.RegisteredAt) {
		return a.RegisteredAt.Before(b.RegisteredAt)
	}
	return a.BidderID.String() < b.BidderID.String()
}

func strongestChallenger(ranked []Proxy, cur State) *Proxy {
	for i := range ranked {
		p := &ranked[i]
		if p.BidderID == cur.LeaderID {
			continue
		}
		if p.MaxAmount > cur.CurrentBid {
			return p
		}
		// ranked is strongest first; nothing weaker can clear the current bid either
		return nil
	}
	return nil
}

func find(ranked []Proxy, bidderID uuid.UUID) *Proxy {
	if bidderID == uuid.Nil {
		return nil
	}
	for i := range ranked {
		if ranked[i].BidderID == bidderID {
			return &ranked[i]
		}
	}
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
