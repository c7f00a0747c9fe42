package proxy

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func proxyAt(id uuid.UUID, max int64, offset time.Duration) Proxy {
	return Proxy{BidderID: id, MaxAmount: max, RegisteredAt: t0.Add(offset)}
}

func TestResolve_NoProxies(t *testing.T) {
	steps, err := Resolve(State{CurrentBid: 10}, nil, Config{})
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestResolve_ProxiesBelowCurrentBidAreIgnored(t *testing.T) {
	leader := uuid.New()
	steps, err := Resolve(State{CurrentBid: 80, LeaderID: leader}, []Proxy{
		proxyAt(uuid.New(), 50, 0),
		proxyAt(uuid.New(), 80, time.Second),
	}, Config{})
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestResolve_ScenarioManualThenProxy(t *testing.T) {
	x, y := uuid.New(), uuid.New()

	// X registers max 50 on a fresh auction starting at 10.
	steps, err := Resolve(State{CurrentBid: 10}, []Proxy{proxyAt(x, 50, 0)}, Config{})
	require.NoError(t, err)
	assert.Equal(t, []Step{{BidderID: x, Amount: 11}}, steps)

	// Y bids 20 manually; X answers one increment above.
	steps, err = Resolve(State{CurrentBid: 20, LeaderID: y}, []Proxy{proxyAt(x, 50, 0)}, Config{})
	require.NoError(t, err)
	assert.Equal(t, []Step{{BidderID: x, Amount: 21}}, steps)

	// Y registers max 100; X is exhausted at 50 and Y leads at 51.
	steps, err = Resolve(State{CurrentBid: 21, LeaderID: x}, []Proxy{
		proxyAt(x, 50, 0),
		proxyAt(y, 100, time.Minute),
	}, Config{})
	require.NoError(t, err)
	assert.Equal(t, []Step{{BidderID: y, Amount: 51}}, steps)
}

func TestResolve_CappedLeaderHolds(t *testing.T) {
	l, r := uuid.New(), uuid.New()
	steps, err := Resolve(State{CurrentBid: 100, LeaderID: l}, []Proxy{
		proxyAt(l, 150, 0),
		proxyAt(r, 120, time.Second),
	}, Config{})
	require.NoError(t, err)
	assert.Equal(t, []Step{{BidderID: l, Amount: 121}}, steps)
}

func TestResolve_ManualLeaderWithExhaustedProxyIsUncapped(t *testing.T) {
	l, r := uuid.New(), uuid.New()
	steps, err := Resolve(State{CurrentBid: 60, LeaderID: l}, []Proxy{
		proxyAt(l, 40, 0),
		proxyAt(r, 90, time.Second),
	}, Config{})
	require.NoError(t, err)
	assert.Equal(t, []Step{{BidderID: r, Amount: 61}}, steps)
}

func TestResolve_TieGoesToEarliestRegistration(t *testing.T) {
	early, late := uuid.New(), uuid.New()

	t.Run("leader registered first keeps the lead at its max", func(t *testing.T) {
		steps, err := Resolve(State{CurrentBid: 50, LeaderID: early}, []Proxy{
			proxyAt(early, 100, 0),
			proxyAt(late, 100, time.Second),
		}, Config{})
		require.NoError(t, err)
		assert.Equal(t, []Step{{BidderID: early, Amount: 100}}, steps)
	})

	t.Run("challenger registered first takes the lead at its max", func(t *testing.T) {
		steps, err := Resolve(State{CurrentBid: 50, LeaderID: late}, []Proxy{
			proxyAt(early, 100, 0),
			proxyAt(late, 100, time.Second),
		}, Config{})
		require.NoError(t, err)
		assert.Equal(t, []Step{{BidderID: early, Amount: 100}}, steps)
	})

	t.Run("two challengers with the same max", func(t *testing.T) {
		manual := uuid.New()
		steps, err := Resolve(State{CurrentBid: 10, LeaderID: manual}, []Proxy{
			proxyAt(late, 70, time.Second),
			proxyAt(early, 70, 0),
		}, Config{})
		require.NoError(t, err)
		require.NotEmpty(t, steps)
		assert.Equal(t, State{CurrentBid: 70, LeaderID: early}, Final(State{}, steps))
	})
}

func TestResolve_AllAtOnce(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	steps, err := Resolve(State{CurrentBid: 10}, []Proxy{
		proxyAt(a, 100, 0),
		proxyAt(b, 150, time.Second),
		proxyAt(c, 120, 2*time.Second),
	}, Config{Increment: 1})
	require.NoError(t, err)
	assert.Equal(t, []Step{
		{BidderID: b, Amount: 11},
		{BidderID: b, Amount: 121},
	}, steps)
}

func TestResolve_DeterministicAcrossSubmissionOrder(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	maxes := map[uuid.UUID]int64{a: 100, b: 150, c: 120}
	orders := [][]uuid.UUID{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}

	for _, order := range orders {
		state := State{CurrentBid: 10}
		var registered []Proxy
		for i, id := range order {
			registered = append(registered, proxyAt(id, maxes[id], time.Duration(i)*time.Second))
			steps, err := Resolve(state, registered, Config{Increment: 1})
			require.NoError(t, err)
			state = Final(state, steps)
		}
		assert.Equal(t, State{CurrentBid: 121, LeaderID: b}, state)
	}
}

func TestResolve_CustomIncrement(t *testing.T) {
	x, y := uuid.New(), uuid.New()
	steps, err := Resolve(State{CurrentBid: 20, LeaderID: y}, []Proxy{proxyAt(x, 22, 0)}, Config{Increment: 5})
	require.NoError(t, err)
	// Capped at the proxy's own maximum.
	assert.Equal(t, []Step{{BidderID: x, Amount: 22}}, steps)
}

func TestResolve_PricesStrictlyIncrease(t *testing.T) {
	var proxies []Proxy
	for i := 0; i < 10; i++ {
		proxies = append(proxies, proxyAt(uuid.New(), int64(100+i*7), time.Duration(i)*time.Second))
	}
	steps, err := Resolve(State{CurrentBid: 10}, proxies, Config{})
	require.NoError(t, err)
	prev := int64(10)
	for _, s := range steps {
		assert.Greater(t, s.Amount, prev)
		prev = s.Amount
	}
}

func TestResolve_StepLimit(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	steps, err := Resolve(State{CurrentBid: 10}, []Proxy{
		proxyAt(a, 100, 0),
		proxyAt(b, 150, time.Second),
	}, Config{MaxSteps: 1})
	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Len(t, steps, 1)
}
