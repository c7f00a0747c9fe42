package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"auction-backend/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []Message
	fail map[uuid.UUID]bool
}

func (s *recordingSink) Publish(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[msg.AuctionID] {
		return errors.New("sink down")
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
}

func (p *fakePublisher) Publish(subj string, data []byte) error {
	p.subjects = append(p.subjects, subj)
	p.payloads = append(p.payloads, data)
	return nil
}

func setupEventsTest(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.AuctionEvent{}, &domain.DispatchLease{}))
	return db
}

func insertEvents(t *testing.T, db *gorm.DB, auctionID uuid.UUID, n int) {
	for seq := 1; seq <= n; seq++ {
		data, _ := json.Marshal(domain.BidPlacedData{AuctionID: auctionID, Amount: int64(10 + seq)})
		require.NoError(t, db.Create(&domain.AuctionEvent{
			AuctionID: auctionID,
			Sequence:  int64(seq),
			EventType: domain.EventBidPlaced,
			EventData: datatypes.JSON(data),
		}).Error)
	}
}

func pending(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&domain.AuctionEvent{}).Where("dispatched_at IS NULL").Count(&n).Error)
	return n
}

func TestDispatchPending_DeliversInSequenceAndMarks(t *testing.T) {
	db := setupEventsTest(t)
	auction := uuid.New()
	insertEvents(t, db, auction, 3)
	sink := &recordingSink{}
	d := NewDispatcher(db, time.Hour, 10, sink)

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	msgs := sink.Messages()
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Sequence)
		assert.Equal(t, domain.EventBidPlaced, m.Type)
	}
	assert.Zero(t, pending(t, db))

	n, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "delivered rows are not sent twice")
}

func TestDispatchPending_FailureHoldsBackOnlyThatAuction(t *testing.T) {
	db := setupEventsTest(t)
	healthy, broken := uuid.New(), uuid.New()
	insertEvents(t, db, healthy, 2)
	insertEvents(t, db, broken, 2)
	sink := &recordingSink{fail: map[uuid.UUID]bool{broken: true}}
	d := NewDispatcher(db, time.Hour, 10, sink)

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), pending(t, db))

	sink.mu.Lock()
	sink.fail = nil
	sink.mu.Unlock()
	n, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var brokenSeqs []int64
	for _, m := range sink.Messages() {
		if m.AuctionID == broken {
			brokenSeqs = append(brokenSeqs, m.Sequence)
		}
	}
	assert.Equal(t, []int64{1, 2}, brokenSeqs)
}

func TestDispatchPending_RespectsBatch(t *testing.T) {
	db := setupEventsTest(t)
	insertEvents(t, db, uuid.New(), 5)
	d := NewDispatcher(db, time.Hour, 2, &recordingSink{})

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(3), pending(t, db))
}

// blockingSink holds its first Publish until release is closed.
type blockingSink struct {
	recordingSink
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSink) Publish(ctx context.Context, msg Message) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.started)
		<-s.release
	}
	return s.recordingSink.Publish(ctx, msg)
}

func sequences(msgs []Message, auctionID uuid.UUID) []int64 {
	var out []int64
	for _, m := range msgs {
		if m.AuctionID == auctionID {
			out = append(out, m.Sequence)
		}
	}
	return out
}

func TestDispatchPending_SecondDispatcherWaitsForLeasedAuction(t *testing.T) {
	db := setupEventsTest(t)
	busy, other := uuid.New(), uuid.New()
	insertEvents(t, db, busy, 3)

	slow := newBlockingSink()
	first := NewDispatcher(db, time.Hour, 10, slow)
	fast := &recordingSink{}
	second := NewDispatcher(db, time.Hour, 10, fast)

	done := make(chan int, 1)
	go func() {
		n, err := first.DispatchPending(context.Background())
		assert.NoError(t, err)
		done <- n
	}()
	select {
	case <-slow.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first dispatcher never published")
	}

	// seq 4 commits while the first dispatcher is still on seq 1
	data, _ := json.Marshal(domain.BidPlacedData{AuctionID: busy, Amount: 99})
	require.NoError(t, db.Create(&domain.AuctionEvent{
		AuctionID: busy, Sequence: 4, EventType: domain.EventBidPlaced, EventData: datatypes.JSON(data),
	}).Error)
	insertEvents(t, db, other, 1)

	n, err := second.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, sequences(fast.Messages(), busy), "leased auction is left alone")
	assert.Equal(t, []int64{1}, sequences(fast.Messages(), other))

	close(slow.release)
	select {
	case n := <-done:
		assert.Equal(t, 3, n)
	case <-time.After(2 * time.Second):
		t.Fatal("first dispatcher did not finish")
	}
	assert.Equal(t, []int64{1, 2, 3}, sequences(slow.Messages(), busy))

	n, err = second.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{4}, sequences(fast.Messages(), busy))
	assert.Zero(t, pending(t, db))

	var leases int64
	require.NoError(t, db.Model(&domain.DispatchLease{}).Count(&leases).Error)
	assert.Zero(t, leases, "leases are released after each pass")
}

func TestDispatchPending_TakesOverExpiredLease(t *testing.T) {
	db := setupEventsTest(t)
	auction := uuid.New()
	insertEvents(t, db, auction, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&domain.DispatchLease{
		AuctionID: auction, Owner: "crashed", ExpiresAtMs: now.Add(time.Second).UnixMilli(),
	}).Error)

	sink := &recordingSink{}
	d := NewDispatcher(db, time.Hour, 10, sink)
	d.Now = func() time.Time { return now }

	n, err := d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "live lease of another owner is respected")

	d.Now = func() time.Time { return now.Add(2 * time.Second) }
	n, err = d.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, sequences(sink.Messages(), auction))
}

func TestRun_WakesOnNotify(t *testing.T) {
	db := setupEventsTest(t)
	sink := &recordingSink{}
	d := NewDispatcher(db, time.Hour, 10, sink)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	insertEvents(t, db, uuid.New(), 1)
	d.Notify()
	assert.Eventually(t, func() bool { return len(sink.Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestRedisSink_PublishesOnAuctionChannel(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	auction := uuid.New()
	sub := rdb.Subscribe(ctx, RedisChannel(auction))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	sink := &RedisSink{Client: rdb}
	require.NoError(t, sink.Publish(ctx, Message{AuctionID: auction, Sequence: 4, Type: domain.EventAuctionSettled, Data: json.RawMessage(`{}`)}))

	select {
	case got := <-sub.Channel():
		var msg Message
		require.NoError(t, json.Unmarshal([]byte(got.Payload), &msg))
		assert.Equal(t, auction, msg.AuctionID)
		assert.Equal(t, int64(4), msg.Sequence)
		assert.Equal(t, domain.EventAuctionSettled, msg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no message on channel")
	}
}

func TestNATSSink_PublishesOnAuctionSubject(t *testing.T) {
	pub := &fakePublisher{}
	sink := &NATSSink{Conn: pub}
	auction := uuid.New()

	require.NoError(t, sink.Publish(context.Background(), Message{AuctionID: auction, Sequence: 1, Type: domain.EventBidPlaced, Data: json.RawMessage(`{"amount":11}`)}))
	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "auction.events."+auction.String(), pub.subjects[0])
	assert.Contains(t, string(pub.payloads[0]), `"amount":11`)
}

func TestBus_FiltersByAuction(t *testing.T) {
	bus := NewBus()
	a, b := uuid.New(), uuid.New()
	onlyA, cancelA := bus.Subscribe(a, 4)
	all, cancelAll := bus.Subscribe(uuid.Nil, 4)
	defer cancelAll()

	require.NoError(t, bus.Publish(context.Background(), Message{AuctionID: a, Sequence: 1}))
	require.NoError(t, bus.Publish(context.Background(), Message{AuctionID: b, Sequence: 1}))

	assert.Len(t, onlyA, 1)
	assert.Len(t, all, 2)

	cancelA()
	cancelA()
	_, open := <-onlyA
	assert.True(t, open, "buffered message still readable")
	_, open = <-onlyA
	assert.False(t, open)
}
