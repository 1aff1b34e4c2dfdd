package auctiontimer

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mcdev12/gavel/internal/keymutex"
	"github.com/mcdev12/gavel/internal/models"
	"github.com/mcdev12/gavel/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type endEvent struct {
	itemID    string
	winner    *string
	finalBid  int64
	timestamp int64
}

type extendEvent struct {
	itemID           string
	newEndTime       int64
	extensionSeconds int
}

type countdownEvent struct {
	itemID        string
	timeRemaining int64
	serverTime    int64
}

// recorder captures broadcasts for assertions.
type recorder struct {
	mu         sync.Mutex
	ends       []endEvent
	extensions []extendEvent
	countdowns []countdownEvent
}

func (r *recorder) BroadcastAuctionEnd(itemID string, winner *string, finalBid int64, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ends = append(r.ends, endEvent{itemID, winner, finalBid, timestamp})
}

func (r *recorder) BroadcastAuctionExtended(itemID string, newEndTime int64, extensionSeconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extensions = append(r.extensions, extendEvent{itemID, newEndTime, extensionSeconds})
}

func (r *recorder) BroadcastCountdown(itemID string, timeRemaining int64, serverTime int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countdowns = append(r.countdowns, countdownEvent{itemID, timeRemaining, serverTime})
}

func (r *recorder) endCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ends)
}

func (r *recorder) lastEnd() endEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ends[len(r.ends)-1]
}

func (r *recorder) extensionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.extensions)
}

func (r *recorder) countdownSnapshot() []countdownEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]countdownEvent, len(r.countdowns))
	copy(out, r.countdowns)
	return out
}

func newTestTimer(t *testing.T) (*Service, *store.Store, *recorder, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	st := store.NewStore(clock)
	rec := &recorder{}
	svc := NewService(st, rec, keymutex.New(), clock)
	t.Cleanup(svc.Shutdown)
	return svc, st, rec, clock
}

func createAuction(t *testing.T, st *store.Store, clock clockwork.Clock, id string, bidder *string, currentBid int64, endsIn time.Duration) int64 {
	t.Helper()

	endTime := clock.Now().Add(endsIn).UnixMilli()
	_, err := st.CreateAuction(&models.Auction{
		ID:            id,
		Title:         "Test Lot",
		StartingPrice: 100,
		CurrentBid:    currentBid,
		CurrentBidder: bidder,
		EndTime:       endTime,
		Status:        models.AuctionStatusActive,
	})
	require.NoError(t, err)
	return endTime
}

// advanceUntil steps the fake clock one second per poll until cond holds.
// Stepping inside the poll avoids racing goroutine timer registration.
func advanceUntil(t *testing.T, clock *clockwork.FakeClock, cond func() bool) {
	t.Helper()

	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		clock.Advance(time.Second)
		return cond()
	}, 5*time.Second, 5*time.Millisecond)
}

func TestEndTimer_FiresAtDeadline(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	winner := "user_a"
	endTime := createAuction(t, st, clock, "item_1", &winner, 250, 5*time.Second)

	svc.StartTimer("item_1", endTime)

	advanceUntil(t, clock, func() bool { return rec.endCount() == 1 })

	end := rec.lastEnd()
	require.Equal(t, "item_1", end.itemID)
	require.Equal(t, "user_a", *end.winner)
	require.Equal(t, int64(250), end.finalBid)
	require.GreaterOrEqual(t, end.timestamp, endTime)

	auction, err := st.GetAuction("item_1")
	require.NoError(t, err)
	require.Equal(t, models.AuctionStatusEnded, auction.Status)
	require.Equal(t, end.timestamp, auction.EndedAt)
}

func TestEndTimer_NoBidsEndsWithNilWinner(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	endTime := createAuction(t, st, clock, "item_1", nil, 100, 3*time.Second)

	svc.StartTimer("item_1", endTime)

	advanceUntil(t, clock, func() bool { return rec.endCount() == 1 })

	end := rec.lastEnd()
	require.Nil(t, end.winner)
	require.Equal(t, int64(100), end.finalBid)
}

func TestStartTimer_PastDueEndsImmediately(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	createAuction(t, st, clock, "item_1", nil, 100, -time.Second)

	svc.StartTimer("item_1", clock.Now().Add(-time.Second).UnixMilli())

	require.Equal(t, 1, rec.endCount())
	auction, err := st.GetAuction("item_1")
	require.NoError(t, err)
	require.Equal(t, models.AuctionStatusEnded, auction.Status)
}

func TestEndAuction_Idempotent(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	createAuction(t, st, clock, "item_1", nil, 100, -time.Second)

	svc.EndAuction("item_1")
	svc.EndAuction("item_1")

	require.Equal(t, 1, rec.endCount())
}

func TestEndAuction_MissingAuctionIsNoop(t *testing.T) {
	svc, _, rec, _ := newTestTimer(t)

	svc.EndAuction("missing")
	require.Zero(t, rec.endCount())
}

func TestCancelTimer_PreventsEnd(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	endTime := createAuction(t, st, clock, "item_1", nil, 100, 5*time.Second)

	svc.StartTimer("item_1", endTime)
	svc.CancelTimer("item_1")

	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
	}
	time.Sleep(50 * time.Millisecond)

	require.Zero(t, rec.endCount())
	auction, err := st.GetAuction("item_1")
	require.NoError(t, err)
	require.Equal(t, models.AuctionStatusActive, auction.Status)
}

func TestExtendIfNeeded_InsideWindow(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	endTime := createAuction(t, st, clock, "item_1", nil, 100, 10*time.Second)

	svc.StartTimer("item_1", endTime)

	require.True(t, svc.ExtendIfNeeded("item_1"))
	require.Equal(t, 1, rec.extensionCount())

	auction, err := st.GetAuction("item_1")
	require.NoError(t, err)
	newEndTime := endTime + (30 * time.Second).Milliseconds()
	require.Equal(t, newEndTime, auction.EndTime)

	// The superseded timer must not end the auction at the original deadline;
	// only the rescheduled one may, at or after the pushed-out time.
	advanceUntil(t, clock, func() bool { return rec.endCount() == 1 })
	require.GreaterOrEqual(t, rec.lastEnd().timestamp, newEndTime)
}

func TestExtendIfNeeded_OutsideWindow(t *testing.T) {
	svc, st, _, clock := newTestTimer(t)
	endTime := createAuction(t, st, clock, "item_1", nil, 100, 5*time.Minute)

	svc.StartTimer("item_1", endTime)

	require.False(t, svc.ExtendIfNeeded("item_1"))

	auction, err := st.GetAuction("item_1")
	require.NoError(t, err)
	require.Equal(t, endTime, auction.EndTime)
}

func TestExtendIfNeeded_SecondCallOutsideWindow(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	endTime := createAuction(t, st, clock, "item_1", nil, 100, 10*time.Second)

	svc.StartTimer("item_1", endTime)

	require.True(t, svc.ExtendIfNeeded("item_1"))
	// 40s now remain, which is beyond the snipe window.
	require.False(t, svc.ExtendIfNeeded("item_1"))
	require.Equal(t, 1, rec.extensionCount())
}

func TestExtendIfNeeded_EndedAuction(t *testing.T) {
	svc, st, _, clock := newTestTimer(t)
	createAuction(t, st, clock, "item_1", nil, 100, -time.Second)
	svc.EndAuction("item_1")

	require.False(t, svc.ExtendIfNeeded("item_1"))
}

func TestCountdown_TicksInFinalMinute(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	endTime := createAuction(t, st, clock, "item_1", nil, 100, 30*time.Second)

	svc.StartTimer("item_1", endTime)

	advanceUntil(t, clock, func() bool { return len(rec.countdownSnapshot()) > 0 })

	for _, tick := range rec.countdownSnapshot() {
		require.Equal(t, "item_1", tick.itemID)
		require.Positive(t, tick.timeRemaining)
		require.LessOrEqual(t, tick.timeRemaining, (30 * time.Second).Milliseconds())
		require.Equal(t, endTime, tick.serverTime+tick.timeRemaining)
	}
}

func TestCountdown_NotBeforeFinalMinute(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	endTime := createAuction(t, st, clock, "item_1", nil, 100, 5*time.Minute)

	svc.StartTimer("item_1", endTime)

	// Give the deferred countdown a chance to (incorrectly) start.
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, rec.countdownSnapshot())
}

func TestInitializeTimers_EndsActiveAuctions(t *testing.T) {
	svc, st, rec, clock := newTestTimer(t)
	createAuction(t, st, clock, "item_1", nil, 100, 2*time.Second)
	createAuction(t, st, clock, "item_2", nil, 100, 4*time.Second)

	// Already ended auctions are skipped.
	createAuction(t, st, clock, "item_3", nil, 100, -time.Minute)
	ended, err := st.GetAuction("item_3")
	require.NoError(t, err)
	ended.Status = models.AuctionStatusEnded
	require.NoError(t, st.UpdateAuction("item_3", ended))

	svc.InitializeTimers()

	advanceUntil(t, clock, func() bool { return rec.endCount() == 2 })

	for _, id := range []string{"item_1", "item_2"} {
		auction, err := st.GetAuction(id)
		require.NoError(t, err)
		require.Equal(t, models.AuctionStatusEnded, auction.Status)
	}
}
