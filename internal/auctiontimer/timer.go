package auctiontimer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/internal/keymutex"
	"github.com/mcdev12/gavel/internal/models"
	"github.com/mcdev12/gavel/internal/store"
)

const (
	// countdownWindow is the final stretch during which ticks are broadcast
	// every second.
	countdownWindow = 60 * time.Second

	// snipeWindow and snipeExtension implement the anti-snipe rule: a bid
	// landing inside the window pushes the deadline out by the extension.
	snipeWindow    = 30 * time.Second
	snipeExtension = 30 * time.Second
)

// Broadcaster is the outbound capability the timer needs. The gateway
// implements it; tests substitute a recorder.
type Broadcaster interface {
	BroadcastAuctionEnd(itemID string, winner *string, finalBid int64, timestamp int64)
	BroadcastAuctionExtended(itemID string, newEndTime int64, extensionSeconds int)
	BroadcastCountdown(itemID string, timeRemaining int64, serverTime int64)
}

// Service schedules end-of-auction events and countdown ticks per auction.
// Every (re)schedule bumps a per-auction generation token; a firing callback
// that no longer matches the current token is a stale leftover and no-ops.
type Service struct {
	store       *store.Store
	broadcaster Broadcaster
	locks       *keymutex.KeyMutex
	clock       clockwork.Clock

	mu    sync.Mutex
	gens  map[string]uint64
	stops map[string]chan struct{}
}

// NewService creates a timer service. locks must be the same KeyMutex used by
// the bid processor.
func NewService(s *store.Store, b Broadcaster, locks *keymutex.KeyMutex, clock clockwork.Clock) *Service {
	return &Service{
		store:       s,
		broadcaster: b,
		locks:       locks,
		clock:       clock,
		gens:        make(map[string]uint64),
		stops:       make(map[string]chan struct{}),
	}
}

// InitializeTimers arms timers for every active auction. Called once at boot.
func (s *Service) InitializeTimers() {
	count := 0
	for _, auction := range s.store.GetAllAuctions() {
		if auction.IsActive() {
			s.StartTimer(auction.ID, auction.EndTime)
			count++
		}
	}
	log.Info().Int("count", count).Msg("initialized auction timers")
}

// StartTimer schedules the end event for itemID at endTime (epoch millis).
// A past-due endTime ends the auction synchronously. The countdown ticker
// starts immediately when less than a minute remains, otherwise its start is
// deferred until the final-minute boundary.
func (s *Service) StartTimer(itemID string, endTime int64) {
	remaining := time.Duration(endTime-s.clock.Now().UnixMilli()) * time.Millisecond
	if remaining <= 0 {
		s.EndAuction(itemID)
		return
	}

	gen, stopCh := s.reschedule(itemID)

	go s.waitForEnd(itemID, gen, remaining, stopCh)

	if remaining <= countdownWindow {
		go s.runCountdown(itemID, endTime, gen, stopCh)
	} else {
		go s.deferCountdown(itemID, endTime, gen, remaining-countdownWindow, stopCh)
	}

	log.Debug().
		Str("item_id", itemID).
		Dur("remaining", remaining).
		Uint64("generation", gen).
		Msg("scheduled auction end timer")
}

// CancelTimer cancels the end timer and countdown for itemID. Idempotent;
// bumps the generation first so an already-fired callback cannot act.
func (s *Service) CancelTimer(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gens[itemID]++
	if stopCh, ok := s.stops[itemID]; ok {
		close(stopCh)
		delete(s.stops, itemID)
	}
}

// reschedule supersedes any live timers for itemID and returns the new
// generation plus its stop channel.
func (s *Service) reschedule(itemID string) (uint64, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gens[itemID]++
	gen := s.gens[itemID]

	if old, ok := s.stops[itemID]; ok {
		close(old)
	}
	stopCh := make(chan struct{})
	s.stops[itemID] = stopCh
	return gen, stopCh
}

func (s *Service) isCurrent(itemID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[itemID] == gen
}

func (s *Service) waitForEnd(itemID string, gen uint64, remaining time.Duration, stopCh <-chan struct{}) {
	timer := s.clock.NewTimer(remaining)
	select {
	case <-timer.Chan():
		if !s.isCurrent(itemID, gen) {
			log.Debug().Str("item_id", itemID).Uint64("generation", gen).Msg("stale end timer fired, ignoring")
			return
		}
		s.EndAuction(itemID)
	case <-stopCh:
		stopAndDrainTimer(timer)
	}
}

func (s *Service) deferCountdown(itemID string, endTime int64, gen uint64, delay time.Duration, stopCh <-chan struct{}) {
	timer := s.clock.NewTimer(delay)
	select {
	case <-timer.Chan():
		if !s.isCurrent(itemID, gen) {
			return
		}
		s.runCountdown(itemID, endTime, gen, stopCh)
	case <-stopCh:
		stopAndDrainTimer(timer)
	}
}

// runCountdown broadcasts one tick per second until the deadline passes or a
// newer schedule supersedes this one. Termination itself belongs to the end
// timer.
func (s *Service) runCountdown(itemID string, endTime int64, gen uint64, stopCh <-chan struct{}) {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if !s.isCurrent(itemID, gen) {
				return
			}
			now := s.clock.Now().UnixMilli()
			remaining := endTime - now
			if remaining <= 0 {
				return
			}
			s.broadcaster.BroadcastCountdown(itemID, remaining, now)
		case <-stopCh:
			return
		}
	}
}

// EndAuction transitions the auction to ended and declares the winner.
// Idempotent: a second invocation, or one racing a just-committed extension,
// is a no-op.
func (s *Service) EndAuction(itemID string) {
	s.locks.Lock(itemID)

	auction, err := s.store.GetAuction(itemID)
	if err != nil {
		s.locks.Unlock(itemID)
		log.Error().Err(err).Str("item_id", itemID).Msg("failed to load auction for termination")
		return
	}
	if !auction.IsActive() {
		s.locks.Unlock(itemID)
		return
	}

	now := s.clock.Now().UnixMilli()
	if auction.EndTime > now {
		// An extension won the race; the rescheduled timer owns termination.
		s.locks.Unlock(itemID)
		return
	}

	auction.Status = models.AuctionStatusEnded
	auction.EndedAt = now
	auction.UpdatedAt = now

	if err := s.store.UpdateAuction(itemID, auction); err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("failed to persist auction end")
	}
	s.locks.Unlock(itemID)

	s.CancelTimer(itemID)
	s.broadcaster.BroadcastAuctionEnd(itemID, auction.CurrentBidder, auction.CurrentBid, now)

	winner := "none"
	if auction.CurrentBidder != nil {
		winner = *auction.CurrentBidder
	}
	log.Info().
		Str("item_id", itemID).
		Str("winner", winner).
		Int64("final_bid", auction.CurrentBid).
		Msg("auction ended")
}

// ExtendIfNeeded applies the anti-snipe rule after an accepted bid. Returns
// true if the deadline moved. Extensions can repeat indefinitely; an auction
// whose window has already closed is a safe no-op.
func (s *Service) ExtendIfNeeded(itemID string) bool {
	s.locks.Lock(itemID)

	auction, err := s.store.GetAuction(itemID)
	if err != nil {
		s.locks.Unlock(itemID)
		log.Error().Err(err).Str("item_id", itemID).Msg("failed to load auction for extension check")
		return false
	}

	now := s.clock.Now().UnixMilli()
	remaining := auction.EndTime - now
	if remaining <= 0 || remaining >= snipeWindow.Milliseconds() || !auction.IsActive() {
		s.locks.Unlock(itemID)
		return false
	}

	newEndTime := auction.EndTime + snipeExtension.Milliseconds()
	auction.EndTime = newEndTime
	auction.UpdatedAt = now

	if err := s.store.UpdateAuction(itemID, auction); err != nil {
		s.locks.Unlock(itemID)
		log.Error().Err(err).Str("item_id", itemID).Msg("failed to persist auction extension")
		return false
	}
	s.locks.Unlock(itemID)

	// CancelTimer completes before StartTimer so two live end timers can
	// never coexist for the same auction.
	s.CancelTimer(itemID)
	s.StartTimer(itemID, newEndTime)

	s.broadcaster.BroadcastAuctionExtended(itemID, newEndTime, int(snipeExtension.Seconds()))

	log.Info().
		Str("item_id", itemID).
		Int64("new_end_time", newEndTime).
		Msg("auction extended")
	return true
}

// Shutdown cancels every live timer.
func (s *Service) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, stopCh := range s.stops {
		close(stopCh)
		delete(s.stops, id)
		s.gens[id]++
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel, following
// the pattern from the time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
