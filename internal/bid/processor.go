package bid

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/internal/keymutex"
	"github.com/mcdev12/gavel/internal/models"
	"github.com/mcdev12/gavel/internal/store"
)

const (
	// MaxBidAmount is the fixed bid ceiling in whole currency units.
	MaxBidAmount = 10_000_000

	// DefaultRateLimitWindow and DefaultMaxBidsPerWindow bound bid attempts
	// per user.
	DefaultRateLimitWindow  = 10 * time.Second
	DefaultMaxBidsPerWindow = 5
)

// Result carries everything the gateway needs after an accepted bid,
// including the displaced (bid, bidder) pair for the outbid notification.
type Result struct {
	Auction        *models.Auction
	Bid            *models.Bid
	PreviousBid    int64
	PreviousBidder *string
}

// Processor validates and atomically commits bids against single auctions.
// Mutations to one auction are serialized by a non-blocking per-auction claim;
// concurrent contenders observe BID_IN_PROGRESS rather than queuing.
type Processor struct {
	store   *store.Store
	locks   *keymutex.KeyMutex
	limiter *RateLimiter
	clock   clockwork.Clock
}

// NewProcessor creates a bid processor with the default rate limit settings.
// The locks argument is the per-auction serialization primitive shared with
// the timer subsystem, so commits never interleave with extension or
// termination on the same auction.
func NewProcessor(s *store.Store, locks *keymutex.KeyMutex, clock clockwork.Clock) *Processor {
	return &Processor{
		store:   s,
		locks:   locks,
		limiter: NewRateLimiter(DefaultRateLimitWindow, DefaultMaxBidsPerWindow, clock),
		clock:   clock,
	}
}

// SubmitBid runs the full pipeline: input validation, rate limiting, try-lock,
// business-rule validation against the freshest stored state, then commit.
// The amount arrives as float64 straight off the wire so fractional values can
// be rejected with their own code.
func (p *Processor) SubmitBid(itemID, userID string, amount float64) (*Result, error) {
	return p.SubmitBidWithHook(itemID, userID, amount, nil)
}

// SubmitBidWithHook is SubmitBid with a post-commit hook invoked while the
// per-auction claim is still held. Fan-out that must observe commit order
// enqueues from the hook; once the claim is released a concurrent commit on
// the same auction could slip its own broadcast in between. The hook must not
// block.
func (p *Processor) SubmitBidWithHook(itemID, userID string, amount float64, onCommit func(*Result)) (*Result, error) {
	if err := validateInput(itemID, userID, amount); err != nil {
		return nil, err
	}

	if allowed, retryAfter := p.limiter.Allow(userID); !allowed {
		return nil, &Error{
			Code:       CodeRateLimited,
			Message:    fmt.Sprintf("Too many bids. Try again in %ds", retryAfter),
			RetryAfter: retryAfter,
		}
	}

	if !p.locks.TryLock(itemID) {
		return nil, newError(CodeBidInProgress, "Another bid is being processed")
	}
	defer p.locks.Unlock(itemID)

	// Business rules run under the claim, against the latest state. Checking
	// before locking would race a concurrent commit.
	auction, err := p.validateBid(itemID, userID, int64(amount))
	if err != nil {
		return nil, err
	}

	result, err := p.executeBid(auction, userID, int64(amount))
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID).Str("user_id", userID).Msg("bid commit failed")
		return nil, newError(CodeProcessingError, "Failed to process bid")
	}
	if onCommit != nil {
		onCommit(result)
	}
	return result, nil
}

func validateInput(itemID, userID string, amount float64) error {
	if strings.TrimSpace(itemID) == "" {
		return newError(CodeInvalidItemID, "Invalid item ID")
	}
	if strings.TrimSpace(userID) == "" {
		return newError(CodeInvalidUserID, "Invalid user ID")
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return newError(CodeInvalidBidType, "Bid amount must be a number")
	}
	if amount <= 0 {
		return newError(CodeNegativeBid, "Bid must be positive")
	}
	if amount > MaxBidAmount {
		return newError(CodeBidTooHigh, "Bid exceeds maximum allowed")
	}
	if amount != math.Trunc(amount) {
		return newError(CodeFractionalBid, "Bid must be a whole number")
	}
	return nil
}

// validateBid re-checks business rules under the per-auction claim and returns
// the auction snapshot the commit will build on.
func (p *Processor) validateBid(itemID, userID string, amount int64) (*models.Auction, error) {
	auction, err := p.store.GetAuction(itemID)
	if err != nil {
		return nil, newError(CodeAuctionNotFound, "Auction not found")
	}

	if !auction.IsActive() {
		return nil, newError(CodeAuctionEnded, "Auction has ended")
	}

	if p.clock.Now().UnixMilli() >= auction.EndTime {
		// Timed out but the end-timer has not fired yet.
		return nil, newError(CodeAuctionExpired, "Auction time has expired")
	}

	if amount <= auction.CurrentBid {
		return nil, newError(CodeBidTooLow, fmt.Sprintf("Bid must be higher than $%d", auction.CurrentBid))
	}

	if auction.CurrentBidder != nil && *auction.CurrentBidder == userID {
		return nil, newError(CodeAlreadyHighest, "You are already the highest bidder")
	}

	return auction, nil
}

// executeBid appends the bid record and writes the updated auction back.
func (p *Processor) executeBid(auction *models.Auction, userID string, amount int64) (*Result, error) {
	now := p.clock.Now().UnixMilli()

	newBid := models.Bid{
		ID:        fmt.Sprintf("bid_%d_%s", now, uuid.New().String()[:6]),
		UserID:    userID,
		ItemID:    auction.ID,
		Amount:    amount,
		Timestamp: now,
	}

	previousBid := auction.CurrentBid
	previousBidder := auction.CurrentBidder

	auction.CurrentBid = amount
	auction.CurrentBidder = &userID
	auction.Bids = append(auction.Bids, newBid)
	auction.UpdatedAt = now

	if err := p.store.UpdateAuction(auction.ID, auction); err != nil {
		return nil, fmt.Errorf("failed to update auction %s: %w", auction.ID, err)
	}

	return &Result{
		Auction:        auction,
		Bid:            &newBid,
		PreviousBid:    previousBid,
		PreviousBidder: previousBidder,
	}, nil
}
