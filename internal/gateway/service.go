package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/gavel/internal/auth"
	"github.com/mcdev12/gavel/internal/bid"
	"github.com/mcdev12/gavel/internal/metrics"
	"github.com/mcdev12/gavel/internal/store"
)

// BidProcessor is what the gateway needs from the bid pipeline. The hook runs
// with the per-auction claim still held, which is what keeps the public
// broadcast stream in commit order.
type BidProcessor interface {
	SubmitBidWithHook(itemID, userID string, amount float64, onCommit func(*bid.Result)) (*bid.Result, error)
}

// Extender is the anti-snipe hook, invoked after every accepted bid.
type Extender interface {
	ExtendIfNeeded(itemID string) bool
}

// Verifier maps an opaque bearer token to an identity.
type Verifier interface {
	Verify(token string) (*auth.Identity, error)
}

// Service bridges WebSocket clients to the bid processor and auction timer,
// and fans committed state changes back out.
type Service struct {
	manager   *ConnectionManager
	wsHandler *WebSocketHandler
	processor BidProcessor
	store     *store.Store
	verifier  Verifier
	metrics   *metrics.Metrics
	clock     clockwork.Clock

	extender Extender
}

// Config holds gateway configuration.
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{ConnectionConfig: DefaultConnectionConfig()}
}

// NewService creates the realtime gateway. The anti-snipe extender is wired
// afterwards via SetExtender because the timer needs the gateway's broadcast
// capability to exist first.
func NewService(ctx context.Context, config Config, processor BidProcessor, s *store.Store, verifier Verifier, m *metrics.Metrics, clock clockwork.Clock) *Service {
	manager := NewConnectionManager(ctx, config.ConnectionConfig)
	svc := &Service{
		manager:   manager,
		processor: processor,
		store:     s,
		verifier:  verifier,
		metrics:   m,
		clock:     clock,
	}
	svc.wsHandler = NewWebSocketHandler(manager, svc)
	manager.handler = svc
	manager.onDisconnect = svc.onDisconnect
	return svc
}

// SetExtender wires the anti-snipe hook.
func (s *Service) SetExtender(e Extender) {
	s.extender = e
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	s.manager.Start(ctx)
}

// RegisterRoutes registers the WebSocket endpoint.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
}

// ConnectionCount returns the number of live connections.
func (s *Service) ConnectionCount() int {
	return s.manager.ConnectionCount()
}

// onConnect completes a successful handshake: snapshot ack to the new client,
// updated online count to everyone.
func (s *Service) onConnect(conn *Connection) {
	s.metrics.RecordConnection(true)

	s.sendTo(conn, EventTypeConnected, ConnectedPayload{
		UserID:     conn.UserID,
		Username:   conn.Username,
		ServerTime: s.clock.Now().UnixMilli(),
	})
	s.broadcast(EventTypeActiveUsers, ActiveUsersPayload{Count: s.manager.ConnectionCount()})

	log.Info().
		Str("username", conn.Username).
		Int("online", s.manager.ConnectionCount()).
		Msg("bidder connected")
}

func (s *Service) onDisconnect(conn *Connection) {
	s.metrics.RecordConnection(false)
	s.broadcast(EventTypeActiveUsers, ActiveUsersPayload{Count: s.manager.ConnectionCount()})

	log.Info().
		Str("username", conn.Username).
		Int("online", s.manager.ConnectionCount()).
		Msg("bidder disconnected")
}

// HandleMessage dispatches one parsed client frame.
func (s *Service) HandleMessage(conn *Connection, msg *Message) {
	switch msg.Type {
	case EventTypeBidPlaced:
		s.handleBidPlaced(conn, msg.Data)
	case EventTypeRequestTimeSync:
		s.sendTo(conn, EventTypeTimeSync, TimeSyncPayload{ServerTime: s.clock.Now().UnixMilli()})
	case EventTypeRequestStateSync:
		s.handleStateSync(conn)
	default:
		log.Debug().
			Str("connection_id", conn.ID).
			Str("type", string(msg.Type)).
			Msg("ignoring unknown client message type")
	}
}

// handleBidPlaced routes a bid into the processor and fans the outcome out:
// reply to the sender, public update to everyone, targeted outbid notice,
// then the anti-snipe check. Rejections go to the sender only.
func (s *Service) handleBidPlaced(conn *Connection, data json.RawMessage) {
	var payload BidPlacedPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ItemID == "" || payload.BidAmount <= 0 {
		s.sendTo(conn, EventTypeBidError, BidErrorPayload{
			ItemID: payload.ItemID,
			Error:  "Invalid bid data",
			Code:   "INVALID_INPUT",
		})
		return
	}

	// The confirmation and the public update are enqueued from the commit
	// hook, before the per-auction claim releases. Enqueueing after SubmitBid
	// returns would let a faster competing commit broadcast first.
	started := s.clock.Now()
	result, err := s.processor.SubmitBidWithHook(payload.ItemID, conn.UserID, payload.BidAmount, func(r *bid.Result) {
		s.sendTo(conn, EventTypeBidSuccess, BidSuccessPayload{
			ItemID:     r.Auction.ID,
			Bid:        r.Bid,
			CurrentBid: r.Auction.CurrentBid,
		})
		s.broadcast(EventTypeUpdateBid, UpdateBidPayload{
			ItemID:        r.Auction.ID,
			CurrentBid:    r.Auction.CurrentBid,
			CurrentBidder: r.Auction.CurrentBidder,
			BidCount:      r.Auction.BidCount(),
			Timestamp:     r.Bid.Timestamp,
		})
	})
	elapsed := s.clock.Now().Sub(started)

	if err != nil {
		var bidErr *bid.Error
		if !errors.As(err, &bidErr) {
			bidErr = &bid.Error{Code: bid.CodeProcessingError, Message: "Server error processing bid"}
		}
		s.metrics.RecordBid(false, elapsed, bidErr.Code == bid.CodeRateLimited)
		s.sendTo(conn, EventTypeBidError, BidErrorPayload{
			ItemID: payload.ItemID,
			Error:  bidErr.Message,
			Code:   string(bidErr.Code),
		})
		return
	}
	s.metrics.RecordBid(true, elapsed, false)

	auction := result.Auction

	if result.PreviousBidder != nil && *result.PreviousBidder != conn.UserID {
		s.sendToUser(*result.PreviousBidder, EventTypeOutbid, OutbidPayload{
			ItemID:  auction.ID,
			NewBid:  auction.CurrentBid,
			YourBid: result.PreviousBid,
		})
	}

	if s.extender != nil {
		s.extender.ExtendIfNeeded(auction.ID)
	}

	log.Info().
		Str("username", conn.Username).
		Str("item_id", auction.ID).
		Int64("amount", result.Bid.Amount).
		Msg("bid accepted")
}

func (s *Service) handleStateSync(conn *Connection) {
	auctions := s.store.GetAllAuctions()
	summaries := make([]AuctionSummary, 0, len(auctions))
	for _, a := range auctions {
		summaries = append(summaries, AuctionSummary{
			ID:            a.ID,
			Title:         a.Title,
			CurrentBid:    a.CurrentBid,
			CurrentBidder: a.CurrentBidder,
			EndTime:       a.EndTime,
			Status:        a.Status,
			BidCount:      a.BidCount(),
		})
	}
	s.sendTo(conn, EventTypeStateSync, StateSyncPayload{
		Auctions:   summaries,
		ServerTime: s.clock.Now().UnixMilli(),
	})
}

// BroadcastAuctionEnd implements the timer's Broadcaster capability.
func (s *Service) BroadcastAuctionEnd(itemID string, winner *string, finalBid int64, timestamp int64) {
	s.broadcast(EventTypeAuctionEnd, AuctionEndPayload{
		ItemID:    itemID,
		Winner:    winner,
		FinalBid:  finalBid,
		Timestamp: timestamp,
	})
}

// BroadcastAuctionExtended implements the timer's Broadcaster capability.
func (s *Service) BroadcastAuctionExtended(itemID string, newEndTime int64, extensionSeconds int) {
	s.broadcast(EventTypeAuctionExtended, AuctionExtendedPayload{
		ItemID:           itemID,
		NewEndTime:       newEndTime,
		ExtensionSeconds: extensionSeconds,
	})
}

// BroadcastCountdown implements the timer's Broadcaster capability.
func (s *Service) BroadcastCountdown(itemID string, timeRemaining int64, serverTime int64) {
	s.broadcast(EventTypeCountdownUpdate, CountdownPayload{
		ItemID:        itemID,
		TimeRemaining: timeRemaining,
		ServerTime:    serverTime,
	})
}

func (s *Service) broadcast(eventType EventType, payload interface{}) {
	data, err := Encode(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(eventType)).Msg("failed to encode broadcast")
		return
	}
	s.manager.BroadcastAll(data)
}

func (s *Service) sendTo(conn *Connection, eventType EventType, payload interface{}) {
	data, err := Encode(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(eventType)).Msg("failed to encode message")
		return
	}
	s.manager.SendToConnection(conn, data)
}

func (s *Service) sendToUser(userID string, eventType EventType, payload interface{}) {
	data, err := Encode(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(eventType)).Msg("failed to encode message")
		return
	}
	s.manager.SendToUser(userID, data)
}
