package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/gavel/internal/models"
)

// EventType names a realtime message. The names and payload keys below are
// the wire contract; clients match on them verbatim.
type EventType string

const (
	// Inbound.
	EventTypeBidPlaced        EventType = "BID_PLACED"
	EventTypeRequestTimeSync  EventType = "REQUEST_TIME_SYNC"
	EventTypeRequestStateSync EventType = "REQUEST_STATE_SYNC"

	// Outbound.
	EventTypeConnected       EventType = "CONNECTED"
	EventTypeActiveUsers     EventType = "ACTIVE_USERS"
	EventTypeBidSuccess      EventType = "BID_SUCCESS"
	EventTypeBidError        EventType = "BID_ERROR"
	EventTypeUpdateBid       EventType = "UPDATE_BID"
	EventTypeOutbid          EventType = "OUTBID_NOTIFICATION"
	EventTypeAuctionEnd      EventType = "AUCTION_END"
	EventTypeAuctionExtended EventType = "AUCTION_EXTENDED"
	EventTypeCountdownUpdate EventType = "COUNTDOWN_UPDATE"
	EventTypeTimeSync        EventType = "TIME_SYNC"
	EventTypeStateSync       EventType = "STATE_SYNC"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps a payload in a Message envelope and marshals it.
func Encode(eventType EventType, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Message{Type: eventType, Data: data})
}

// BidPlacedPayload is the inbound bid submission.
type BidPlacedPayload struct {
	ItemID    string  `json:"itemId"`
	BidAmount float64 `json:"bidAmount"`
}

// ConnectedPayload acknowledges a successful connection to its owner.
type ConnectedPayload struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	ServerTime int64  `json:"serverTime"`
}

// ActiveUsersPayload carries the total connection count.
type ActiveUsersPayload struct {
	Count int `json:"count"`
}

// BidSuccessPayload confirms an accepted bid to its sender only.
type BidSuccessPayload struct {
	ItemID     string      `json:"itemId"`
	Bid        *models.Bid `json:"bid"`
	CurrentBid int64       `json:"currentBid"`
}

// BidErrorPayload rejects a bid to its sender only; errors never broadcast.
type BidErrorPayload struct {
	ItemID string `json:"itemId"`
	Error  string `json:"error"`
	Code   string `json:"code"`
}

// UpdateBidPayload is the public post-commit state change.
type UpdateBidPayload struct {
	ItemID        string  `json:"itemId"`
	CurrentBid    int64   `json:"currentBid"`
	CurrentBidder *string `json:"currentBidder"`
	BidCount      int     `json:"bidCount"`
	Timestamp     int64   `json:"timestamp"`
}

// OutbidPayload is delivered to the displaced bidder's connection group.
type OutbidPayload struct {
	ItemID  string `json:"itemId"`
	NewBid  int64  `json:"newBid"`
	YourBid int64  `json:"yourBid"`
}

// AuctionEndPayload declares the winner to everyone.
type AuctionEndPayload struct {
	ItemID    string  `json:"itemId"`
	Winner    *string `json:"winner"`
	FinalBid  int64   `json:"finalBid"`
	Timestamp int64   `json:"timestamp"`
}

// AuctionExtendedPayload announces an anti-snipe deadline extension.
type AuctionExtendedPayload struct {
	ItemID           string `json:"itemId"`
	NewEndTime       int64  `json:"newEndTime"`
	ExtensionSeconds int    `json:"extensionSeconds"`
}

// CountdownPayload is the per-second tick during the final minute.
type CountdownPayload struct {
	ItemID        string `json:"itemId"`
	TimeRemaining int64  `json:"timeRemaining"`
	ServerTime    int64  `json:"serverTime"`
}

// TimeSyncPayload answers a REQUEST_TIME_SYNC.
type TimeSyncPayload struct {
	ServerTime int64 `json:"serverTime"`
}

// AuctionSummary is the per-auction entry in a state sync.
type AuctionSummary struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	CurrentBid    int64                `json:"currentBid"`
	CurrentBidder *string              `json:"currentBidder"`
	EndTime       int64                `json:"endTime"`
	Status        models.AuctionStatus `json:"status"`
	BidCount      int                  `json:"bidCount"`
}

// StateSyncPayload answers a REQUEST_STATE_SYNC with a full snapshot, used
// for reconnect recovery.
type StateSyncPayload struct {
	Auctions   []AuctionSummary `json:"auctions"`
	ServerTime int64            `json:"serverTime"`
}
