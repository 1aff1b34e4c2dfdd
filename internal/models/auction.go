package models

// AuctionStatus defines the lifecycle state of an auction lot.
type AuctionStatus string

const (
	AuctionStatusActive AuctionStatus = "active"
	AuctionStatusEnded  AuctionStatus = "ended"
)

// Bid is a single accepted bid. Immutable once appended to an auction.
type Bid struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	ItemID    string `json:"itemId"`
	Amount    int64  `json:"amount"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// Auction represents a time-boxed auction lot with an append-only bid history.
// All timestamps are epoch milliseconds to match the wire format.
type Auction struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	ImageURL      string        `json:"imageUrl"`
	StartingPrice int64         `json:"startingPrice"`
	CurrentBid    int64         `json:"currentBid"`
	CurrentBidder *string       `json:"currentBidder"` // nil until the first bid lands
	EndTime       int64         `json:"endTime"`
	Status        AuctionStatus `json:"status"`
	Bids          []Bid         `json:"bids"`
	CreatedAt     int64         `json:"createdAt"`
	UpdatedAt     int64         `json:"updatedAt"`
	EndedAt       int64         `json:"endedAt,omitempty"`
}

// BidCount returns the number of accepted bids.
func (a *Auction) BidCount() int {
	return len(a.Bids)
}

// IsActive reports whether the auction is still accepting bids.
func (a *Auction) IsActive() bool {
	return a.Status == AuctionStatusActive
}

// Clone returns a deep copy of the auction. Callers that hand auction state
// across goroutine boundaries must clone first so the store copy stays
// single-writer.
func (a *Auction) Clone() *Auction {
	cp := *a
	if a.CurrentBidder != nil {
		bidder := *a.CurrentBidder
		cp.CurrentBidder = &bidder
	}
	cp.Bids = make([]Bid, len(a.Bids))
	copy(cp.Bids, a.Bids)
	return &cp
}
