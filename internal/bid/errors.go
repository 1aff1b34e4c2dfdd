package bid

import "fmt"

// Code is a stable rejection code carried across the gateway boundary.
// Codes are part of the wire contract and must not change.
type Code string

const (
	CodeInvalidItemID       Code = "INVALID_ITEM_ID"
	CodeInvalidUserID       Code = "INVALID_USER_ID"
	CodeInvalidBidType      Code = "INVALID_BID_TYPE"
	CodeNegativeBid         Code = "NEGATIVE_BID"
	CodeBidTooHigh          Code = "BID_TOO_HIGH"
	CodeFractionalBid       Code = "FRACTIONAL_BID"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeBidInProgress       Code = "BID_IN_PROGRESS"
	CodeAuctionNotFound     Code = "AUCTION_NOT_FOUND"
	CodeAuctionEnded        Code = "AUCTION_ENDED"
	CodeAuctionExpired      Code = "AUCTION_EXPIRED"
	CodeBidTooLow           Code = "BID_TOO_LOW"
	CodeAlreadyHighest      Code = "ALREADY_HIGHEST_BIDDER"
	CodeProcessingError     Code = "PROCESSING_ERROR"
)

// Error is a structured bid rejection. Every failed submission returns one of
// these so callers can switch on Code instead of matching strings.
type Error struct {
	Code    Code
	Message string

	// RetryAfter is the number of whole seconds until the rate limit window
	// reopens. Only set for CodeRateLimited.
	RetryAfter int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}
