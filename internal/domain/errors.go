package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidItem   = errors.New("invalid item")
	ErrItemClosed    = errors.New("item is closed")
	ErrItemNotOnSale = errors.New("item is no longer on sale")
	ErrBidTooLow     = errors.New("bid is below the minimum price")
	ErrEmailTaken    = errors.New("email already registered")
)

// BidTooLowError carries the minimum acceptable amount at the time of the bid.
type BidTooLowError struct {
	Minimum int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid must be at least %d", e.Minimum)
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}
