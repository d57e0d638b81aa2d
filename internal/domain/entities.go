package domain

import (
	"time"
)

// MinBidIncrement is added to the winning bid to get the next acceptable price.
const MinBidIncrement int64 = 1

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Disabled  bool      `json:"disabled"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is an auction listing. Closed and WinningBidID are written once, by
// the closing engine.
type Item struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	StartingBid  int64      `json:"starting_bid"`
	SellerID     string     `json:"seller_id"`
	CreatedAt    time.Time  `json:"created_at"`
	ClosesAt     *time.Time `json:"closes_at,omitempty"`
	Closed       bool       `json:"closed"`
	WinningBidID *string    `json:"winning_bid_id,omitempty"`
}

// IsOpen reports whether bids are still accepted at now. Items without a
// close time never stop accepting bids.
func (i *Item) IsOpen(now time.Time) bool {
	if i.ClosesAt == nil {
		return true
	}
	return now.Before(*i.ClosesAt)
}

type Bid struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationCategory string

const (
	NotificationMessage  NotificationCategory = "message"
	NotificationItemSold NotificationCategory = "item_sold"
	NotificationItemWon  NotificationCategory = "item_won"
	NotificationNotSold  NotificationCategory = "item_not_sold"
)

type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	Category  NotificationCategory `json:"category"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	CreatedAt time.Time            `json:"created_at"`
	ReadAt    *time.Time           `json:"read_at,omitempty"`
}

// Profile is what a user has listed and what they have won.
type Profile struct {
	User     *User   `json:"user"`
	Listed   []*Item `json:"listed"`
	WonItems []*Item `json:"won_items"`
}

type ItemEvent struct {
	Type      ItemEventType `json:"type"`
	ItemID    string        `json:"item_id"`
	UserID    string        `json:"user_id,omitempty"`
	Amount    int64         `json:"amount,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type ItemEventType string

const (
	BidPlaced   ItemEventType = "bid_placed"
	ItemClosed  ItemEventType = "item_closed"
	ItemUpdated ItemEventType = "item_updated"
)

type ScheduledJob struct {
	ID        string
	ItemID    string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobCloseItem JobType = "close_item"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
