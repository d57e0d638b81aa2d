package domain

import (
	"context"
	"time"
)

// Repository interfaces
type ItemRepository interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, itemID string) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, itemID string) error
	// MarkClosed sets closed (and the winning bid) only if the item is still
	// open in storage. It returns false when another caller closed it first.
	MarkClosed(ctx context.Context, itemID string, winningBidID *string) (bool, error)
	ListOpenItems(ctx context.Context, now time.Time, limit, offset int) ([]*Item, error)
	ListUnclosed(ctx context.Context) ([]*Item, error)
	ListOverdue(ctx context.Context, now time.Time) ([]*Item, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*Item, error)
	ListWonBy(ctx context.Context, bidderID string) ([]*Item, error)
}

type BidRepository interface {
	CreateBid(ctx context.Context, bid *Bid) error
	GetBid(ctx context.Context, bidID string) (*Bid, error)
	// HighestBid returns the highest bid created strictly before `before`
	// (all bids when before is nil), ties going to the earliest bid.
	HighestBid(ctx context.Context, itemID string, before *time.Time) (*Bid, error)
	ListBids(ctx context.Context, itemID string) ([]*Bid, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListUnread(ctx context.Context, userID string) ([]*Notification, error)
	MarkRead(ctx context.Context, ids []string, at time.Time) error
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForItem(ctx context.Context, itemID string) error
}

// JobRunner runs one-shot callbacks at a given time. Scheduling a key that is
// already pending replaces the earlier job.
type JobRunner interface {
	Schedule(key string, runAt time.Time, fn func()) error
	Cancel(key string) bool
	Pending(key string) (time.Time, bool)
	Len() int
	AddRecurring(spec string, fn func()) error
	Start()
	Stop()
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Event interfaces
type EventPublisher interface {
	PublishItemEvent(ctx context.Context, event *ItemEvent) error
}

type EventSubscriber interface {
	SubscribeToItemEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *ItemEvent) error

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type ItemBroadcaster interface {
	BroadcastToItem(ctx context.Context, itemID string, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	ItemID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, itemID string, conn WebSocketConnection) error
	UnregisterConnection(userID, itemID string) error
	GetConnectionsForItem(itemID string) []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	BroadcastToItem(itemID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(itemID string) error
}
