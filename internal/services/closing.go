package services

import (
	"context"
	"fmt"

	"auction-site/internal/currency"
	"auction-site/internal/domain"
	"auction-site/internal/metrics"
	"auction-site/pkg/logger"
)

const (
	titleItemSold    = "Your item was sold"
	titleItemWon     = "You won an item"
	titleItemNotSold = "Your item was not sold"
)

// NotificationSender persists a notification for a user and pushes it live.
type NotificationSender interface {
	Send(ctx context.Context, userID string, category domain.NotificationCategory, title, message string) error
}

// ClosingEngine moves an item from open to closed exactly once and tells the
// seller and the winner about it.
type ClosingEngine struct {
	items    domain.ItemRepository
	users    domain.UserRepository
	pricing  *PricingService
	notifier NotificationSender
	eventPub domain.EventPublisher
	clock    domain.Clock
	metrics  *metrics.Metrics
	log      logger.Logger
}

func NewClosingEngine(
	items domain.ItemRepository,
	users domain.UserRepository,
	pricing *PricingService,
	notifier NotificationSender,
	eventPub domain.EventPublisher,
	clock domain.Clock,
	m *metrics.Metrics,
	log logger.Logger,
) *ClosingEngine {
	return &ClosingEngine{
		items:    items,
		users:    users,
		pricing:  pricing,
		notifier: notifier,
		eventPub: eventPub,
		clock:    clock,
		metrics:  m,
		log:      log,
	}
}

// CloseItem closes item if its close time has passed and it is not closed
// yet. The closed flag is written with a conditional update, so when several
// callers race only the one that flips it sends notifications. It reports
// whether this call closed the item.
func (e *ClosingEngine) CloseItem(ctx context.Context, item *domain.Item) (bool, error) {
	if item.Closed || item.IsOpen(e.clock.Now()) {
		return false, nil
	}

	winning := e.pricing.WinningBid(ctx, item)
	var winningID *string
	if winning != nil {
		id := winning.ID
		winningID = &id
	}

	swapped, err := e.items.MarkClosed(ctx, item.ID, winningID)
	if err != nil {
		return false, fmt.Errorf("close item %s: %w", item.ID, err)
	}
	if !swapped {
		e.metrics.CloseConflictsTotal.Inc()
		e.log.Debug("Item already closed by another caller", "item_id", item.ID)
		return false, nil
	}

	item.Closed = true
	item.WinningBidID = winningID
	e.metrics.RecordClosed(winning != nil)
	e.log.Info("Item closed", "item_id", item.ID, "sold", winning != nil)

	e.notifyClosed(ctx, item, winning)
	e.publishClosed(ctx, item, winning)

	return true, nil
}

func (e *ClosingEngine) notifyClosed(ctx context.Context, item *domain.Item, winning *domain.Bid) {
	title := currency.Escape(item.Title)

	if winning == nil {
		e.send(ctx, item.SellerID, domain.NotificationNotSold, titleItemNotSold,
			fmt.Sprintf("Your item <em>%s</em> was not sold.", title))
		return
	}

	price := currency.Escape(currency.FormatRef(winning.Amount))
	buyer := currency.Escape(e.displayName(ctx, winning.BidderID))

	e.send(ctx, item.SellerID, domain.NotificationItemSold, titleItemSold,
		fmt.Sprintf("Your item <em>%s</em> was sold to %s for %s.", title, buyer, price))
	e.send(ctx, winning.BidderID, domain.NotificationItemWon, titleItemWon,
		fmt.Sprintf("You won the item <em>%s</em> for %s.", title, price))
}

func (e *ClosingEngine) send(ctx context.Context, userID string, category domain.NotificationCategory, title, message string) {
	if err := e.notifier.Send(ctx, userID, category, title, message); err != nil {
		e.log.Error("Failed to send closing notification", "user_id", userID, "category", category, "error", err)
	}
}

// displayName is the bidder's email, or the bidder id when the user is gone.
func (e *ClosingEngine) displayName(ctx context.Context, userID string) string {
	user, err := e.users.GetUser(ctx, userID)
	if err != nil {
		e.log.Warn("Failed to load bidder", "user_id", userID, "error", err)
		return userID
	}
	return user.Email
}

func (e *ClosingEngine) publishClosed(ctx context.Context, item *domain.Item, winning *domain.Bid) {
	event := &domain.ItemEvent{
		Type:      domain.ItemClosed,
		ItemID:    item.ID,
		Timestamp: e.clock.Now(),
	}
	if winning != nil {
		event.UserID = winning.BidderID
		event.Amount = winning.Amount
	}

	if err := e.eventPub.PublishItemEvent(ctx, event); err != nil {
		e.log.Warn("Failed to publish item closed event", "item_id", item.ID, "error", err)
	}
}
