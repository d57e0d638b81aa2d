package services

import (
	"context"
	"fmt"

	"auction-site/internal/domain"
	"auction-site/internal/metrics"
	"auction-site/pkg/logger"
	"auction-site/pkg/utils"
)

type BidService struct {
	items    domain.ItemRepository
	bids     domain.BidRepository
	users    domain.UserRepository
	pricing  *PricingService
	eventPub domain.EventPublisher
	clock    domain.Clock
	metrics  *metrics.Metrics
	log      logger.Logger
}

func NewBidService(
	items domain.ItemRepository,
	bids domain.BidRepository,
	users domain.UserRepository,
	pricing *PricingService,
	eventPub domain.EventPublisher,
	clock domain.Clock,
	m *metrics.Metrics,
	log logger.Logger,
) *BidService {
	return &BidService{
		items:    items,
		bids:     bids,
		users:    users,
		pricing:  pricing,
		eventPub: eventPub,
		clock:    clock,
		metrics:  m,
		log:      log,
	}
}

// PlaceBid stores a bid of amount (reference currency) on an open item. A
// bid below the current price fails with a *domain.BidTooLowError.
func (s *BidService) PlaceBid(ctx context.Context, itemID, bidderID string, amount int64) (*domain.Bid, error) {
	s.log.Info("Placing bid", "item_id", itemID, "user_id", bidderID, "amount", amount)

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetUser(ctx, bidderID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if item.Closed || !item.IsOpen(now) {
		s.metrics.BidsRejectedTotal.WithLabelValues("not_on_sale").Inc()
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrItemNotOnSale)
	}

	if minimum := s.pricing.CurrentPrice(ctx, item); amount < minimum {
		s.metrics.BidsRejectedTotal.WithLabelValues("too_low").Inc()
		return nil, &domain.BidTooLowError{Minimum: minimum}
	}

	bid := &domain.Bid{
		ID:        utils.GenerateID("bid"),
		ItemID:    itemID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: now,
	}
	if err := s.bids.CreateBid(ctx, bid); err != nil {
		s.log.Error("Failed to store bid", "item_id", itemID, "error", err)
		return nil, err
	}

	s.metrics.BidsPlacedTotal.Inc()

	err = s.eventPub.PublishItemEvent(ctx, &domain.ItemEvent{
		Type:      domain.BidPlaced,
		ItemID:    itemID,
		UserID:    bidderID,
		Amount:    amount,
		Timestamp: now,
	})
	if err != nil {
		s.log.Warn("Failed to publish bid event", "item_id", itemID, "error", err)
	}

	return bid, nil
}

// ListBids returns an item's bids, highest first.
func (s *BidService) ListBids(ctx context.Context, itemID string) ([]*domain.Bid, error) {
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.bids.ListBids(ctx, itemID)
}
