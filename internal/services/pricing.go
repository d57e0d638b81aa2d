package services

import (
	"context"
	"errors"

	"auction-site/internal/domain"
	"auction-site/pkg/logger"
)

// PricingService answers "who is winning" and "what must the next bid be".
// Both are pure reads.
type PricingService struct {
	bids domain.BidRepository
	log  logger.Logger
}

func NewPricingService(bids domain.BidRepository, log logger.Logger) *PricingService {
	return &PricingService{bids: bids, log: log}
}

// WinningBid returns the stored winner of a closed item, otherwise the
// highest bid placed before the item's close time. Storage failures are
// logged and reported as no winner.
func (p *PricingService) WinningBid(ctx context.Context, item *domain.Item) *domain.Bid {
	if item.Closed && item.WinningBidID != nil {
		bid, err := p.bids.GetBid(ctx, *item.WinningBidID)
		if err != nil {
			p.log.Warn("Failed to load stored winning bid", "item_id", item.ID, "bid_id", *item.WinningBidID, "error", err)
			return nil
		}
		return bid
	}

	bid, err := p.bids.HighestBid(ctx, item.ID, item.ClosesAt)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Warn("Failed to compute winning bid", "item_id", item.ID, "error", err)
		}
		return nil
	}
	return bid
}

// CurrentPrice is the minimum amount the next bid must reach.
func (p *PricingService) CurrentPrice(ctx context.Context, item *domain.Item) int64 {
	if winning := p.WinningBid(ctx, item); winning != nil {
		return winning.Amount + domain.MinBidIncrement
	}
	return item.StartingBid
}
