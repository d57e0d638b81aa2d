package handlers

import (
	"context"

	"auction-site/internal/domain"
	"auction-site/internal/services"
)

type ItemService interface {
	CreateItem(ctx context.Context, sellerID string, in services.NewItem) (*domain.Item, error)
	UpdateItem(ctx context.Context, sellerID, itemID string, changes services.ItemChanges) (*domain.Item, error)
	DeleteItem(ctx context.Context, sellerID, itemID string) error
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
	ListOpenItems(ctx context.Context, page int) ([]*domain.Item, error)
}

type UserService interface {
	RegisterUser(ctx context.Context, email string) (*domain.User, error)
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
}

type BidService interface {
	PlaceBid(ctx context.Context, itemID, bidderID string, amount int64) (*domain.Bid, error)
	ListBids(ctx context.Context, itemID string) ([]*domain.Bid, error)
}

type PriceQuoter interface {
	CurrentPrice(ctx context.Context, item *domain.Item) int64
}

type NotificationLister interface {
	ListForUser(ctx context.Context, userID string) ([]*domain.Notification, error)
}

// CurrencyConverter converts between the stored reference currency and the
// currencies a client may bid or display in.
type CurrencyConverter interface {
	Reference() string
	Currencies() ([]string, error)
	Convert(amount int64, code string) (float64, error)
	ConvertFrom(amount float64, code string) (int64, error)
}

// Services bundles what the REST handlers call into.
type Services struct {
	Items         ItemService
	Users         UserService
	Bids          BidService
	Pricing       PriceQuoter
	Notifications NotificationLister
	Currency      CurrencyConverter
}
