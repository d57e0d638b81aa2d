package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"auction-site/internal/domain"
	"auction-site/pkg/logger"
	"auction-site/pkg/utils"
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 2000
	minStartingBid       = 1
)

// ClosingRescheduler is the part of the scheduler the write path needs.
type ClosingRescheduler interface {
	RescheduleClosing(ctx context.Context, item *domain.Item) error
	CancelClosing(ctx context.Context, itemID string)
}

type ManagerConfig struct {
	DefaultDuration time.Duration
	PageSize        int
}

type NewItem struct {
	Title       string
	Description string
	StartingBid int64
	ClosesAt    *time.Time
}

// ItemChanges leaves fields with nil values untouched.
type ItemChanges struct {
	Title       *string
	Description *string
	ClosesAt    *time.Time
}

// AuctionManager owns the item lifecycle: every persisted write is followed
// by a reschedule of the item's closing job.
type AuctionManager struct {
	items     domain.ItemRepository
	users     domain.UserRepository
	scheduler ClosingRescheduler
	eventPub  domain.EventPublisher
	clock     domain.Clock
	cfg       ManagerConfig
	log       logger.Logger
}

func NewAuctionManager(
	items domain.ItemRepository,
	users domain.UserRepository,
	scheduler ClosingRescheduler,
	eventPub domain.EventPublisher,
	clock domain.Clock,
	cfg ManagerConfig,
	log logger.Logger,
) *AuctionManager {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 24 * time.Hour
	}
	return &AuctionManager{
		items:     items,
		users:     users,
		scheduler: scheduler,
		eventPub:  eventPub,
		clock:     clock,
		cfg:       cfg,
		log:       log,
	}
}

func (am *AuctionManager) RegisterUser(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := am.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%s: %w", email, domain.ErrEmailTaken)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	user := &domain.User{
		ID:        utils.GenerateID("user"),
		Email:     email,
		CreatedAt: am.clock.Now(),
	}
	// The unique index still rejects a concurrent registration.
	if err := am.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	am.log.Info("User registered", "user_id", user.ID)
	return user, nil
}

func (am *AuctionManager) CreateItem(ctx context.Context, sellerID string, in NewItem) (*domain.Item, error) {
	if _, err := am.users.GetUser(ctx, sellerID); err != nil {
		return nil, err
	}

	now := am.clock.Now()
	title := strings.TrimSpace(in.Title)
	if err := validateText(title, in.Description); err != nil {
		return nil, err
	}
	if in.StartingBid < minStartingBid {
		return nil, fmt.Errorf("starting bid must be at least %d: %w", minStartingBid, domain.ErrInvalidItem)
	}

	closesAt := now.Add(am.cfg.DefaultDuration)
	if in.ClosesAt != nil {
		if !in.ClosesAt.After(now) {
			return nil, fmt.Errorf("close time must be in the future: %w", domain.ErrInvalidItem)
		}
		closesAt = in.ClosesAt.UTC()
	}

	item := &domain.Item{
		ID:          utils.GenerateID("item"),
		Title:       title,
		Description: in.Description,
		StartingBid: in.StartingBid,
		SellerID:    sellerID,
		CreatedAt:   now,
		ClosesAt:    &closesAt,
	}

	if err := am.items.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	am.reschedule(ctx, item)

	am.log.Info("Item created", "item_id", item.ID, "closes_at", closesAt)
	return item, nil
}

func (am *AuctionManager) UpdateItem(ctx context.Context, sellerID, itemID string, changes ItemChanges) (*domain.Item, error) {
	item, err := am.ownedItem(ctx, sellerID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Closed {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrItemClosed)
	}
	// An item past its close time is settled by the closing job, even when
	// that job has not run yet.
	if !item.IsOpen(am.clock.Now()) {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrItemNotOnSale)
	}

	if changes.Title != nil {
		item.Title = strings.TrimSpace(*changes.Title)
	}
	if changes.Description != nil {
		item.Description = *changes.Description
	}
	if err := validateText(item.Title, item.Description); err != nil {
		return nil, err
	}
	if changes.ClosesAt != nil {
		if !changes.ClosesAt.After(am.clock.Now()) {
			return nil, fmt.Errorf("close time must be in the future: %w", domain.ErrInvalidItem)
		}
		closesAt := changes.ClosesAt.UTC()
		item.ClosesAt = &closesAt
	}

	if err := am.items.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	am.reschedule(ctx, item)

	err = am.eventPub.PublishItemEvent(ctx, &domain.ItemEvent{
		Type:      domain.ItemUpdated,
		ItemID:    item.ID,
		Timestamp: am.clock.Now(),
	})
	if err != nil {
		am.log.Warn("Failed to publish item updated event", "item_id", item.ID, "error", err)
	}

	am.log.Info("Item updated", "item_id", item.ID)
	return item, nil
}

func (am *AuctionManager) DeleteItem(ctx context.Context, sellerID, itemID string) error {
	if _, err := am.ownedItem(ctx, sellerID, itemID); err != nil {
		return err
	}
	if err := am.items.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	am.scheduler.CancelClosing(ctx, itemID)

	am.log.Info("Item deleted", "item_id", itemID)
	return nil
}

func (am *AuctionManager) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	return am.items.GetItem(ctx, itemID)
}

// ListOpenItems pages through items still on sale, latest closing first.
// Pages start at 1.
func (am *AuctionManager) ListOpenItems(ctx context.Context, page int) ([]*domain.Item, error) {
	if page < 1 {
		page = 1
	}
	items, err := am.items.ListOpenItems(ctx, am.clock.Now(), am.cfg.PageSize, (page-1)*am.cfg.PageSize)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*domain.Item{}
	}
	return items, nil
}

func (am *AuctionManager) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	user, err := am.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	listed, err := am.items.ListBySeller(ctx, userID)
	if err != nil {
		return nil, err
	}
	won, err := am.items.ListWonBy(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &domain.Profile{User: user, Listed: nonNil(listed), WonItems: nonNil(won)}, nil
}

func (am *AuctionManager) ownedItem(ctx context.Context, sellerID, itemID string) (*domain.Item, error) {
	item, err := am.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.SellerID != sellerID {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrForbidden)
	}
	return item, nil
}

// reschedule never fails the write; the overdue sweep covers a missed job.
func (am *AuctionManager) reschedule(ctx context.Context, item *domain.Item) {
	if err := am.scheduler.RescheduleClosing(ctx, item); err != nil {
		am.log.Error("Failed to reschedule closing", "item_id", item.ID, "error", err)
	}
}

func validateText(title, description string) error {
	if title == "" {
		return fmt.Errorf("title is required: %w", domain.ErrInvalidItem)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("title longer than %d characters: %w", maxTitleLength, domain.ErrInvalidItem)
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return fmt.Errorf("description longer than %d characters: %w", maxDescriptionLength, domain.ErrInvalidItem)
	}
	return nil
}

func nonNil(items []*domain.Item) []*domain.Item {
	if items == nil {
		return []*domain.Item{}
	}
	return items
}
