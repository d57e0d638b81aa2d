package services

import (
	"context"
	"fmt"

	"auction-site/internal/domain"
	"auction-site/pkg/logger"
)

// EventListener relays item events from the bus to the websocket clients
// watching each item. Every instance runs one, so watchers connected to any
// instance see every event.
type EventListener struct {
	broadcaster       domain.ItemBroadcaster
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager,
	broadcaster domain.ItemBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		connectionManager: connectionManager,
		log:               log,
	}
}

// Start blocks until ctx is done or the subscription fails.
func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToItemEvents(ctx, el.HandleItemEvent)
}

func (el *EventListener) HandleItemEvent(event *domain.ItemEvent) error {
	el.log.Debug("Handling item event", "type", event.Type, "item_id", event.ItemID)

	switch event.Type {
	case domain.BidPlaced:
		return el.handleBidPlaced(event)
	case domain.ItemClosed:
		return el.handleItemClosed(event)
	case domain.ItemUpdated:
		return el.broadcaster.BroadcastToItem(context.Background(), event.ItemID, map[string]interface{}{
			"type":      "item_updated",
			"timestamp": event.Timestamp,
		})
	}

	return fmt.Errorf("unknown event type %q", event.Type)
}

func (el *EventListener) handleBidPlaced(event *domain.ItemEvent) error {
	return el.broadcaster.BroadcastToItem(context.Background(), event.ItemID, map[string]interface{}{
		"type":          "bid_update",
		"current_bid":   event.Amount,
		"current_price": event.Amount + domain.MinBidIncrement,
		"bidder_id":     event.UserID,
		"timestamp":     event.Timestamp,
	})
}

func (el *EventListener) handleItemClosed(event *domain.ItemEvent) error {
	payload := map[string]interface{}{
		"type":      "item_closed",
		"sold":      event.UserID != "",
		"timestamp": event.Timestamp,
	}
	if event.UserID != "" {
		payload["winner_id"] = event.UserID
		payload["amount"] = event.Amount
	}

	if err := el.broadcaster.BroadcastToItem(context.Background(), event.ItemID, payload); err != nil {
		el.log.Error("Failed to broadcast item closed event", "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.ItemID); err != nil {
		el.log.Error("Failed to finalize connections for item", "item_id",
			event.ItemID, "error", err)
		return err
	}
	return nil
}
