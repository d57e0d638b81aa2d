package websocket

import (
	"context"

	"auction-site/internal/domain"
	"auction-site/internal/metrics"
)

const (
	targetUser = "user"
	targetItem = "item"
)

// WebSocketNotifier pushes live messages through the connection manager and
// records whether anyone was connected to receive them. Offline users still
// find stored notifications through the API.
type WebSocketNotifier struct {
	connManager domain.ConnectionManager
	metrics     *metrics.Metrics
}

func NewWebSocketNotifier(connManager domain.ConnectionManager, m *metrics.Metrics) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager, metrics: m}
}

func (n *WebSocketNotifier) NotifyUser(ctx context.Context, userID string, message interface{}) error {
	return n.push(ctx, targetUser, n.connManager.GetConnectionsForUser(userID), func() error {
		return n.connManager.NotifyUser(userID, message)
	})
}

func (n *WebSocketNotifier) BroadcastToItem(ctx context.Context, itemID string, message interface{}) error {
	return n.push(ctx, targetItem, n.connManager.GetConnectionsForItem(itemID), func() error {
		return n.connManager.BroadcastToItem(itemID, message)
	})
}

func (n *WebSocketNotifier) push(ctx context.Context, target string, conns []domain.WebSocketConnection, send func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(conns) == 0 {
		n.metrics.LiveMessagesTotal.WithLabelValues(target, "offline").Inc()
		return nil
	}
	if err := send(); err != nil {
		n.metrics.LiveMessagesTotal.WithLabelValues(target, "failed").Inc()
		return err
	}
	n.metrics.LiveMessagesTotal.WithLabelValues(target, "delivered").Inc()
	return nil
}
