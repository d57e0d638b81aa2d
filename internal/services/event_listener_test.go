package services

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-site/internal/domain"
	"auction-site/internal/infrastructure/websocket"
	"auction-site/internal/metrics"
	"auction-site/pkg/logger"
)

type recordingConn struct {
	userID, itemID string
	sent           int
	closed         bool
}

func (c *recordingConn) Send(interface{}) error { c.sent++; return nil }
func (c *recordingConn) Close() error           { c.closed = true; return nil }
func (c *recordingConn) UserID() string         { return c.userID }
func (c *recordingConn) ItemID() string         { return c.itemID }

func TestEventListener(t *testing.T) {
	cm := websocket.NewConnectionManager(logger.NewNop())
	listener := NewEventListener(cm, websocket.NewWebSocketNotifier(cm, metrics.NewMetrics(prometheus.NewRegistry())), logger.NewNop())

	watcher := &recordingConn{userID: "alice", itemID: "item-1"}
	bystander := &recordingConn{userID: "bob", itemID: "item-2"}
	require.NoError(t, cm.RegisterConnection("alice", "item-1", watcher))
	require.NoError(t, cm.RegisterConnection("bob", "item-2", bystander))

	now := time.Date(2025, 10, 2, 12, 0, 0, 0, time.UTC)

	require.NoError(t, listener.HandleItemEvent(&domain.ItemEvent{
		Type: domain.BidPlaced, ItemID: "item-1", UserID: "carol", Amount: 50, Timestamp: now,
	}))
	assert.Equal(t, 1, watcher.sent)
	assert.Zero(t, bystander.sent)

	require.NoError(t, listener.HandleItemEvent(&domain.ItemEvent{
		Type: domain.ItemClosed, ItemID: "item-1", UserID: "carol", Amount: 50, Timestamp: now,
	}))
	assert.Equal(t, 2, watcher.sent)
	assert.True(t, watcher.closed)
	assert.Empty(t, cm.GetConnectionsForItem("item-1"))
	assert.False(t, bystander.closed)

	err := listener.HandleItemEvent(&domain.ItemEvent{Type: "mystery", ItemID: "item-1"})
	assert.Error(t, err)
}
