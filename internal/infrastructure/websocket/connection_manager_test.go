package websocket

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auction-site/pkg/logger"
)

type fakeConn struct {
	mu     sync.Mutex
	userID string
	itemID string
	sent   []string
	closed bool
}

func (c *fakeConn) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, err := json.Marshal(message)
	if err != nil {
		return err
	}
	c.sent = append(c.sent, string(b))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) UserID() string { return c.userID }
func (c *fakeConn) ItemID() string { return c.itemID }

func TestConnectionManager_BroadcastAndNotify(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	alice := &fakeConn{userID: "alice", itemID: "item-1"}
	bob := &fakeConn{userID: "bob", itemID: "item-1"}
	aliceOther := &fakeConn{userID: "alice", itemID: "item-2"}

	require.NoError(t, cm.RegisterConnection("alice", "item-1", alice))
	require.NoError(t, cm.RegisterConnection("bob", "item-1", bob))
	require.NoError(t, cm.RegisterConnection("alice", "item-2", aliceOther))

	require.NoError(t, cm.BroadcastToItem("item-1", map[string]string{"type": "bid_update"}))
	assert.Equal(t, []string{`{"type":"bid_update"}`}, alice.sent)
	assert.Equal(t, []string{`{"type":"bid_update"}`}, bob.sent)
	assert.Empty(t, aliceOther.sent)

	require.NoError(t, cm.NotifyUser("alice", map[string]string{"type": "notification"}))
	assert.Len(t, alice.sent, 2)
	assert.Len(t, aliceOther.sent, 1)
	assert.Len(t, bob.sent, 1)
}

func TestConnectionManager_CloseAndUnregister(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	alice := &fakeConn{userID: "alice", itemID: "item-1"}
	aliceOther := &fakeConn{userID: "alice", itemID: "item-2"}
	require.NoError(t, cm.RegisterConnection("alice", "item-1", alice))
	require.NoError(t, cm.RegisterConnection("alice", "item-2", aliceOther))

	require.NoError(t, cm.CloseAndUnregisterConnections("item-1"))

	assert.True(t, alice.closed)
	assert.False(t, aliceOther.closed)
	assert.Empty(t, cm.GetConnectionsForItem("item-1"))
	assert.Len(t, cm.GetConnectionsForUser("alice"), 1)

	require.NoError(t, cm.UnregisterConnection("alice", "item-2"))
	assert.Empty(t, cm.GetConnectionsForUser("alice"))
}

func TestConnectionManager_ReRegisterReplacesConnection(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())

	first := &fakeConn{userID: "alice", itemID: "item-1"}
	second := &fakeConn{userID: "alice", itemID: "item-1"}
	require.NoError(t, cm.RegisterConnection("alice", "item-1", first))
	require.NoError(t, cm.RegisterConnection("alice", "item-1", second))

	require.NoError(t, cm.NotifyUser("alice", "hi"))
	assert.Empty(t, first.sent)
	assert.Len(t, second.sent, 1)
}
