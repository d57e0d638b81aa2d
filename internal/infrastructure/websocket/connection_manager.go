package websocket

import (
	"encoding/json"
	"sync"

	"auction-site/internal/domain"
	"auction-site/pkg/logger"
)

type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // itemID -> userID -> connection
	userConns   map[string][]domain.WebSocketConnection          // userID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		userConns:   make(map[string][]domain.WebSocketConnection),
		log:         log,
	}
}

func (cm *ConnectionManager) RegisterConnection(userID, itemID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[itemID] == nil {
		cm.connections[itemID] = make(map[string]domain.WebSocketConnection)
	}
	if old, exists := cm.connections[itemID][userID]; exists {
		cm.dropUserConn(userID, old)
	}
	cm.connections[itemID][userID] = conn
	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Debug("Connection registered", "user_id", userID, "item_id", itemID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID, itemID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.unregisterLocked(userID, itemID)

	cm.log.Debug("Connection unregistered", "user_id", userID, "item_id", itemID)
	return nil
}

// CloseAndUnregisterConnections closes every watcher of an item, used once
// the item has closed.
func (cm *ConnectionManager) CloseAndUnregisterConnections(itemID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for userID, conn := range cm.connections[itemID] {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "user_id", userID,
				"item_id", itemID, "error", err)
		}
		cm.unregisterLocked(userID, itemID)
	}

	cm.log.Info("Connections closed for item", "item_id", itemID)
	return nil
}

func (cm *ConnectionManager) unregisterLocked(userID, itemID string) {
	itemConns, exists := cm.connections[itemID]
	if !exists {
		return
	}
	if conn, ok := itemConns[userID]; ok {
		cm.dropUserConn(userID, conn)
		delete(itemConns, userID)
	}
	if len(itemConns) == 0 {
		delete(cm.connections, itemID)
	}
}

func (cm *ConnectionManager) dropUserConn(userID string, conn domain.WebSocketConnection) {
	var newConns []domain.WebSocketConnection
	for _, existingConn := range cm.userConns[userID] {
		if existingConn != conn {
			newConns = append(newConns, existingConn)
		}
	}

	if len(newConns) == 0 {
		delete(cm.userConns, userID)
	} else {
		cm.userConns[userID] = newConns
	}
}

func (cm *ConnectionManager) GetConnectionsForItem(itemID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[itemID] {
		connections = append(connections, conn)
	}

	return connections
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	connections := make([]domain.WebSocketConnection, len(cm.userConns[userID]))
	copy(connections, cm.userConns[userID])
	return connections
}

func (cm *ConnectionManager) BroadcastToItem(itemID string, message interface{}) error {
	return cm.send(cm.GetConnectionsForItem(itemID), message)
}

func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	return cm.send(cm.GetConnectionsForUser(userID), message)
}

// send encodes once and writes to every connection. A failed write is
// logged and the rest still receive the message.
func (cm *ConnectionManager) send(connections []domain.WebSocketConnection, message interface{}) error {
	if len(connections) == 0 {
		return nil
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(json.RawMessage(messageBytes)); err != nil {
			cm.log.Error("Failed to send message", "user_id", conn.UserID(),
				"item_id", conn.ItemID(), "error", err)
		}
	}

	return nil
}
