package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"auction-site/internal/domain"
	"auction-site/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type userIDKey struct{}

// WithUserID attaches the authenticated caller to ctx. Connections are only
// accepted for requests that carry one.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey{}).(string)
	return userID
}

type ItemFinder interface {
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
}

type BidPlacer interface {
	PlaceBid(ctx context.Context, itemID, bidderID string, amount int64) (*domain.Bid, error)
}

// WebSocketHandler lets users watch an item: they receive bid and closing
// updates and may bid over the same connection.
type WebSocketHandler struct {
	items       ItemFinder
	bids        BidPlacer
	connManager domain.ConnectionManager
	clock       domain.Clock
	log         logger.Logger
}

func NewWebSocketHandler(items ItemFinder, bids BidPlacer,
	connManager domain.ConnectionManager, clock domain.Clock, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		items:       items,
		bids:        bids,
		connManager: connManager,
		clock:       clock,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["itemID"]
	userID := userIDFrom(r.Context())
	if userID == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	item, err := h.items.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "item not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load item", "error", err, "item_id", itemID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if item.Closed || !item.IsOpen(h.clock.Now()) {
		http.Error(w, "item is no longer on sale", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, itemID)

	if err := h.connManager.RegisterConnection(userID, itemID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		_ = conn.Close()
		return
	}

	go h.handleMessages(wsConn, userID, itemID)
}

type clientMessage struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, userID, itemID string) {
	defer func() {
		_ = h.connManager.UnregisterConnection(userID, itemID)
		_ = conn.Close()
	}()

	for {
		var msg clientMessage
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Connection read failed", "user_id", userID, "error", err)
			}
			return
		}

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, userID, itemID, msg.Amount)
		case "ping":
			_ = conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, userID, itemID string, amount int64) {
	bid, err := h.bids.PlaceBid(context.Background(), itemID, userID, amount)
	if err != nil {
		reply := map[string]interface{}{"type": "bid_rejected", "message": err.Error()}
		var tooLow *domain.BidTooLowError
		if errors.As(err, &tooLow) {
			reply["minimum"] = tooLow.Minimum
		}
		_ = conn.Send(reply)
		return
	}

	_ = conn.Send(map[string]interface{}{"type": "bid_accepted", "bid": bid})
}

// WebSocketConnection serializes writes; gorilla connections allow only one
// concurrent writer.
type WebSocketConnection struct {
	conn    *websocket.Conn
	userID  string
	itemID  string
	writeMu sync.Mutex
}

func NewWebSocketConnection(conn *websocket.Conn, userID, itemID string) *WebSocketConnection {
	return &WebSocketConnection{
		conn:   conn,
		userID: userID,
		itemID: itemID,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	_ = wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) ItemID() string {
	return wsc.itemID
}
