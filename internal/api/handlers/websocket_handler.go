package handlers

import (
	"net/http"

	"auction-site/internal/api/middleware"
	"auction-site/internal/domain"
	"auction-site/internal/infrastructure/websocket"
	"auction-site/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
)

// WebSocketPath is where clients open a watch on an item.
const WebSocketPath = "/ws/items/{itemID}"

// WebSocketHandlers serves the item watch endpoint through a gorilla router
// so it can be mounted on the echo server.
type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
	router    *mux.Router
}

func NewWebSocketHandlers(items websocket.ItemFinder, bids websocket.BidPlacer,
	connManager domain.ConnectionManager, clock domain.Clock, log logger.Logger) *WebSocketHandlers {
	wsHandler := websocket.NewWebSocketHandler(items, bids, connManager, clock, log)

	router := mux.NewRouter()
	router.HandleFunc(WebSocketPath, wsHandler.HandleConnection).Methods(http.MethodGet)

	return &WebSocketHandlers{
		wsHandler: wsHandler,
		router:    router,
	}
}

func (h *WebSocketHandlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Register mounts the endpoint on e behind requireUser. The socket acts as
// the authenticated caller for bids and notifications.
func (h *WebSocketHandlers) Register(e *echo.Echo, requireUser echo.MiddlewareFunc) {
	e.GET("/ws/items/:itemID", func(c echo.Context) error {
		r := c.Request()
		h.ServeHTTP(c.Response(), r.WithContext(websocket.WithUserID(r.Context(), middleware.UserID(c))))
		return nil
	}, requireUser)
}
