package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-site/internal/api/middleware"
	"auction-site/internal/domain"
	ws "auction-site/internal/infrastructure/websocket"
	"auction-site/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func TestWebSocketHandlers_MountedOnEcho(t *testing.T) {
	closesAt := time.Now().Add(time.Hour)
	items := &fakeItemService{items: map[string]*domain.Item{
		"item-1": {ID: "item-1", ClosesAt: &closesAt},
	}}
	cm := ws.NewConnectionManager(logger.NewNop())

	e := echo.New()
	NewWebSocketHandlers(items, &fakeBidService{minimum: 10}, cm, wallClock{}, logger.NewNop()).
		Register(e, middleware.RequireUser(""))
	srv := httptest.NewServer(e)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	bidder := http.Header{middleware.UserIDHeader: []string{"bidder"}}

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/items/item-1?user_id=bidder", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, cm.GetConnectionsForItem("item-1"))

	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws/items/item-1", bidder)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return len(cm.GetConnectionsForItem("item-1")) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, cm.GetConnectionsForUser("bidder"), 1)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "place_bid", "amount": 4}))
	var reply map[string]interface{}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "bid_rejected", reply["type"])
	assert.EqualValues(t, 10, reply["minimum"])

	_, resp, err = websocket.DefaultDialer.Dial(base+"/ws/items/missing", bidder)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

var (
	_ ws.ItemFinder = (*fakeItemService)(nil)
	_ ws.BidPlacer  = (*fakeBidService)(nil)
)
